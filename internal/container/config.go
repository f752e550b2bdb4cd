// Package container provides dependency injection and lifecycle management
// for the site quality workflow service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/site-qms/internal/domain/numbering"
	domainwf "github.com/garyjia/site-qms/internal/domain/workflow"
)

// Storage drivers
const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Lark API configuration
	Lark LarkConfig

	// Storage configuration
	Storage StorageConfig

	// Server configuration
	Server ServerConfig

	// Auth configuration
	Auth AuthConfig

	// Numbering holds the sequence format of each module
	Numbering map[domainwf.Module]numbering.Scheme

	// Workflow configuration
	Workflow WorkflowConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// MigrationsDir overrides the embedded migrations when set
	MigrationsDir string
}

// LarkConfig holds Lark API settings. An empty AppID disables notifications.
type LarkConfig struct {
	AppID     string
	AppSecret string
	Domain    string
}

// StorageConfig holds upload storage settings.
type StorageConfig struct {
	// Driver is "local" or "s3"
	Driver string

	// LocalDir is where the local driver writes files
	LocalDir string

	// BaseURL is the public URL prefix of locally stored files
	BaseURL string

	// S3 bucket settings
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string
	Port           int
	Mode           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// WorkflowConfig holds workflow engine settings.
type WorkflowConfig struct {
	// RoleCacheTTL keeps personnel lookups; zero disables the cache
	RoleCacheTTL time.Duration

	// NotificationTimeout bounds each asynchronous event handler
	NotificationTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/site_qms.db",
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: 0,
		},
		Storage: StorageConfig{
			Driver:   StorageDriverLocal,
			LocalDir: "data/uploads",
			BaseURL:  "http://localhost:8080/files",
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			Mode:           "release",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			MaxUploadBytes: 10 << 20,
		},
		Auth: AuthConfig{
			Issuer: "site-qms",
		},
		Numbering: map[domainwf.Module]numbering.Scheme{
			domainwf.ModuleObservation: {Prefix: "FO", Padding: 3},
			domainwf.ModuleTraining:    {Prefix: "FT", Padding: 3},
			domainwf.ModuleNOI:         {Prefix: "NOI", Padding: 3},
		},
		Workflow: WorkflowConfig{
			RoleCacheTTL:        30 * time.Second,
			NotificationTimeout: 15 * time.Second,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// Validate auth configuration
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	// Validate Lark configuration
	if c.Lark.AppID != "" && c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required when lark.app_id is set")
	}

	// Validate storage configuration
	switch c.Storage.Driver {
	case StorageDriverLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local driver")
		}
		if c.Storage.BaseURL == "" {
			return fmt.Errorf("storage.base_url is required for the local driver")
		}
	case StorageDriverS3:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the s3 driver")
		}
		if c.Storage.Region == "" {
			return fmt.Errorf("storage.region is required for the s3 driver")
		}
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", StorageDriverLocal, StorageDriverS3, c.Storage.Driver)
	}

	// Validate numbering configuration
	for m, s := range c.Numbering {
		if !m.IsValid() {
			return fmt.Errorf("numbering: %w: %q", domainwf.ErrInvalidModule, m)
		}
		if s.Prefix == "" {
			return fmt.Errorf("numbering.%s.prefix is required", m)
		}
	}

	return nil
}
