package config

import (
	"github.com/garyjia/site-qms/internal/container"
	"github.com/garyjia/site-qms/internal/domain/numbering"
	domainwf "github.com/garyjia/site-qms/internal/domain/workflow"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	schemes := make(map[domainwf.Module]numbering.Scheme, len(c.Numbering))
	for module, scheme := range c.Numbering {
		schemes[domainwf.Module(module)] = scheme
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Lark: container.LarkConfig{
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
			Domain:    c.Lark.Domain,
		},
		Storage: container.StorageConfig{
			Driver:          c.Storage.Driver,
			LocalDir:        c.Storage.LocalDir,
			BaseURL:         c.Storage.BaseURL,
			Bucket:          c.Storage.Bucket,
			Region:          c.Storage.Region,
			Endpoint:        c.Storage.Endpoint,
			AccessKeyID:     c.Storage.AccessKeyID,
			SecretAccessKey: c.Storage.SecretAccessKey,
			PublicBaseURL:   c.Storage.PublicBaseURL,
		},
		Server: container.ServerConfig{
			Host:           c.Server.Host,
			Port:           c.Server.Port,
			Mode:           c.Server.Mode,
			ReadTimeout:    c.Server.ReadTimeout,
			WriteTimeout:   c.Server.WriteTimeout,
			MaxUploadBytes: c.Server.MaxUploadBytes,
		},
		Auth: container.AuthConfig{
			JWTSecret: c.Auth.JWTSecret,
			Issuer:    c.Auth.Issuer,
		},
		Numbering: schemes,
		Workflow: container.WorkflowConfig{
			RoleCacheTTL:        c.Workflow.RoleCacheTTL,
			NotificationTimeout: c.Workflow.NotificationTimeout,
		},
	}
}
