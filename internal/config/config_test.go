package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/site-qms/internal/container"
	"github.com/garyjia/site-qms/internal/domain/numbering"
	domainwf "github.com/garyjia/site-qms/internal/domain/workflow"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_DefaultsAndFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
auth:
  jwt_secret: file-secret-0123456789
numbering:
  noi:
    prefix: INS
    padding: 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, "site-qms", cfg.Auth.Issuer)
	assert.Equal(t, 30*time.Second, cfg.Workflow.RoleCacheTTL)
	assert.Equal(t, numbering.Scheme{Prefix: "INS", Padding: 4}, cfg.Numbering["noi"])
	assert.Equal(t, numbering.Scheme{Prefix: "FO", Padding: 3}, cfg.Numbering["observation"])
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret-0123456789")
	t.Setenv("LARK_APP_ID", "cli_env")
	t.Setenv("LARK_APP_SECRET", "lark-secret")
	t.Setenv("SERVER_PORT", "9100")

	cfg, err := Load(writeConfig(t, "logger:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "env-secret-0123456789", cfg.Auth.JWTSecret)
	assert.Equal(t, "cli_env", cfg.Lark.AppID)
	assert.Equal(t, "lark-secret", cfg.Lark.AppSecret)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorContains(t, err, "failed to read config file")
	})

	t.Run("missing secret", func(t *testing.T) {
		_, err := Load(writeConfig(t, "server:\n  port: 8080\n"))
		assert.ErrorContains(t, err, "auth.jwt_secret is required")
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Auth:    AuthConfig{JWTSecret: "0123456789abcdef"},
			Storage: StorageConfig{Driver: "local", LocalDir: "uploads"},
			Numbering: map[string]numbering.Scheme{
				"noi": {Prefix: "NOI", Padding: 3},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "at least 16"},
		{"lark secret", func(c *Config) { c.Lark.AppID = "cli_x" }, "lark.app_secret"},
		{"s3 bucket", func(c *Config) { c.Storage.Driver = "s3" }, "storage.bucket"},
		{"driver", func(c *Config) { c.Storage.Driver = "gcs" }, "storage.driver"},
		{"prefix", func(c *Config) { c.Numbering["noi"] = numbering.Scheme{Padding: 3} }, "numbering.noi.prefix"},
		{"padding", func(c *Config) { c.Numbering["noi"] = numbering.Scheme{Prefix: "NOI", Padding: 12} }, "numbering.noi.padding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestToContainerConfig(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Host: "127.0.0.1", Port: 8081, Mode: "debug", MaxUploadBytes: 1024},
		Database: DatabaseConfig{Path: "qms.db", MaxOpenConns: 1},
		Lark:     LarkConfig{AppID: "cli_x", AppSecret: "s", Domain: "lark"},
		Storage:  StorageConfig{Driver: "s3", Bucket: "photos", Region: "ap-southeast-1"},
		Auth:     AuthConfig{JWTSecret: "0123456789abcdef", Issuer: "qms"},
		Numbering: map[string]numbering.Scheme{
			"observation": {Prefix: "OBS", Padding: 4},
		},
		Workflow: WorkflowConfig{RoleCacheTTL: time.Minute},
	}

	cc := cfg.ToContainerConfig()

	assert.Equal(t, "qms.db", cc.Database.Path)
	assert.Equal(t, "lark", cc.Lark.Domain)
	assert.Equal(t, container.StorageDriverS3, cc.Storage.Driver)
	assert.Equal(t, "photos", cc.Storage.Bucket)
	assert.Equal(t, int64(1024), cc.Server.MaxUploadBytes)
	assert.Equal(t, "qms", cc.Auth.Issuer)
	assert.Equal(t, time.Minute, cc.Workflow.RoleCacheTTL)
	assert.Equal(t, numbering.Scheme{Prefix: "OBS", Padding: 4}, cc.Numbering[domainwf.ModuleObservation])
	require.NoError(t, cc.Validate())
}
