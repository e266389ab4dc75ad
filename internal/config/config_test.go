package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			HTTPPort:        8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "scimitar",
			Password: "secret",
			Name:     "scimitar",
			SSLMode:  SSLModeDisable,
			MaxConns: 20,
			MinConns: 2,
		},
		SCIM: SCIMConfig{
			BasePath:        "/scim/v2",
			DefaultPageSize: 50,
			MaxPageSize:     200,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.HTTPPort = 0 },
			wantErr: "HTTPPort",
		},
		{
			name:    "missing database host",
			mutate:  func(c *Config) { c.Database.Host = "" },
			wantErr: "Host",
		},
		{
			name:    "invalid ssl mode",
			mutate:  func(c *Config) { c.Database.SSLMode = "maybe" },
			wantErr: "SSLMode",
		},
		{
			name:    "max conns below min conns",
			mutate:  func(c *Config) { c.Database.MaxConns = 1 },
			wantErr: "max_conns",
		},
		{
			name: "default page size above max",
			mutate: func(c *Config) {
				c.SCIM.DefaultPageSize = 500
			},
			wantErr: "default_page_size",
		},
		{
			name:    "base path without leading slash",
			mutate:  func(c *Config) { c.SCIM.BasePath = "scim/v2" },
			wantErr: "BasePath",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDatabaseConfigDSN(t *testing.T) {
	cfg := &DatabaseConfig{
		Host:           "db.internal",
		Port:           5432,
		User:           "scim user",
		Password:       "p@ss/word",
		Name:           "identity",
		SSLMode:        SSLModeVerifyFull,
		ConnectTimeout: 10 * time.Second,
	}

	dsn := cfg.DSN()

	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "scim+user")
	assert.Contains(t, dsn, "p%40ss%2Fword")
	assert.Contains(t, dsn, "db.internal:5432/identity")
	assert.Contains(t, dsn, "sslmode=verify-full")
	assert.Contains(t, dsn, "connect_timeout=10")
}

func TestServerConfigHTTPAddress(t *testing.T) {
	cfg := &ServerConfig{Host: "127.0.0.1", HTTPPort: 9090}
	assert.Equal(t, "127.0.0.1:9090", cfg.HTTPAddress())
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SCIMITAR_DATABASE_PASSWORD", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "/scim/v2", cfg.SCIM.BasePath)
	assert.Equal(t, 50, cfg.SCIM.DefaultPageSize)
	assert.Equal(t, 200, cfg.SCIM.MaxPageSize)
	assert.Equal(t, SSLModeRequire, cfg.Database.SSLMode)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SCIMITAR_SERVER_HTTP_PORT", "9999")
	t.Setenv("SCIMITAR_SCIM_DEFAULT_PAGE_SIZE", "25")
	t.Setenv("SCIMITAR_SCIM_BEARER_TOKEN", "tok-123")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, 25, cfg.SCIM.DefaultPageSize)
	assert.Equal(t, "tok-123", cfg.SCIM.BearerToken)
}
