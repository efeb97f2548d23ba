package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "database", cfg.History.Backend)
	assert.Equal(t, 120*time.Second, cfg.Providers.UpstreamTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Stream.ProgressDelay)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http_port: 9000
database:
  driver: postgres
  host: db.internal
  port: 5432
  user: flow
  password: secret
  name: imageflow
providers:
  upstream_timeout: 60s
`), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 60*time.Second, cfg.Providers.UpstreamTimeout)
	// Untouched sections keep their defaults.
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.Equal(t,
		"host=db.internal port=5432 user=flow password=secret dbname=imageflow sslmode=disable",
		cfg.Database.DSN())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9000\n"), 0o644))

	t.Setenv("IMAGEFLOW_SERVER_HTTP_PORT", "7070")
	t.Setenv("IMAGEFLOW_PROVIDERS_UPSTREAM_TIMEOUT", "90s")
	t.Setenv("IMAGEFLOW_SERVER_CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("IMAGEFLOW_TELEMETRY_ENABLED", "true")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.HTTPPort)
	assert.Equal(t, 90*time.Second, cfg.Providers.UpstreamTimeout)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Driver = "oracle"
	cfg.History.Backend = "s3"
	cfg.Providers.UpstreamTimeout = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
	assert.Contains(t, err.Error(), "s3")
	assert.Contains(t, err.Error(), "upstream_timeout")
}

func TestMySQLDSN(t *testing.T) {
	d := DatabaseConfig{Driver: "mysql", User: "u", Password: "p", Host: "h", Port: 3306, Name: "db"}
	assert.Equal(t, "u:p@tcp(h:3306)/db?parseTime=true", d.DSN())
}
