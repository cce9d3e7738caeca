package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 40, cfg.Polygon.RequestsPerMin)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL())
	assert.Equal(t, 270*time.Second, cfg.Scan.MaxScanDuration())
	assert.Equal(t, 5, cfg.Scan.TotalBatches)
	assert.Empty(t, cfg.Persistence.DSN)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
cache:
  ttl_secs: 300
scan:
  total_batches: 3
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL())
	assert.Equal(t, 3, cfg.Scan.TotalBatches)
	// Untouched sections keep their defaults.
	assert.Equal(t, 40, cfg.Polygon.RequestsPerMin)
	assert.Equal(t, 300*time.Second, cfg.Server.WriteTimeout())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
polygon:
  api_key: from-file
server:
  cron_secret: from-file
`), 0o644))

	t.Setenv("POLYGON_API_KEY", "from-env")
	t.Setenv("CRON_SECRET", "env-secret")
	t.Setenv("HTTP_PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Polygon.APIKey)
	assert.Equal(t, "env-secret", cfg.Server.CronSecret)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scan:
  total_batches: 0
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "total_batches")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
