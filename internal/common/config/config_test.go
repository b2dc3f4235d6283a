package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.Fetch.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 5, cfg.Fetch.MaxAttempts)
	assert.Equal(t, 1.5, cfg.Fetch.BackoffFactor)
	assert.Equal(t, 8, cfg.Enrich.Workers)
	assert.Equal(t, time.Duration(0), cfg.Cache.TTL)
	assert.False(t, cfg.Database.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CITYBIKES_BASE_URL", "http://localhost:9999/networks/")
	t.Setenv("FETCH_WORKERS", "16")
	t.Setenv("CACHE_TTL", "1h")
	t.Setenv("DB_HOST", "db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999/networks", cfg.Fetch.BaseURL)
	assert.Equal(t, 16, cfg.Enrich.Workers)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.True(t, cfg.Database.Enabled())
	assert.Contains(t, cfg.Database.ConnectionString(), "host=db")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("FETCH_BACKOFF_FACTOR", "fast")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("FETCH_BACKOFF_FACTOR", "1.5")
	t.Setenv("FETCH_MAX_ATTEMPTS", "0")
	_, err = Load()
	assert.Error(t, err)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
