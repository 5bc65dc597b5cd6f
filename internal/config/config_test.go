package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobcache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JOBCACHE_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, DriverMinio, cfg.Storage.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Cache.SweepInterval)
	assert.Equal(t, 30*time.Minute, cfg.Cache.DefaultTTL)
	assert.False(t, cfg.Cache.DedupeFetch)

	n, err := cfg.Cache.MaxBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(10*1024*1024), n)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
  allowed_resources:
    jobs: read
storage:
  driver: memory
cache:
  max_size: 2MB
  sweep_interval: 1m
  dedupe_fetch: true
log:
  level: debug
`)
	t.Setenv("JOBCACHE_CONFIG", path)
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("CACHE_DEFAULT_TTL", "10m")
	t.Setenv("ADMIN_IPS", "10.0.0., 192.168.1.1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, AccessRead, cfg.Server.AllowedResources["jobs"])
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, time.Minute, cfg.Cache.SweepInterval)
	assert.Equal(t, 10*time.Minute, cfg.Cache.DefaultTTL)
	assert.True(t, cfg.Cache.DedupeFetch)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, []string{"10.0.0.", "192.168.1.1"}, cfg.Server.AdminIPs)

	n, err := cfg.Cache.MaxBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(2_000_000), n)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad size", env: map[string]string{"CACHE_MAX_SIZE": "lots"}},
		{name: "bad duration", env: map[string]string{"CACHE_SWEEP_INTERVAL": "often"}},
		{name: "bad rate", env: map[string]string{"RATE_LIMIT": "fast"}},
		{name: "bad driver", env: map[string]string{"STORAGE_DRIVER": "floppy"}},
		{name: "bad policy", env: map[string]string{"ALLOWED_RESOURCES": "jobs"}},
		{name: "bad level", env: map[string]string{"ALLOWED_RESOURCES": "jobs:everything"}},
		{name: "missing file", env: map[string]string{"JOBCACHE_CONFIG": "/does/not/exist.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JOBCACHE_CONFIG", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseResourceAccess(t *testing.T) {
	access, err := parseResourceAccess("jobs:read, applications:all ,profiles:write")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"jobs":         AccessRead,
		"applications": AccessAll,
		"profiles":     AccessWrite,
	}, access)

	_, err = parseResourceAccess("jobs:")
	assert.Error(t, err)
}
