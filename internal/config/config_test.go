package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
backends:
  - name: primary
    objects_file: /var/cache/icinga/objects.cache
    status_file: /var/lib/icinga/status.dat
  - name: secondary
    objects_file: /srv/b/objects.cache
cache:
  max_entries: 2
reload:
  interval: 1m
  workers: 2
query:
  max_limit: 500
  time_zone: UTC
logging:
  level: debug
  format: console
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	require.Len(t, cfg.Backends, 2)
	assert.Equal(t, "primary", cfg.Backends[0].Name)
	assert.Equal(t, "/var/lib/icinga/status.dat", cfg.Backends[0].StatusFile)
	assert.Empty(t, cfg.Backends[1].StatusFile)

	assert.Equal(t, 2, cfg.Cache.MaxEntries)
	assert.Equal(t, time.Minute, cfg.Reload.Interval)
	assert.Equal(t, 2, cfg.Reload.Workers)
	assert.Equal(t, 500, cfg.Query.MaxLimit)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// defaults for keys the file leaves out
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Reload.MinInterval)
	assert.Equal(t, 16, cfg.Reload.QueueSize)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Equal(t, 5*time.Minute, cfg.Health.MaxStatusAge)

	b, ok := cfg.Backend("secondary")
	assert.True(t, ok)
	assert.Equal(t, "/srv/b/objects.cache", b.ObjectsFile)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("STATUSDAT_LOGGING_LEVEL", "warn")
	t.Setenv("STATUSDAT_RELOAD_WORKERS", "7")
	t.Setenv("STATUSDAT_STATUS_FILE", "/tmp/status.dat")
	t.Setenv("STATUSDAT_BACKEND", "secondary")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 7, cfg.Reload.Workers)

	b, _ := cfg.Backend("secondary")
	assert.Equal(t, "/tmp/status.dat", b.StatusFile)
	assert.Equal(t, "/srv/b/objects.cache", b.ObjectsFile)
}

func TestLoadFromEnvironmentOnly(t *testing.T) {
	t.Setenv("STATUSDAT_OBJECTS_FILE", "/tmp/objects.cache")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Len(t, cfg.Backends, 1)
	assert.Equal(t, BackendConfig{Name: "default", ObjectsFile: "/tmp/objects.cache"}, cfg.Backends[0])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Backends = []BackendConfig{{Name: "a", ObjectsFile: "/x"}}
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no backends", func(c *Config) { c.Backends = nil }},
		{"unnamed backend", func(c *Config) { c.Backends[0].Name = "" }},
		{"duplicate backend", func(c *Config) { c.Backends = append(c.Backends, c.Backends[0]) }},
		{"no objects file", func(c *Config) { c.Backends[0].ObjectsFile = "" }},
		{"cache entries", func(c *Config) { c.Cache.MaxEntries = 0 }},
		{"weight", func(c *Config) { c.Cache.RecencyWeight = 1.5 }},
		{"workers", func(c *Config) { c.Reload.Workers = 0 }},
		{"queue", func(c *Config) { c.Reload.QueueSize = 0 }},
		{"negative limit", func(c *Config) { c.Query.MaxLimit = -1 }},
		{"time zone", func(c *Config) { c.Query.TimeZone = "Nowhere/Special" }},
		{"metrics port", func(c *Config) { c.Metrics.Port = 0 }},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
