package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DefaultMaxConcurrency, cfg.Engine.MaxConcurrency)
	assert.Equal(t, DefaultReducerTimeout, cfg.Engine.ReducerTimeout)
	assert.Equal(t, 12, cfg.Engine.DefaultHour)
	assert.Equal(t, "UTC", cfg.Engine.Timezone)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Security.RateLimit.Enabled)
}

func TestLoad(t *testing.T) {
	t.Run("defaults without file or env", func(t *testing.T) {
		path := writeConfigFile(t, "")
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, Default().Engine, cfg.Engine)
	})

	t.Run("file overlays defaults", func(t *testing.T) {
		path := writeConfigFile(t, `
engine:
  max_concurrency: 2
  reducer_timeout: 750ms
  base_start: "2024-01-01"
  base_end: "2024-03-31"
server:
  port: 9090
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 2, cfg.Engine.MaxConcurrency)
		assert.Equal(t, 750*time.Millisecond, cfg.Engine.ReducerTimeout)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, DefaultCacheSize, cfg.Engine.CacheSize, "unset keys keep defaults")

		start, end, err := cfg.Engine.BasePeriod()
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), end)
	})

	t.Run("env overrides file", func(t *testing.T) {
		path := writeConfigFile(t, "engine:\n  max_concurrency: 2\n")
		t.Setenv("LAE_ENGINE_MAX_CONCURRENCY", "6")
		t.Setenv("LAE_ENGINE_DEFAULT_HOUR", "9")
		t.Setenv("LAE_LOGGING_LEVEL", "debug")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 6, cfg.Engine.MaxConcurrency)
		assert.Equal(t, 9, cfg.Engine.DefaultHour)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := writeConfigFile(t, "engine: [not, a, map")
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero concurrency", func(c *Config) { c.Engine.MaxConcurrency = 0 }},
		{"zero reducer timeout", func(c *Config) { c.Engine.ReducerTimeout = 0 }},
		{"default hour out of range", func(c *Config) { c.Engine.DefaultHour = 24 }},
		{"malformed base start", func(c *Config) { c.Engine.BaseStart = "01/02/2024" }},
		{"inverted base period", func(c *Config) {
			c.Engine.BaseStart = "2024-05-01"
			c.Engine.BaseEnd = "2024-01-01"
		}},
		{"unknown timezone", func(c *Config) { c.Engine.Timezone = "Mars/Olympus" }},
		{"invalid port", func(c *Config) { c.Server.Port = 70000 }},
		{"unknown log output", func(c *Config) { c.Logging.Output = "syslog" }},
		{"sample ratio above one", func(c *Config) { c.Telemetry.SampleRatio = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("log format forced to json", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Format = "text"
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "json", cfg.Logging.Format)
	})
}
