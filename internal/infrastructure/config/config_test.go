package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedVars = []string{
	"PORT", "HOST", "WINDOW_WIDTH", "WINDOW_HEIGHT",
	"RENDERER_USER_AGENT", "RENDERER_TIMEOUT", "RENDERER_MAX_RETRIES", "RENDERER_RPS", "RENDERER_MAX_BODY",
	"RENDERER_FOLLOW_REFRESH",
	"SESSION_BREAKER_FAILURES", "SESSION_BREAKER_TIMEOUT",
	"LOG_LEVEL", "LOG_DEV",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "RATE_LIMIT_ENABLED", "RATE_LIMIT_GLOBAL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range managedVars {
		if value, ok := os.LookupEnv(key); ok {
			os.Unsetenv(key)
			t.Cleanup(func() { os.Setenv(key, value) })
		}
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	assert.Equal(t, 800, cfg.Window.Width)
	assert.Equal(t, 600, cfg.Window.Height)

	assert.Equal(t, "navhost/1.0", cfg.Renderer.UserAgent)
	assert.Equal(t, 30*time.Second, cfg.Renderer.Timeout)
	assert.Equal(t, 2, cfg.Renderer.MaxRetries)
	assert.Equal(t, int64(10<<20), cfg.Renderer.MaxBody)

	assert.Equal(t, uint32(5), cfg.Session.BreakerFailures)
	assert.Equal(t, 30*time.Second, cfg.Session.BreakerTimeout)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestLoadMatchesDefault(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	clearEnv(t)
	envVars := map[string]string{
		"PORT":                     "9000",
		"HOST":                     "127.0.0.1",
		"WINDOW_WIDTH":             "1280",
		"WINDOW_HEIGHT":            "720",
		"RENDERER_USER_AGENT":      "test-agent",
		"RENDERER_TIMEOUT":         "5s",
		"RENDERER_MAX_RETRIES":     "0",
		"RENDERER_RPS":             "2.5",
		"RENDERER_FOLLOW_REFRESH":  "true",
		"SESSION_BREAKER_FAILURES": "3",
		"SESSION_BREAKER_TIMEOUT":  "1m",
		"LOG_LEVEL":                "debug",
		"LOG_DEV":                  "true",
		"RATE_LIMIT_ENABLED":       "false",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 1280, cfg.Window.Width)
	assert.Equal(t, 720, cfg.Window.Height)
	assert.Equal(t, "test-agent", cfg.Renderer.UserAgent)
	assert.Equal(t, 5*time.Second, cfg.Renderer.Timeout)
	assert.Equal(t, 0, cfg.Renderer.MaxRetries)
	assert.InDelta(t, 2.5, cfg.Renderer.RPS, 0.0001)
	assert.True(t, cfg.Renderer.FollowRefresh)
	assert.Equal(t, uint32(3), cfg.Session.BreakerFailures)
	assert.Equal(t, time.Minute, cfg.Session.BreakerTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"negative width", "WINDOW_WIDTH", "-1"},
		{"zero timeout", "RENDERER_TIMEOUT", "0s"},
		{"negative retries", "RENDERER_MAX_RETRIES", "-2"},
		{"zero breaker failures", "SESSION_BREAKER_FAILURES", "0"},
		{"unparsable port type", "WINDOW_HEIGHT", "tall"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)

			// LoadOrDefault never fails.
			assert.Equal(t, Default(), LoadOrDefault())
		})
	}
}

func TestLoadFile(t *testing.T) {
	write := func(t *testing.T, name, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	t.Run("overlays defaults", func(t *testing.T) {
		path := write(t, "navhost.yaml", `
server:
  port: "9100"
renderer:
  timeout: 5s
  follow_refresh: true
rate_limit:
  enabled: false
`)
		cfg, err := LoadFile(path)
		require.NoError(t, err)

		assert.Equal(t, "9100", cfg.Server.Port)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 5*time.Second, cfg.Renderer.Timeout)
		assert.True(t, cfg.Renderer.FollowRefresh)
		assert.Equal(t, "navhost/1.0", cfg.Renderer.UserAgent)
		assert.False(t, cfg.RateLimit.Enabled)
		assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	})

	t.Run("invalid values", func(t *testing.T) {
		path := write(t, "bad.yml", "session:\n  breaker_failures: 0\n")
		_, err := LoadFile(path)
		assert.Error(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		path := write(t, "broken.yaml", "server: [port\n")
		_, err := LoadFile(path)
		assert.Error(t, err)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := LoadFile(write(t, "navhost.toml", "port = 1"))
		assert.ErrorContains(t, err, "unsupported config format")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "none.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
