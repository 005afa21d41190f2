package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	// Artwork config
	assert.Equal(t, 114, cfg.Artwork.MinSizePx)
	assert.Equal(t, 256, cfg.Artwork.IdealSizePx)
	assert.Equal(t, 15, cfg.Artwork.ResolveTimeoutSec)

	// Fetch config
	assert.Equal(t, 10, cfg.Fetch.TimeoutSec)
	assert.Equal(t, 2, cfg.Fetch.RetryMax)
	assert.Equal(t, int64(10*1024*1024), cfg.Fetch.MaxBodyBytes)
	assert.Equal(t, int64(25_000_000), cfg.Fetch.MaxPixels)
	assert.Empty(t, cfg.Fetch.AllowedHosts)

	assert.NoError(t, cfg.Validate())
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                    "9000",
		"HOST":                    "127.0.0.1",
		"LOG_LEVEL":               "debug",
		"LOG_DEV":                 "true",
		"RATE_LIMIT_RPS":          "500",
		"RATE_LIMIT_BURST":        "1000",
		"RATE_LIMIT_ENABLED":      "false",
		"ARTWORK_MIN_SIZE":        "96",
		"ARTWORK_IDEAL_SIZE":      "512",
		"ARTWORK_RESOLVE_TIMEOUT": "5",
		"FETCH_TIMEOUT":           "3",
		"FETCH_RETRY_MAX":         "0",
		"FETCH_RPS":               "2.5",
		"FETCH_MAX_PIXELS":        "4000000",
		"FETCH_ALLOWED_HOSTS":     "*.example.com,cdn.test",
		"FETCH_USER_AGENT":        "artwork-test/2",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 96, cfg.Artwork.MinSizePx)
	assert.Equal(t, 512, cfg.Artwork.IdealSizePx)
	assert.Equal(t, 5, cfg.Artwork.ResolveTimeoutSec)
	assert.Equal(t, 3, cfg.Fetch.TimeoutSec)
	assert.Equal(t, 0, cfg.Fetch.RetryMax)
	assert.Equal(t, 2.5, cfg.Fetch.RequestsPerSecond)
	assert.Equal(t, int64(4_000_000), cfg.Fetch.MaxPixels)
	assert.Equal(t, []string{"*.example.com", "cdn.test"}, cfg.Fetch.AllowedHosts)
	assert.Equal(t, "artwork-test/2", cfg.Fetch.UserAgent)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// Defaults still apply
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 114, cfg.Artwork.MinSizePx)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"non numeric min size", "ARTWORK_MIN_SIZE", "large"},
		{"zero min size", "ARTWORK_MIN_SIZE", "0"},
		{"ideal below min", "ARTWORK_IDEAL_SIZE", "10"},
		{"zero timeout", "ARTWORK_RESOLVE_TIMEOUT", "0"},
		{"negative retries", "FETCH_RETRY_MAX", "-1"},
		{"zero pixel budget", "FETCH_MAX_PIXELS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)

			// LoadOrDefault falls back instead of failing
			assert.Equal(t, Default(), LoadOrDefault())
		})
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileYAML(t *testing.T) {
	path := writeFile(t, "artwork.yaml", `
server:
  port: "7000"
artwork:
  min_size_px: 64
  ideal_size_px: 128
fetch:
  allowed_hosts:
    - "*.cdn.example"
    - "images.example.org"
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 64, cfg.Artwork.MinSizePx)
	assert.Equal(t, 128, cfg.Artwork.IdealSizePx)
	assert.Equal(t, 15, cfg.Artwork.ResolveTimeoutSec)
	assert.Equal(t, []string{"*.cdn.example", "images.example.org"}, cfg.Fetch.AllowedHosts)
}

func TestLoadFileTOML(t *testing.T) {
	path := writeFile(t, "artwork.toml", `
[logging]
level = "debug"
development = true

[fetch]
retry_max = 5
max_body_bytes = 2048
max_pixels = 1000000
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 5, cfg.Fetch.RetryMax)
	assert.Equal(t, int64(2048), cfg.Fetch.MaxBodyBytes)
	assert.Equal(t, int64(1_000_000), cfg.Fetch.MaxPixels)
	assert.Equal(t, "8000", cfg.Server.Port)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadFile(writeFile(t, "artwork.json", `{}`))
	assert.ErrorContains(t, err, "unsupported config file extension")

	_, err = LoadFile(writeFile(t, "artwork.toml", `[fetch`))
	assert.Error(t, err)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, "artwork.yml", "server:\n  port: \"7000\"\n  host: \"10.0.0.1\"\n")
	t.Setenv(FileEnv, path)
	t.Setenv("PORT", "7100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7100", cfg.Server.Port)
	assert.Equal(t, "10.0.0.1", cfg.Server.Host)
}
