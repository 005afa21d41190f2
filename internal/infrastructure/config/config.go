package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// FileEnv names the environment variable pointing at an optional config file
const FileEnv = "ARTWORK_CONFIG"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Artwork   ArtworkConfig   `yaml:"artwork" toml:"artwork"`
	Fetch     FetchConfig     `yaml:"fetch" toml:"fetch"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" yaml:"port" toml:"port"`
	Host string `envconfig:"HOST" yaml:"host" toml:"host"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development"`
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled" toml:"enabled"`
}

// ArtworkConfig holds image selection configuration.
type ArtworkConfig struct {
	MinSizePx         int `envconfig:"ARTWORK_MIN_SIZE" yaml:"min_size_px" toml:"min_size_px"`
	IdealSizePx       int `envconfig:"ARTWORK_IDEAL_SIZE" yaml:"ideal_size_px" toml:"ideal_size_px"`
	ResolveTimeoutSec int `envconfig:"ARTWORK_RESOLVE_TIMEOUT" yaml:"resolve_timeout_sec" toml:"resolve_timeout_sec"`
	MaxSessions       int `envconfig:"ARTWORK_MAX_SESSIONS" yaml:"max_sessions" toml:"max_sessions"`
}

// FetchConfig holds outbound image fetch configuration.
type FetchConfig struct {
	TimeoutSec        int      `envconfig:"FETCH_TIMEOUT" yaml:"timeout_sec" toml:"timeout_sec"`
	RetryMax          int      `envconfig:"FETCH_RETRY_MAX" yaml:"retry_max" toml:"retry_max"`
	RequestsPerSecond float64  `envconfig:"FETCH_RPS" yaml:"requests_per_second" toml:"requests_per_second"`
	MaxBodyBytes      int64    `envconfig:"FETCH_MAX_BODY_BYTES" yaml:"max_body_bytes" toml:"max_body_bytes"`
	MaxPixels         int64    `envconfig:"FETCH_MAX_PIXELS" yaml:"max_pixels" toml:"max_pixels"`
	AllowedHosts      []string `envconfig:"FETCH_ALLOWED_HOSTS" yaml:"allowed_hosts" toml:"allowed_hosts"`
	UserAgent         string   `envconfig:"FETCH_USER_AGENT" yaml:"user_agent" toml:"user_agent"`
}

// Load builds configuration from defaults, the optional file named by
// ARTWORK_CONFIG, and environment variables, in that order of precedence
// (environment wins).
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile builds configuration from defaults and the given file only.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Artwork: ArtworkConfig{
			MinSizePx:         114,
			IdealSizePx:       256,
			ResolveTimeoutSec: 15,
			MaxSessions:       1000,
		},
		Fetch: FetchConfig{
			TimeoutSec:        10,
			RetryMax:          2,
			RequestsPerSecond: 0,
			MaxBodyBytes:      10 * 1024 * 1024,
			MaxPixels:         25_000_000,
			UserAgent:         "AgentOS-Artwork/1.0",
		},
	}
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	switch {
	case c.Artwork.MinSizePx <= 0:
		return fmt.Errorf("invalid config: artwork min size must be positive, got %d", c.Artwork.MinSizePx)
	case c.Artwork.IdealSizePx < c.Artwork.MinSizePx:
		return fmt.Errorf("invalid config: artwork ideal size %d is below min size %d", c.Artwork.IdealSizePx, c.Artwork.MinSizePx)
	case c.Artwork.ResolveTimeoutSec <= 0:
		return fmt.Errorf("invalid config: resolve timeout must be positive, got %d", c.Artwork.ResolveTimeoutSec)
	case c.Fetch.MaxBodyBytes <= 0:
		return fmt.Errorf("invalid config: fetch body limit must be positive, got %d", c.Fetch.MaxBodyBytes)
	case c.Fetch.MaxPixels <= 0:
		return fmt.Errorf("invalid config: fetch pixel budget must be positive, got %d", c.Fetch.MaxPixels)
	case c.Fetch.RetryMax < 0:
		return fmt.Errorf("invalid config: fetch retry max must not be negative, got %d", c.Fetch.RetryMax)
	}
	return nil
}

// mergeFile decodes a YAML or TOML file over the current values
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return fmt.Errorf("unsupported config file extension %q", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}
