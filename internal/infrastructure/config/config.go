package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Window    WindowConfig    `yaml:"window"`
	Renderer  RendererConfig  `yaml:"renderer"`
	Session   SessionConfig   `yaml:"session"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000" yaml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host"`
}

// WindowConfig holds the default container bounds of new windows.
type WindowConfig struct {
	Width  int `envconfig:"WINDOW_WIDTH" default:"800" yaml:"width"`
	Height int `envconfig:"WINDOW_HEIGHT" default:"600" yaml:"height"`
}

// RendererConfig holds headless renderer configuration.
type RendererConfig struct {
	UserAgent     string        `envconfig:"RENDERER_USER_AGENT" default:"navhost/1.0" yaml:"user_agent"`
	Timeout       time.Duration `envconfig:"RENDERER_TIMEOUT" default:"30s" yaml:"timeout"`
	MaxRetries    int           `envconfig:"RENDERER_MAX_RETRIES" default:"2" yaml:"max_retries"`
	RPS           float64       `envconfig:"RENDERER_RPS" default:"0" yaml:"rps"`
	MaxBody       int64         `envconfig:"RENDERER_MAX_BODY" default:"10485760" yaml:"max_body"`
	FollowRefresh bool          `envconfig:"RENDERER_FOLLOW_REFRESH" default:"false" yaml:"follow_refresh"`
}

// SessionConfig holds session factory breaker configuration.
type SessionConfig struct {
	BreakerFailures uint32        `envconfig:"SESSION_BREAKER_FAILURES" default:"5" yaml:"breaker_failures"`
	BreakerTimeout  time.Duration `envconfig:"SESSION_BREAKER_TIMEOUT" default:"30s" yaml:"breaker_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
	// Global shares one bucket between all clients instead of one per IP.
	Global bool `envconfig:"RATE_LIMIT_GLOBAL" default:"false" yaml:"global"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
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
		Window: WindowConfig{
			Width:  800,
			Height: 600,
		},
		Renderer: RendererConfig{
			UserAgent:  "navhost/1.0",
			Timeout:    30 * time.Second,
			MaxRetries: 2,
			MaxBody:    10 << 20,
		},
		Session: SessionConfig{
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
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
	}
}

// Validate rejects values that would leave the host unusable.
func (c *Config) Validate() error {
	if c.Window.Width < 0 || c.Window.Height < 0 {
		return fmt.Errorf("window bounds must not be negative: %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Renderer.Timeout <= 0 {
		return fmt.Errorf("renderer timeout must be positive: %s", c.Renderer.Timeout)
	}
	if c.Renderer.MaxRetries < 0 {
		return fmt.Errorf("renderer max retries must not be negative: %d", c.Renderer.MaxRetries)
	}
	if c.Session.BreakerFailures == 0 {
		return fmt.Errorf("session breaker failures must be at least 1")
	}
	return nil
}
