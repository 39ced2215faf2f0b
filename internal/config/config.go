// Package config provides configuration loading using koanf.
// Precedence: environment variables → compiled defaults.
package config

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/pyresume/dashclient/internal/domain"
)

// EnvPrefix scopes the environment variables read by Load. Nested keys use a
// double underscore: DASHCLIENT_API__BASE_URL maps to api.base_url.
const EnvPrefix = "DASHCLIENT_"

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config holds all client configuration.
type Config struct {
	// Environment identifier: "local", "dev", "prod"
	Environment string `koanf:"environment"`

	// Logging configuration
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	API     APIConfig     `koanf:"api"`
	Refresh RefreshConfig `koanf:"refresh"`
	Store   StoreConfig   `koanf:"store"`
	Redis   RedisConfig   `koanf:"redis"`

	// OpenTelemetry configuration
	OTEL OTELConfig `koanf:"otel"`
}

// APIConfig holds the dashboard API endpoint settings.
type APIConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// RefreshConfig bounds the shared credential renewal call.
type RefreshConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// StoreConfig selects and configures the credential store backend.
type StoreConfig struct {
	Backend   string        `koanf:"backend"`    // memory | file | redis
	Path      string        `koanf:"path"`       // file backend; empty uses the user config dir
	SessionID string        `koanf:"session_id"` // redis backend key scope
	TTL       time.Duration `koanf:"ttl"`        // redis backend; 0 disables expiry
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	Timeout  time.Duration `koanf:"timeout"`
}

// OTELConfig holds OpenTelemetry configuration.
type OTELConfig struct {
	Endpoint    string `koanf:"endpoint"` // Empty disables OTLP export
	ServiceName string `koanf:"service_name"`
}

// defaults returns a Config with compiled default values.
func defaults() *Config {
	return &Config{
		Environment: "local",
		LogLevel:    "info",
		LogFormat:   "text",

		API: APIConfig{
			BaseURL: "http://localhost:8000",
			Timeout: domain.APIRequestTimeout,
		},
		Refresh: RefreshConfig{
			Timeout: domain.RefreshTimeout,
		},
		Store: StoreConfig{
			Backend:   StoreFile,
			SessionID: "default",
			TTL:       domain.SessionTTL,
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			DB:      0,
			Timeout: domain.RedisTimeout,
		},
		OTEL: OTELConfig{
			ServiceName: "dashctl",
		},
	}
}

// Load loads configuration following the precedence:
// 1. Environment variables (highest)
// 2. Compiled defaults (lowest)
//
// Invalid or missing required keys fail the load.
func Load(ctx context.Context) (*Config, error) {
	k := koanf.New(".")

	cfg := defaults()

	err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// envKey maps DASHCLIENT_REDIS__ADDR to redis.addr. Single underscores
// stay part of the key name so log_level and base_url survive.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// validate checks value ranges and environment-specific required keys.
func validate(cfg *Config) error {
	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: api.base_url %q", domain.ErrConfigInvalid, cfg.API.BaseURL)
	}

	switch cfg.Store.Backend {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		return fmt.Errorf("%w: store.backend %q", domain.ErrConfigInvalid, cfg.Store.Backend)
	}

	if cfg.Refresh.Timeout <= 0 {
		return fmt.Errorf("%w: refresh.timeout must be positive", domain.ErrConfigInvalid)
	}

	if cfg.Store.Backend == StoreRedis {
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("%w: redis.addr", domain.ErrConfigRequired)
		}
		if cfg.Store.SessionID == "" {
			return fmt.Errorf("%w: store.session_id", domain.ErrConfigRequired)
		}
	}

	// Bearer tokens never travel over plaintext outside local development.
	if cfg.IsProd() && u.Scheme != "https" {
		return fmt.Errorf("%w: api.base_url must use https in prod", domain.ErrConfigInvalid)
	}

	return nil
}

// IsLocal returns true if running in local development environment.
func (c *Config) IsLocal() bool {
	return c.Environment == "local"
}

// IsProd returns true if running in production environment.
func (c *Config) IsProd() bool {
	return c.Environment == "prod"
}
