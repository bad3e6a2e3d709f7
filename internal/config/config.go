// Package config loads the ledger service configuration from an optional YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends selectable through configuration.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Log       LogConfig       `yaml:"log"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"FA2_ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"FA2_SHUTDOWN_TIMEOUT"`
}

// UnmarshalYAML parses shutdown_timeout as a duration string; yaml.v3 has no
// native time.Duration support.
func (s *ServerConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Addr            string `yaml:"addr"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Addr != "" {
		s.Addr = raw.Addr
	}
	if raw.ShutdownTimeout != "" {
		d, err := time.ParseDuration(raw.ShutdownTimeout)
		if err != nil {
			return fmt.Errorf("server.shutdown_timeout: %w", err)
		}
		s.ShutdownTimeout = d
	}
	return nil
}

// StoreConfig selects and parameterizes the key-value backend.
type StoreConfig struct {
	Backend       string `yaml:"backend" env:"FA2_STORE_BACKEND"`
	SQLitePath    string `yaml:"sqlite_path" env:"FA2_SQLITE_PATH"`
	PostgresDSN   string `yaml:"postgres_dsn" env:"FA2_POSTGRES_DSN"`
	RedisAddr     string `yaml:"redis_addr" env:"FA2_REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"FA2_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"FA2_REDIS_DB"`
	RedisPrefix   string `yaml:"redis_prefix" env:"FA2_REDIS_PREFIX"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `yaml:"level" env:"FA2_LOG_LEVEL"`
}

// RateLimitConfig controls per-caller request throttling. A zero
// RequestsPerSecond disables the limiter.
type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second" env:"FA2_RATE_LIMIT_RPS"`
	Burst             int `yaml:"burst" env:"FA2_RATE_LIMIT_BURST"`
}

// Default returns the configuration used when nothing else is specified: an
// in-memory store on the sandbox port.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8933",
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Backend:    BackendMemory,
			SQLitePath: "fa2-ledger.db",
			RedisAddr:  "localhost:6379",
		},
		Log: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			Burst: 20,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then environment overrides. A .env file in the working directory is
// honored for local development.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := envdecode.Decode(&cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return Config{}, fmt.Errorf("decode env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field consistency.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store.postgres_dsn is required for the postgres backend")
		}
	case BackendRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("store.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit values must not be negative")
	}
	return nil
}
