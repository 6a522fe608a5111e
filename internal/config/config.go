// Package config loads and validates keeper configuration from the environment and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Registry backends
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// MinSecretLength is the shortest accepted JWT_SECRET
const MinSecretLength = 32

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :9000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// JWTSecret is the HMAC key for signing tokens. Loaded once at start.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31) used when creating accounts.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// RegistryBackend selects where refresh sessions live: memory, redis, postgres or sqlite.
	RegistryBackend string `mapstructure:"REGISTRY_BACKEND"`
	// DirectoryBackend selects where principals live: postgres or sqlite.
	DirectoryBackend string `mapstructure:"DIRECTORY_BACKEND"`
	RedisURL         string `mapstructure:"REDIS_URL"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`
	// StorageTimeout bounds every registry and directory call.
	StorageTimeout string `mapstructure:"STORAGE_TIMEOUT"`

	// EventsEnabled publishes session events to a Redis stream through watermill.
	EventsEnabled     bool   `mapstructure:"EVENTS_ENABLED"`
	EventsTopicPrefix string `mapstructure:"EVENTS_TOPIC_PREFIX"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`
	GinMode   string `mapstructure:"GIN_MODE"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored. Env vars override .env.
func Load() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadStorage is Load for tools that only touch storage; JWT_SECRET and HTTP_ADDR are not checked.
func LoadStorage() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateStorage(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func read() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":9000")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("REGISTRY_BACKEND", BackendMemory)
	v.SetDefault("DIRECTORY_BACKEND", BackendSQLite)
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SQLITE_PATH", "./data/keeper.db")
	v.SetDefault("STORAGE_TIMEOUT", "3s")
	v.SetDefault("EVENTS_ENABLED", false)
	v.SetDefault("EVENTS_TOPIC_PREFIX", "keeper.session")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("GIN_MODE", "release")
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if len(c.JWTSecret) < MinSecretLength {
		return fmt.Errorf("config: JWT_SECRET must be at least %d bytes", MinSecretLength)
	}
	return c.ValidateStorage()
}

// ValidateStorage checks the backend selection and the settings each backend needs
func (c *Config) ValidateStorage() error {
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	c.RegistryBackend = strings.ToLower(strings.TrimSpace(c.RegistryBackend))
	switch c.RegistryBackend {
	case BackendMemory, BackendRedis, BackendPostgres, BackendSQLite:
	default:
		return fmt.Errorf("config: unknown REGISTRY_BACKEND %q", c.RegistryBackend)
	}

	c.DirectoryBackend = strings.ToLower(strings.TrimSpace(c.DirectoryBackend))
	switch c.DirectoryBackend {
	case BackendPostgres, BackendSQLite:
	default:
		return fmt.Errorf("config: unknown DIRECTORY_BACKEND %q", c.DirectoryBackend)
	}

	if c.usesBackend(BackendPostgres) && c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL must be set for the postgres backend")
	}
	if c.usesBackend(BackendSQLite) && c.SQLitePath == "" {
		return errors.New("config: SQLITE_PATH must be set for the sqlite backend")
	}
	if (c.RegistryBackend == BackendRedis || c.EventsEnabled) && c.RedisURL == "" {
		return errors.New("config: REDIS_URL must be set for redis registry or events")
	}
	return nil
}

func (c *Config) usesBackend(name string) bool {
	return c.RegistryBackend == name || c.DirectoryBackend == name
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, 15*time.Minute)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseDuration(c.JWTRefreshTTL, 168*time.Hour)
}

// StorageTimeoutDuration parses StorageTimeout. Returns 3s if unset or invalid.
func (c *Config) StorageTimeoutDuration() time.Duration {
	return parseDuration(c.StorageTimeout, 3*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
