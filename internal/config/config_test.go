package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL())
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL())
	assert.Equal(t, 3*time.Second, cfg.StorageTimeoutDuration())
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, BackendMemory, cfg.RegistryBackend)
	assert.Equal(t, BackendSQLite, cfg.DirectoryBackend)
	assert.False(t, cfg.EventsEnabled)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("JWT_ACCESS_TTL", "5m")
	t.Setenv("JWT_REFRESH_TTL", "24h")
	t.Setenv("REGISTRY_BACKEND", "Redis")
	t.Setenv("STORAGE_TIMEOUT", "750ms")
	t.Setenv("BCRYPT_COST", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.AccessTTL())
	assert.Equal(t, 24*time.Hour, cfg.RefreshTTL())
	assert.Equal(t, 750*time.Millisecond, cfg.StorageTimeoutDuration())
	assert.Equal(t, BackendRedis, cfg.RegistryBackend)
	assert.Equal(t, 10, cfg.BcryptCost)
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "too-short")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			HTTPAddr:         ":9000",
			JWTSecret:        testSecret,
			RegistryBackend:  BackendMemory,
			DirectoryBackend: BackendSQLite,
			SQLitePath:       "keeper.db",
		}
	}

	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"no addr":              func(c *Config) { c.HTTPAddr = "" },
		"bad cost":             func(c *Config) { c.BcryptCost = 40 },
		"unknown registry":     func(c *Config) { c.RegistryBackend = "etcd" },
		"unknown directory":    func(c *Config) { c.DirectoryBackend = "memory" },
		"postgres without dsn": func(c *Config) { c.RegistryBackend = BackendPostgres },
		"sqlite without path":  func(c *Config) { c.SQLitePath = "" },
		"events without redis": func(c *Config) { c.EventsEnabled = true },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			require.Error(t, c.Validate())
		})
	}
}

func TestDurationFallbacks(t *testing.T) {
	c := &Config{JWTAccessTTL: "nonsense", JWTRefreshTTL: "-1h", StorageTimeout: ""}
	assert.Equal(t, 15*time.Minute, c.AccessTTL())
	assert.Equal(t, 168*time.Hour, c.RefreshTTL())
	assert.Equal(t, 3*time.Second, c.StorageTimeoutDuration())
}

func TestLoadStorage_SkipsSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("REGISTRY_BACKEND", "sqlite")

	cfg, err := LoadStorage()
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.RegistryBackend)

	t.Setenv("REGISTRY_BACKEND", "etcd")
	_, err = LoadStorage()
	require.Error(t, err)
}
