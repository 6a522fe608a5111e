// Package bootstrap opens the storage backends selected by configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/layer-3/keeper/adapters/sqlstore"
	"github.com/layer-3/keeper/adapters/store"
	"github.com/layer-3/keeper/internal/config"
	"github.com/layer-3/keeper/ports"
)

// Stores holds the opened backends. Close releases all of them.
type Stores struct {
	Directory ports.DirectoryAdmin
	Registry  ports.Registry
	// Redis is set when the redis registry or event publishing is enabled.
	Redis redis.UniversalClient

	sql     map[sqlstore.Dialect]*sqlstore.Store
	closers []func() error
}

// Open connects every backend cfg refers to. SQL schemas are migrated on open.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (_ *Stores, err error) {
	s := &Stores{sql: make(map[sqlstore.Dialect]*sqlstore.Store)}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	if cfg.RegistryBackend == config.BackendRedis || cfg.EventsEnabled {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		s.closers = append(s.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		s.Redis = client
	}

	dirStore, err := s.sqlStore(ctx, cfg, cfg.DirectoryBackend)
	if err != nil {
		return nil, err
	}
	s.Directory = sqlstore.NewDirectory(dirStore)

	switch cfg.RegistryBackend {
	case config.BackendMemory:
		log.Warn().Msg("refresh sessions are kept in memory and lost on restart")
		s.Registry = store.NewMemoryRegistry()
	case config.BackendRedis:
		s.Registry = store.NewRedisRegistry(s.Redis, cfg.RefreshTTL())
	case config.BackendPostgres, config.BackendSQLite:
		regStore, err := s.sqlStore(ctx, cfg, cfg.RegistryBackend)
		if err != nil {
			return nil, err
		}
		s.Registry = sqlstore.NewRegistry(regStore)
	default:
		return nil, fmt.Errorf("unknown registry backend %q", cfg.RegistryBackend)
	}

	log.Info().
		Str("directory", cfg.DirectoryBackend).
		Str("registry", cfg.RegistryBackend).
		Msg("storage ready")
	return s, nil
}

// sqlStore opens each dialect at most once so directory and registry can share it
func (s *Stores) sqlStore(ctx context.Context, cfg *config.Config, backend string) (*sqlstore.Store, error) {
	dialect, err := sqlstore.ParseDialect(backend)
	if err != nil {
		return nil, err
	}
	if st, ok := s.sql[dialect]; ok {
		return st, nil
	}

	dsn, err := DSN(cfg, dialect)
	if err != nil {
		return nil, err
	}

	st, err := sqlstore.Open(ctx, sqlstore.Options{Dialect: dialect, DSN: dsn, AutoMigrate: true})
	if err != nil {
		return nil, err
	}
	s.sql[dialect] = st
	s.closers = append(s.closers, st.Close)
	return st, nil
}

// DSN returns the connection string for dialect, creating the SQLite directory if needed
func DSN(cfg *config.Config, dialect sqlstore.Dialect) (string, error) {
	switch dialect {
	case sqlstore.DialectPostgres:
		return cfg.DatabaseURL, nil
	case sqlstore.DialectSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return "", fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		return cfg.SQLitePath, nil
	default:
		return "", fmt.Errorf("unsupported sql dialect %q", dialect)
	}
}

// SessionLister returns the registry as a SessionLister when it supports listing
func (s *Stores) SessionLister() (ports.SessionLister, bool) {
	l, ok := s.Registry.(ports.SessionLister)
	return l, ok
}

// Close releases every backend in reverse order of opening
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
