// Package sqlstore persists principals and refresh sessions in Postgres or SQLite.
//
// One row per principal holds that principal's refresh tokens as a JSON array.
// Mutations read and rewrite the row inside a transaction that owns it: Postgres
// takes the row lock with SELECT ... FOR UPDATE, SQLite runs over a single
// connection so transactions never interleave.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/layer-3/keeper/core"
)

// Dialect selects the SQL backend
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect validates a dialect name from configuration
func ParseDialect(name string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(name))); d {
	case DialectPostgres, DialectSQLite:
		return d, nil
	default:
		return "", fmt.Errorf("unsupported sql dialect %q", name)
	}
}

// Options configures Open
type Options struct {
	Dialect Dialect
	// DSN is a postgres:// URL for Postgres or a file path for SQLite.
	DSN string
	// AutoMigrate applies bundled migrations before returning.
	AutoMigrate bool
	Clock       core.Clock
}

// Store is an open database shared by Directory and Registry
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     core.Clock
	q       queries
}

// Open connects to the database described by opts
func Open(ctx context.Context, opts Options) (*Store, error) {
	if strings.TrimSpace(opts.DSN) == "" {
		return nil, errors.New("sqlstore: dsn is required")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	var (
		db  *sql.DB
		err error
	)
	switch opts.Dialect {
	case DialectPostgres:
		db, err = sql.Open("pgx", opts.DSN)
	case DialectSQLite:
		db, err = sql.Open("sqlite", sqliteDSN(opts.DSN))
		if err == nil {
			db.SetMaxOpenConns(1)
		}
	default:
		return nil, fmt.Errorf("sqlstore: unsupported dialect %q", opts.Dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Dialect, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Dialect, err)
	}

	if opts.AutoMigrate {
		if err := Migrate(opts.Dialect, opts.DSN, MigrateUp); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	return &Store{
		db:      db,
		dialect: opts.Dialect,
		now:     opts.Clock,
		q:       queriesFor(opts.Dialect),
	}, nil
}

// DB returns the underlying handle
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the backend the store was opened with
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close releases the database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func wrapStorage(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", core.ErrStorage, op, err)
}

type queries struct {
	findPrincipal string
	touchLogin    string
	createPrinc   string
	existsPrinc   string
	ensureSession string
	lockSession   string
	readSession   string
	writeSession  string
}

func queriesFor(d Dialect) queries {
	q := queries{
		findPrincipal: `SELECT username, password_hash, role, email, created_at, last_login_at FROM principals WHERE username = $1`,
		touchLogin:    `UPDATE principals SET last_login_at = $2 WHERE username = $1`,
		createPrinc:   `INSERT INTO principals (username, password_hash, role, email, created_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (username) DO NOTHING`,
		existsPrinc:   `SELECT EXISTS (SELECT 1 FROM principals WHERE username = $1)`,
		ensureSession: `INSERT INTO refresh_sessions (username, tokens, updated_at) VALUES ($1, '[]', $2) ON CONFLICT (username) DO NOTHING`,
		lockSession:   `SELECT tokens FROM refresh_sessions WHERE username = $1 FOR UPDATE`,
		readSession:   `SELECT tokens FROM refresh_sessions WHERE username = $1`,
		writeSession:  `UPDATE refresh_sessions SET tokens = $2, updated_at = $3 WHERE username = $1`,
	}
	if d == DialectSQLite {
		// SQLite has no row locks; the single connection serializes transactions.
		q.lockSession = q.readSession
		q = q.rebind()
	}
	return q
}

// rebind rewrites $N placeholders to SQLite's numbered ?N form
func (q queries) rebind() queries {
	r := strings.NewReplacer("$", "?")
	return queries{
		findPrincipal: r.Replace(q.findPrincipal),
		touchLogin:    r.Replace(q.touchLogin),
		createPrinc:   r.Replace(q.createPrinc),
		existsPrinc:   r.Replace(q.existsPrinc),
		ensureSession: r.Replace(q.ensureSession),
		lockSession:   r.Replace(q.lockSession),
		readSession:   r.Replace(q.readSession),
		writeSession:  r.Replace(q.writeSession),
	}
}
