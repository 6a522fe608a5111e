package sqlstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/keeper/adapters/store/registrytest"
	"github.com/layer-3/keeper/core"
	"github.com/layer-3/keeper/ports"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openSQLiteTest(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keeper.db")
	s, err := Open(context.Background(), Options{
		Dialect:     DialectSQLite,
		DSN:         path,
		AutoMigrate: true,
		Clock:       func() time.Time { return testNow },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// openPostgresTest connects to KEEPER_TEST_DATABASE_URL and empties the tables.
func openPostgresTest(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("KEEPER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("KEEPER_TEST_DATABASE_URL not set")
	}
	s, err := Open(context.Background(), Options{Dialect: DialectPostgres, DSN: dsn, AutoMigrate: true})
	require.NoError(t, err)
	_, err = s.DB().Exec(`TRUNCATE principals, refresh_sessions`)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect(" Postgres ")
	require.NoError(t, err)
	assert.Equal(t, DialectPostgres, d)

	d, err = ParseDialect("sqlite")
	require.NoError(t, err)
	assert.Equal(t, DialectSQLite, d)

	_, err = ParseDialect("mysql")
	require.Error(t, err)
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open(context.Background(), Options{Dialect: DialectSQLite})
	require.Error(t, err)

	_, err = Open(context.Background(), Options{Dialect: "oracle", DSN: "x"})
	require.Error(t, err)
}

func TestQueries_SQLiteUsesNumberedPlaceholders(t *testing.T) {
	q := queriesFor(DialectSQLite)
	assert.Equal(t, `UPDATE refresh_sessions SET tokens = ?2, updated_at = ?3 WHERE username = ?1`, q.writeSession)
	assert.NotContains(t, q.lockSession, "FOR UPDATE")

	pg := queriesFor(DialectPostgres)
	assert.Contains(t, pg.lockSession, "FOR UPDATE")
}

func TestSQLiteRegistry_Contract(t *testing.T) {
	registrytest.Run(t, func(t *testing.T) ports.Registry {
		return NewRegistry(openSQLiteTest(t))
	})
}

func TestPostgresRegistry_Contract(t *testing.T) {
	registrytest.Run(t, func(t *testing.T) ports.Registry {
		return NewRegistry(openPostgresTest(t))
	})
}

func TestSQLiteRegistry_Sessions(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(openSQLiteTest(t))

	sessions, err := r.Sessions(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, sessions)

	for _, tok := range []string{"r1", "r2"} {
		_, err := r.Register(ctx, "alice", tok)
		require.NoError(t, err)
	}

	sessions, err = r.Sessions(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, sessions)
}

func TestSQLiteRegistry_ClosedDatabaseIsStorageError(t *testing.T) {
	ctx := context.Background()
	s := openSQLiteTest(t)
	r := NewRegistry(s)
	require.NoError(t, s.Close())

	_, err := r.Register(ctx, "alice", "r1")
	require.ErrorIs(t, err, core.ErrStorage)
	_, err = r.IsActive(ctx, "alice", "r1")
	require.ErrorIs(t, err, core.ErrStorage)
	_, err = r.Revoke(ctx, "alice", "r1")
	require.ErrorIs(t, err, core.ErrStorage)
}

func TestSQLiteDirectory(t *testing.T) {
	ctx := context.Background()
	d := NewDirectory(openSQLiteTest(t))

	_, err := d.FindByUsername(ctx, "alice")
	require.ErrorIs(t, err, core.ErrPrincipalNotFound)

	exists, err := d.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, d.Create(ctx, &core.Principal{
		Username:     "alice",
		PasswordHash: "$2a$04$hash",
		Email:        "alice@example.com",
	}))
	require.ErrorIs(t, d.Create(ctx, &core.Principal{Username: "alice", PasswordHash: "x"}), core.ErrPrincipalExists)
	require.ErrorIs(t, d.Create(ctx, &core.Principal{Username: "bob"}), core.ErrValidation)

	exists, err = d.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)

	p, err := d.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, "$2a$04$hash", p.PasswordHash)
	assert.Equal(t, "staff", p.Role)
	assert.Equal(t, "alice@example.com", p.Email)
	assert.Equal(t, testNow, p.CreatedAt)
	assert.True(t, p.LastLoginAt.IsZero())

	loginAt := testNow.Add(time.Hour)
	require.NoError(t, d.TouchLastLogin(ctx, "alice", loginAt))
	require.NoError(t, d.TouchLastLogin(ctx, "ghost", loginAt))

	p, err = d.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, loginAt, p.LastLoginAt)
}

func TestMigrate_DownThenUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keeper.db")

	require.NoError(t, Migrate(DialectSQLite, path, MigrateUp))
	require.NoError(t, Migrate(DialectSQLite, path, MigrateUp), "already at latest is not an error")
	require.NoError(t, Migrate(DialectSQLite, path, MigrateDown))
	require.NoError(t, Migrate(DialectSQLite, path, MigrateUp))

	require.Error(t, Migrate(DialectSQLite, path, "sideways"))
	require.Error(t, Migrate(DialectSQLite, "", MigrateUp))
}
