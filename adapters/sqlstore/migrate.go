package sqlstore

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationFS embed.FS

// Migration directions accepted by Migrate
const (
	MigrateUp   = "up"
	MigrateDown = "down"
)

// Migrate applies the bundled migrations for dialect in the given direction.
// Being already at the target version is not an error.
func Migrate(dialect Dialect, dsn string, direction string) error {
	if dsn == "" {
		return errors.New("migrate: dsn is required")
	}
	if direction != MigrateUp && direction != MigrateDown {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}

	var databaseURL string
	switch dialect {
	case DialectPostgres:
		databaseURL = dsn
	case DialectSQLite:
		databaseURL = "sqlite://" + strings.TrimPrefix(dsn, "sqlite://")
	default:
		return fmt.Errorf("migrate: unsupported dialect %q", dialect)
	}

	sourceDriver, err := iofs.New(migrationFS, "migrations/"+string(dialect))
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, databaseURL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch direction {
	case MigrateUp:
		err = m.Up()
	case MigrateDown:
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
