package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/layer-3/keeper/adapters/hasher"
	"github.com/layer-3/keeper/adapters/sqlstore"
	"github.com/layer-3/keeper/core"
	"github.com/layer-3/keeper/internal/bootstrap"
	"github.com/layer-3/keeper/internal/config"
	"github.com/layer-3/keeper/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(config.LoadStorage, os.Stdout)
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "keeperctl: %v\n", err)
		stop()
		os.Exit(1)
	}
}

type loader func() (*config.Config, error)

func newApp(load loader, out io.Writer) *cli.App {
	return &cli.App{
		Name:      "keeperctl",
		Usage:     "manage keeper accounts, schema and refresh sessions",
		Writer:    out,
		ErrWriter: out,
		// main reports the error and picks the exit code.
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			migrateCommand(load),
			userCommand(load, out),
			sessionsCommand(load, out),
		},
	}
}

func migrateCommand(load loader) *cli.Command {
	run := func(direction string) cli.ActionFunc {
		return func(c *cli.Context) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			for _, dialect := range sqlDialects(cfg) {
				dsn, err := bootstrap.DSN(cfg, dialect)
				if err != nil {
					return err
				}
				if err := sqlstore.Migrate(dialect, dsn, direction); err != nil {
					return fmt.Errorf("migrate %s %s: %w", dialect, direction, err)
				}
				fmt.Fprintf(c.App.Writer, "%s: migrated %s\n", dialect, direction)
			}
			return nil
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "apply or roll back the SQL schema",
		Subcommands: []*cli.Command{
			{Name: sqlstore.MigrateUp, Usage: "apply all migrations", Action: run(sqlstore.MigrateUp)},
			{Name: sqlstore.MigrateDown, Usage: "roll back all migrations", Action: run(sqlstore.MigrateDown)},
		},
	}
}

func userCommand(load loader, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "manage principals",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "create a principal with a bcrypt password hash",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"KEEPER_PASSWORD"}},
					&cli.StringFlag{Name: "email"},
					&cli.StringFlag{Name: "role", Value: "staff"},
				},
				Action: func(c *cli.Context) error {
					return withStores(c.Context, load, func(ctx context.Context, cfg *config.Config, stores *bootstrap.Stores) error {
						hash, err := hasher.NewBcrypt(cfg.BcryptCost).Hash([]byte(c.String("password")))
						if err != nil {
							return fmt.Errorf("hash password: %w", err)
						}
						err = stores.Directory.Create(ctx, &core.Principal{
							Username:     c.String("username"),
							PasswordHash: hash,
							Email:        c.String("email"),
							Role:         c.String("role"),
						})
						if errors.Is(err, core.ErrPrincipalExists) {
							return cli.Exit(fmt.Sprintf("user %q already exists", c.String("username")), 1)
						}
						if err != nil {
							return err
						}
						fmt.Fprintf(out, "created user %s\n", c.String("username"))
						return nil
					})
				},
			},
			{
				Name:  "exists",
				Usage: "exit 0 when the principal exists, 1 otherwise",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
				},
				Action: func(c *cli.Context) error {
					return withStores(c.Context, load, func(ctx context.Context, _ *config.Config, stores *bootstrap.Stores) error {
						ok, err := stores.Directory.Exists(ctx, c.String("username"))
						if err != nil {
							return err
						}
						if !ok {
							return cli.Exit(fmt.Sprintf("user %q not found", c.String("username")), 1)
						}
						fmt.Fprintf(out, "user %s exists\n", c.String("username"))
						return nil
					})
				},
			},
		},
	}
}

func sessionsCommand(load loader, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "inspect refresh sessions",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list a principal's refresh sessions, oldest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
				},
				Action: func(c *cli.Context) error {
					return withStores(c.Context, load, func(ctx context.Context, cfg *config.Config, stores *bootstrap.Stores) error {
						if cfg.RegistryBackend == config.BackendMemory {
							return errors.New("the memory registry lives inside the server process and cannot be listed")
						}
						lister, ok := stores.SessionLister()
						if !ok {
							return fmt.Errorf("registry backend %s cannot list sessions", cfg.RegistryBackend)
						}
						tokens, err := lister.Sessions(ctx, c.String("username"))
						if err != nil {
							return err
						}
						for i, token := range tokens {
							fmt.Fprintf(out, "%d\t%s\n", i+1, core.Fingerprint(token))
						}
						fmt.Fprintf(out, "%d of %d sessions\n", len(tokens), core.MaxRefreshSessions)
						return nil
					})
				},
			},
		},
	}
}

func withStores(ctx context.Context, load loader, fn func(context.Context, *config.Config, *bootstrap.Stores) error) error {
	cfg, err := load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogPretty).Level(zerolog.WarnLevel)
	stores, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	return fn(ctx, cfg, stores)
}

// sqlDialects returns each SQL backend cfg uses, once
func sqlDialects(cfg *config.Config) []sqlstore.Dialect {
	var out []sqlstore.Dialect
	for _, backend := range []string{cfg.DirectoryBackend, cfg.RegistryBackend} {
		dialect, err := sqlstore.ParseDialect(backend)
		if err != nil {
			continue
		}
		if len(out) == 0 || out[0] != dialect {
			out = append(out, dialect)
		}
	}
	return out
}
