// Command migrate manages the versioned Postgres schema for the catalog
// and run-log tables: up applies pending scripts, down rolls back,
// version reports the applied version and drop removes everything the
// scripts created.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"

	"github.com/rampotla586/ut-de-framework/internal/config"
	"github.com/rampotla586/ut-de-framework/internal/sqlgen"
	"github.com/rampotla586/ut-de-framework/migrations"

	// database/sql driver the migrator connects through.
	_ "github.com/jackc/pgx/v5/stdlib"
)

const usageLine = "usage: migrate -config <path> | -dsn <dsn> [-schema <name>] [up | down [n] | version | drop -force]"

// migrator is the subset of migrate.Migrate the commands drive.
type migrator interface {
	Up() error
	Steps(n int) error
	Version() (uint, bool, error)
	Drop() error
	Close() error
}

// appDeps are runMain's side-effecting collaborators. main wires the
// real ones; tests substitute fakes.
type appDeps struct {
	loadConfig func(path string) (config.Config, error)
	open       func(ctx context.Context, dsn, schema string) (migrator, error)
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig: config.Load,
		open:       openMigrator,
	}
}

func main() {
	os.Exit(runMain(context.Background(), os.Args[1:], os.Stdout, os.Stderr, defaultDeps()))
}

func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		cfgPath string
		dsn     string
		schema  string
		force   bool
	)
	fs.StringVar(&cfgPath, "config", "", "engine config JSON path; storage.dsn and storage.schema are used")
	fs.StringVar(&dsn, "dsn", "", "Postgres connection string (overrides -config)")
	fs.StringVar(&schema, "schema", "", "schema the tables live in (overrides -config)")
	fs.BoolVar(&force, "force", false, "confirm the drop command")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	cmd := fs.Arg(0)
	if cmd == "" {
		cmd = "up"
	}
	steps := 1
	switch cmd {
	case "up", "version", "drop":
		if fs.NArg() > 1 {
			fmt.Fprintln(stderr, usageLine)
			return 2
		}
	case "down":
		if fs.NArg() > 2 {
			fmt.Fprintln(stderr, usageLine)
			return 2
		}
		if fs.NArg() == 2 {
			n, err := strconv.Atoi(fs.Arg(1))
			if err != nil || n < 1 {
				fmt.Fprintf(stderr, "migrate: bad step count %q\n", fs.Arg(1))
				return 2
			}
			steps = n
		}
	default:
		fmt.Fprintf(stderr, "migrate: unknown command %q\n", cmd)
		fmt.Fprintln(stderr, usageLine)
		return 2
	}
	if cmd == "drop" && !force {
		fmt.Fprintln(stderr, "migrate: drop is destructive, pass -force to confirm")
		return 2
	}

	if dsn == "" {
		if strings.TrimSpace(cfgPath) == "" {
			fmt.Fprintln(stderr, usageLine)
			return 2
		}
		cfg, err := deps.loadConfig(cfgPath)
		if err != nil {
			fmt.Fprintf(stderr, "read config: %v\n", err)
			return 1
		}
		if cfg.Storage.Kind != "postgres" {
			fmt.Fprintf(stderr, "migrations run on postgres storage, config has kind %q\n", cfg.Storage.Kind)
			return 1
		}
		dsn = cfg.Storage.DSN
		if schema == "" {
			schema = cfg.Storage.Schema
		}
	}
	if strings.TrimSpace(dsn) == "" {
		fmt.Fprintln(stderr, "migrate: storage dsn is empty")
		return 1
	}

	m, err := deps.open(ctx, dsn, schema)
	if err != nil {
		fmt.Fprintf(stderr, "open database: %v\n", err)
		return 1
	}
	defer func() {
		if err := m.Close(); err != nil {
			fmt.Fprintf(stderr, "close: %v\n", err)
		}
	}()

	switch cmd {
	case "up":
		err := m.Up()
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			fmt.Fprintln(stdout, "no pending migrations")
		case err != nil:
			fmt.Fprintf(stderr, "up: %v\n", err)
			return 1
		default:
			fmt.Fprintln(stdout, "migrations applied")
		}
	case "down":
		err := m.Steps(-steps)
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			fmt.Fprintln(stdout, "nothing to roll back")
		case err != nil:
			fmt.Fprintf(stderr, "down: %v\n", err)
			return 1
		default:
			fmt.Fprintf(stdout, "rolled back %d migration(s)\n", steps)
		}
	case "version":
		v, dirty, err := m.Version()
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			fmt.Fprintln(stdout, "no migrations applied")
		case err != nil:
			fmt.Fprintf(stderr, "version: %v\n", err)
			return 1
		case dirty:
			fmt.Fprintf(stdout, "version %d (dirty)\n", v)
		default:
			fmt.Fprintf(stdout, "version %d\n", v)
		}
	case "drop":
		if err := m.Drop(); err != nil {
			fmt.Fprintf(stderr, "drop: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, "all objects dropped")
	}
	return 0
}

// pgMigrator owns both the migrate instance and the database handle it
// runs on.
type pgMigrator struct {
	m  *migrate.Migrate
	db *sql.DB
}

func (p *pgMigrator) Up() error                    { return p.m.Up() }
func (p *pgMigrator) Steps(n int) error            { return p.m.Steps(n) }
func (p *pgMigrator) Version() (uint, bool, error) { return p.m.Version() }
func (p *pgMigrator) Drop() error                  { return p.m.Drop() }

func (p *pgMigrator) Close() error {
	srcErr, dbErr := p.m.Close()
	return errors.Join(srcErr, dbErr, p.db.Close())
}

func openMigrator(ctx context.Context, dsn, schema string) (migrator, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// One pooled connection, so the search_path set below holds for
	// every statement the migrator issues.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if schema != "" {
		ident := sqlgen.Postgres.QuoteIdent(schema)
		if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+ident+";"); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure schema %s: %w", schema, err)
		}
		if _, err := db.ExecContext(ctx, "SET search_path TO "+ident+";"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set search_path: %w", err)
		}
	}
	m, err := migrations.New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &pgMigrator{m: m, db: db}, nil
}
