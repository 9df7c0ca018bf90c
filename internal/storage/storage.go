// Package storage defines the backend seam between the ingestion engine
// and the warehouse, plus the factory registry backends self-register
// into. Each backend implements these semantics in its own idiomatic way
// (pgx pool for Postgres, database/sql for SQL Server, SQLite and
// Snowflake), while the engine only sees DB/Backend.
package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/rampotla586/ut-de-framework/internal/sqlgen"
)

// Config is the explicit session configuration for a backend. Database,
// Schema and Role are threaded through to statement qualification and
// session setup; nothing relies on an ambient "current schema".
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is
//     backend-specific.
//   - Role is only meaningful on backends with session roles (Snowflake);
//     others ignore it.
type Config struct {
	Kind     string
	DSN      string
	Database string
	Schema   string
	Role     string
}

// Ref qualifies a table name with the configured database and schema.
func (c Config) Ref(name string) sqlgen.TableRef {
	return sqlgen.TableRef{Database: c.Database, Schema: c.Schema, Name: name}
}

// Rows is the subset of result-set behavior the engine consumes. Both
// pgx.Rows and *sql.Rows adapt onto it.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Row is a single-row result.
type Row interface {
	Scan(dest ...any) error
}

// DB is the minimal execution seam the engine needs: run a statement,
// run a query, read rows. Every call is synchronous and carries the
// caller's context; no timeout is applied here.
type DB interface {
	// Exec runs a statement and returns the backend-reported affected
	// row count (0 when the backend does not report one).
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	Query(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
}

// Backend is a connected warehouse backend.
//
// IMPORTANT: This interface is intentionally minimal and focused on the
// operations the ingestion engine needs. Anything statement-shaped goes
// through DB with SQL rendered by the backend's Dialect.
type Backend interface {
	DB

	// Dialect returns the SQL dialect statements for this backend are
	// rendered with.
	Dialect() sqlgen.Dialect

	// IsDuplicateColumn reports whether err is this backend's "column
	// already exists" condition, which schema management treats as
	// success.
	IsDuplicateColumn(err error) bool

	// EnsureLogSequence idempotently creates the id source backing
	// NextLogID.
	EnsureLogSequence(ctx context.Context) error

	// NextLogID returns a fresh unique identifier for an audit log row.
	NextLogID(ctx context.Context) (int64, error)

	// Close releases pooled connections. Treat as "call once".
	Close()
}

// NativeCopier is implemented by backends with a server-side bulk load
// path from a warehouse-managed stage. The staging loader prefers it
// over the portable row path when the ingestion's stage kind asks for it.
type NativeCopier interface {
	// CopyIntoStaging bulk-copies files under stageObject/path into the
	// staging table using a warehouse-defined file format, skipping
	// malformed rows, and returns the number of rows loaded.
	CopyIntoStaging(ctx context.Context, table sqlgen.TableRef, stageObject, formatName, path string) (int64, error)
}

// ---- backend factories ----

type factory func(ctx context.Context, cfg Config) (Backend, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//   - The kind string becomes the lookup key used by Open.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered. This is intentional to fail fast
//     and avoid ambiguous backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// Open constructs a Backend using the registered factory for cfg.Kind.
//
// Concurrency:
//   - Safe for concurrent use with Register. Open takes a read lock
//     while selecting the factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing storage.Kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
