// Package sqlite implements the SQLite storage backend on
// modernc.org/sqlite. It doubles as the backend the engine's own tests
// run against, since it needs no server.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/rampotla586/ut-de-framework/internal/sqlgen"
	"github.com/rampotla586/ut-de-framework/internal/storage"
)

type backend struct {
	storage.SQLConn
}

func init() {
	storage.Register("sqlite", New)
}

// New opens a SQLite database. Database/Schema/Role in cfg are ignored:
// SQLite has a single flat namespace.
func New(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	// The engine is single-threaded but audit writes may interleave with
	// open result sets; one connection sidesteps table-lock surprises.
	db.SetMaxOpenConns(1)
	return &backend{SQLConn: storage.SQLConn{DB: db}}, nil
}

func (b *backend) Close() { _ = b.DB.Close() }

func (b *backend) Dialect() sqlgen.Dialect { return sqlgen.SQLite }

func (b *backend) IsDuplicateColumn(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "duplicate column name")
}

// EnsureLogSequence creates the single-row counter table backing
// NextLogID. SQLite has no sequence objects.
func (b *backend) EnsureLogSequence(ctx context.Context) error {
	if _, err := b.Exec(ctx, `CREATE TABLE IF NOT EXISTS "ingestion_log_seq" ("id" INTEGER NOT NULL);`); err != nil {
		return err
	}
	_, err := b.Exec(ctx, `INSERT INTO "ingestion_log_seq" ("id") SELECT 0 WHERE NOT EXISTS (SELECT 1 FROM "ingestion_log_seq");`)
	return err
}

func (b *backend) NextLogID(ctx context.Context) (int64, error) {
	var id int64
	err := b.QueryRow(ctx, `UPDATE "ingestion_log_seq" SET "id" = "id" + 1 RETURNING "id";`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("sqlite: next log id: %w", err)
	}
	return id, nil
}

var _ storage.Backend = (*backend)(nil)
