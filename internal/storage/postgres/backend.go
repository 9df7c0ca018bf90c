// Package postgres implements the Postgres storage backend on pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rampotla586/ut-de-framework/internal/sqlgen"
	"github.com/rampotla586/ut-de-framework/internal/storage"
)

// duplicate_column in the Postgres error-code catalog.
const pgDuplicateColumn = "42701"

const logSeqName = "ingestion_log_seq"

type backend struct {
	pool   *pgxpool.Pool
	schema string
}

func init() {
	storage.Register("postgres", New)
}

// New creates a Postgres backend from cfg. Schema qualification is done
// per statement by the engine; the pool itself carries no session state.
func New(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &backend{pool: pool, schema: cfg.Schema}, nil
}

func (b *backend) Close() { b.pool.Close() }

func (b *backend) Dialect() sqlgen.Dialect { return sqlgen.Postgres }

func (b *backend) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := b.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (b *backend) Query(ctx context.Context, query string, args ...any) (storage.Rows, error) {
	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	// pgx.Rows already satisfies the storage.Rows subset.
	return rows, nil
}

func (b *backend) QueryRow(ctx context.Context, query string, args ...any) storage.Row {
	return b.pool.QueryRow(ctx, query, args...)
}

func (b *backend) IsDuplicateColumn(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgDuplicateColumn
	}
	return false
}

func (b *backend) EnsureLogSequence(ctx context.Context) error {
	_, err := b.Exec(ctx, fmt.Sprintf("CREATE SEQUENCE IF NOT EXISTS %s;", b.seqRef()))
	return err
}

func (b *backend) NextLogID(ctx context.Context) (int64, error) {
	var id int64
	err := b.QueryRow(ctx, fmt.Sprintf("SELECT nextval('%s');", b.seqRef())).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: next log id: %w", err)
	}
	return id, nil
}

func (b *backend) seqRef() string {
	d := sqlgen.Postgres
	if b.schema != "" {
		return d.QuoteIdent(b.schema) + "." + d.QuoteIdent(logSeqName)
	}
	return d.QuoteIdent(logSeqName)
}

var _ storage.Backend = (*backend)(nil)
