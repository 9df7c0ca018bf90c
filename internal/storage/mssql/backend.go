// Package mssql implements the SQL Server storage backend on
// github.com/microsoft/go-mssqldb.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	mssqldb "github.com/microsoft/go-mssqldb"

	"github.com/rampotla586/ut-de-framework/internal/sqlgen"
	"github.com/rampotla586/ut-de-framework/internal/storage"
)

// Msg 2705: "Column names in each table must be unique." Raised by ADD
// for a column that already exists.
const sqlServerDuplicateColumn = 2705

type backend struct {
	storage.SQLConn
	schema string
}

func init() {
	storage.Register("mssql", New)
}

// New opens a SQL Server connection pool.
func New(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &backend{SQLConn: storage.SQLConn{DB: db}, schema: cfg.Schema}, nil
}

func (b *backend) Close() { _ = b.DB.Close() }

func (b *backend) Dialect() sqlgen.Dialect { return sqlgen.MSSQL }

func (b *backend) IsDuplicateColumn(err error) bool {
	var srvErr mssqldb.Error
	if errors.As(err, &srvErr) {
		return srvErr.Number == sqlServerDuplicateColumn
	}
	return false
}

func (b *backend) EnsureLogSequence(ctx context.Context) error {
	_, err := b.Exec(ctx, fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'SO') IS NULL CREATE SEQUENCE %s AS BIGINT START WITH 1;",
		b.seqDotted(), b.seqQuoted(),
	))
	return err
}

func (b *backend) NextLogID(ctx context.Context) (int64, error) {
	var id int64
	err := b.QueryRow(ctx, fmt.Sprintf("SELECT NEXT VALUE FOR %s;", b.seqQuoted())).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("mssql: next log id: %w", err)
	}
	return id, nil
}

const logSeqName = "ingestion_log_seq"

func (b *backend) seqDotted() string {
	if b.schema != "" {
		return b.schema + "." + logSeqName
	}
	return logSeqName
}

func (b *backend) seqQuoted() string {
	d := sqlgen.MSSQL
	if b.schema != "" {
		return d.QuoteIdent(b.schema) + "." + d.QuoteIdent(logSeqName)
	}
	return d.QuoteIdent(logSeqName)
}

var _ storage.Backend = (*backend)(nil)
