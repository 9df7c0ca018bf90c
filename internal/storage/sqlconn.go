package storage

import (
	"context"
	"database/sql"
)

// SQLConn adapts a *sql.DB onto the DB seam. The SQL Server, SQLite and
// Snowflake backends embed it; Postgres talks pgx natively.
type SQLConn struct {
	DB *sql.DB
}

func (c SQLConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	// Drivers without affected-count support report 0 here.
	n, _ := res.RowsAffected()
	return n, nil
}

func (c SQLConn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := c.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

func (c SQLConn) QueryRow(ctx context.Context, query string, args ...any) Row {
	return c.DB.QueryRowContext(ctx, query, args...)
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() { _ = r.Rows.Close() }

var _ DB = SQLConn{}
