// Package snowflake implements the Snowflake storage backend on
// gosnowflake, including the server-side COPY INTO path for
// warehouse-managed stages.
package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sf "github.com/snowflakedb/gosnowflake"

	"github.com/rampotla586/ut-de-framework/internal/sqlgen"
	"github.com/rampotla586/ut-de-framework/internal/storage"
)

type backend struct {
	storage.SQLConn
}

func init() {
	storage.Register("snowflake", New)
}

// New opens a Snowflake connection pool. Database, schema and role from
// cfg override the DSN so session placement is always explicit.
func New(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
	sfCfg, err := sf.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("snowflake: parse dsn: %w", err)
	}
	if cfg.Database != "" {
		sfCfg.Database = cfg.Database
	}
	if cfg.Schema != "" {
		sfCfg.Schema = cfg.Schema
	}
	if cfg.Role != "" {
		sfCfg.Role = cfg.Role
	}

	dsn, err := sf.DSN(sfCfg)
	if err != nil {
		return nil, fmt.Errorf("snowflake: rebuild dsn: %w", err)
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &backend{SQLConn: storage.SQLConn{DB: db}}, nil
}

func (b *backend) Close() { _ = b.DB.Close() }

func (b *backend) Dialect() sqlgen.Dialect { return sqlgen.Snowflake }

// IsDuplicateColumn matches the compilation error ADD COLUMN raises for
// an existing column. gosnowflake surfaces it as a generic SQL
// compilation error, so the message text is the only stable signal.
func (b *backend) IsDuplicateColumn(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "already exists")
}

const logSeqName = "ingestion_log_seq"

func (b *backend) EnsureLogSequence(ctx context.Context) error {
	d := sqlgen.Snowflake
	_, err := b.Exec(ctx, fmt.Sprintf("CREATE SEQUENCE IF NOT EXISTS %s;", d.QuoteIdent(logSeqName)))
	return err
}

func (b *backend) NextLogID(ctx context.Context) (int64, error) {
	d := sqlgen.Snowflake
	var id int64
	err := b.QueryRow(ctx, fmt.Sprintf("SELECT %s.NEXTVAL;", d.QuoteIdent(logSeqName))).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("snowflake: next log id: %w", err)
	}
	return id, nil
}

// CopyIntoStaging bulk-loads files under stageObject/path into table
// using a warehouse-defined file format. ON_ERROR=CONTINUE keeps the
// per-row tolerance of the portable path: malformed rows are skipped and
// only the loaded count is reported.
func (b *backend) CopyIntoStaging(ctx context.Context, table sqlgen.TableRef, stageObject, formatName, path string) (int64, error) {
	location := stageObject
	if path != "" {
		location = strings.TrimRight(stageObject, "/") + "/" + strings.TrimLeft(path, "/")
	}

	stmt := fmt.Sprintf(
		"COPY INTO %s FROM '%s' FILE_FORMAT = (FORMAT_NAME = '%s') ON_ERROR = 'CONTINUE';",
		sqlgen.Snowflake.Table(table),
		strings.ReplaceAll(location, "'", "''"),
		strings.ReplaceAll(formatName, "'", "''"),
	)

	rows, err := b.DB.QueryContext(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("snowflake: copy into %s: %w", table.Name, err)
	}
	defer rows.Close()

	return sumRowsLoaded(rows)
}

// sumRowsLoaded totals the rows_loaded column of a COPY INTO result set,
// which reports one line per file.
func sumRowsLoaded(rows *sql.Rows) (int64, error) {
	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	idx := -1
	for i, c := range cols {
		if strings.EqualFold(c, "rows_loaded") {
			idx = i
			break
		}
	}

	var total int64
	scan := make([]any, len(cols))
	for rows.Next() {
		var loaded sql.NullInt64
		for i := range scan {
			scan[i] = new(sql.RawBytes)
		}
		if idx >= 0 {
			scan[idx] = &loaded
		}
		if err := rows.Scan(scan...); err != nil {
			return total, err
		}
		if loaded.Valid {
			total += loaded.Int64
		}
	}
	return total, rows.Err()
}

var _ storage.Backend = (*backend)(nil)
var _ storage.NativeCopier = (*backend)(nil)
