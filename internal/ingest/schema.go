package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/rampotla586/ut-de-framework/internal/catalog"
	"github.com/rampotla586/ut-de-framework/internal/sqlgen"
)

// columnKind buckets a mapping's declared data type into the closed set
// of storage representations the engine stages and compares with.
// Folding through a closed set keeps declared type text out of generated
// DDL.
type columnKind int

const (
	kindText columnKind = iota
	kindInt
	kindFloat
	kindBool
	kindTime
)

// kindOf buckets a declared type name. Precision suffixes
// ("NUMERIC(10,2)") and vendor aliases fold into the same kind; anything
// unrecognized stages as text.
func kindOf(declared string) columnKind {
	t := strings.ToUpper(strings.TrimSpace(declared))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	switch t {
	case "INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT":
		return kindInt
	case "FLOAT", "DOUBLE", "DOUBLE PRECISION", "REAL", "NUMBER", "NUMERIC", "DECIMAL", "MONEY":
		return kindFloat
	case "BOOL", "BOOLEAN", "BIT":
		return kindBool
	case "DATE", "DATETIME", "DATETIME2", "DATETIMEOFFSET",
		"TIMESTAMP", "TIMESTAMPTZ", "TIMESTAMP_TZ", "TIMESTAMP_NTZ", "TIMESTAMP_LTZ":
		return kindTime
	default:
		return kindText
	}
}

// columnType renders the SQL type a kind is stored as on the given
// backend.
func columnType(d sqlgen.Dialect, k columnKind) string {
	switch k {
	case kindInt:
		return "BIGINT"
	case kindFloat:
		return "DOUBLE PRECISION"
	case kindBool:
		return d.BoolType()
	case kindTime:
		return d.TimestampType()
	default:
		return d.StringType()
	}
}

// mappedColumns renders a mapping as typed DDL columns in mapping order.
func mappedColumns(d sqlgen.Dialect, mapping catalog.ColumnMapping) []sqlgen.Column {
	out := make([]sqlgen.Column, 0, len(mapping))
	for _, c := range mapping {
		out = append(out, sqlgen.Column{Name: c.Name, Type: columnType(d, kindOf(c.DataType))})
	}
	return out
}

// scdColumns are the engine-owned tracking columns. is_current defaults
// TRUE so destination rows that predate the tracking columns count as
// current.
func scdColumns(d sqlgen.Dialect) []sqlgen.Column {
	return []sqlgen.Column{
		{Name: catalog.ColIsCurrent, Type: d.BoolType() + " DEFAULT " + d.BoolLiteral(true)},
		{Name: catalog.ColStartDate, Type: d.TimestampType()},
		{Name: catalog.ColEndDate, Type: d.TimestampType()},
	}
}

// EnsureDestination creates the destination table if absent: mapped
// business columns in mapping order plus the three tracking columns.
func (r *Runner) EnsureDestination(ctx context.Context, table sqlgen.TableRef, mapping catalog.ColumnMapping) error {
	d := r.Backend.Dialect()
	cols := append(mappedColumns(d, mapping), scdColumns(d)...)
	if _, err := r.Backend.Exec(ctx, sqlgen.CreateTable(d, table, cols)); err != nil {
		return fmt.Errorf("ensure destination %s: %w", table.Name, err)
	}
	return nil
}

// EnsureSCDColumns adds the tracking columns to a destination that
// predates the engine. The backend's "column already exists" condition
// is success; any other DDL error fails this ingestion.
func (r *Runner) EnsureSCDColumns(ctx context.Context, table sqlgen.TableRef) error {
	d := r.Backend.Dialect()
	for _, c := range scdColumns(d) {
		_, err := r.Backend.Exec(ctx, sqlgen.AddColumn(d, table, c, ""))
		if err != nil && !r.Backend.IsDuplicateColumn(err) {
			return fmt.Errorf("add column %s to %s: %w", c.Name, table.Name, err)
		}
	}
	return nil
}

// EnsureStaging drops and recreates the run's staging table: mapped
// columns in mapping order plus the _loaded_at bookkeeping column.
func (r *Runner) EnsureStaging(ctx context.Context, table sqlgen.TableRef, mapping catalog.ColumnMapping) error {
	d := r.Backend.Dialect()
	if _, err := r.Backend.Exec(ctx, sqlgen.DropTable(d, table)); err != nil {
		return fmt.Errorf("drop staging %s: %w", table.Name, err)
	}
	cols := append(mappedColumns(d, mapping), sqlgen.Column{Name: catalog.ColLoadedAt, Type: d.TimestampType()})
	if _, err := r.Backend.Exec(ctx, sqlgen.CreateTable(d, table, cols)); err != nil {
		return fmt.Errorf("create staging %s: %w", table.Name, err)
	}
	return nil
}
