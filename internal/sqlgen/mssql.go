package sqlgen

import (
	"fmt"
	"strings"
	"time"
)

// MSSQL is the SQL Server dialect.
var MSSQL Dialect = mssqlDialect{}

type mssqlDialect struct{}

func (mssqlDialect) Name() string { return "mssql" }

func (mssqlDialect) QuoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d mssqlDialect) Table(ref TableRef) string {
	return joinQualified(d, ref)
}

func (mssqlDialect) Placeholder(n int) string {
	return fmt.Sprintf("@p%d", n)
}

// DistinctFrom expands the null-aware inequality by hand; IS DISTINCT
// FROM only exists on SQL Server 2022+.
func (mssqlDialect) DistinctFrom(a, b string) string {
	return fmt.Sprintf(
		"(%s <> %s OR (%s IS NULL AND %s IS NOT NULL) OR (%s IS NOT NULL AND %s IS NULL))",
		a, b, a, b, a, b,
	)
}

// OrderExpr emulates NULLS LAST with a leading CASE term; SQL Server has
// no native syntax for it.
func (d mssqlDialect) OrderExpr(term OrderBy) string {
	col := d.QuoteIdent(term.Column)
	dir := ""
	if term.Desc {
		dir = " DESC"
	}
	if term.NullsLast {
		return fmt.Sprintf("CASE WHEN %s IS NULL THEN 1 ELSE 0 END, %s%s", col, col, dir)
	}
	return col + dir
}

func (mssqlDialect) BoolLiteral(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func (mssqlDialect) BoolType() string      { return "BIT" }
func (mssqlDialect) TimestampType() string { return "DATETIMEOFFSET" }
func (mssqlDialect) StringType() string    { return "NVARCHAR(MAX)" }

func (mssqlDialect) TimeArg(t time.Time) any { return t.UTC() }

func (d mssqlDialect) CreateTableIfMissing(ref TableRef, body string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		strings.ReplaceAll(dottedName(ref), "'", "''"),
		d.Table(ref),
		body,
	)
}

// UpdateFrom uses the T-SQL join form; the updated table appears once in
// FROM and binds to the UPDATE target.
func (d mssqlDialect) UpdateFrom(target, source TableRef, set, conds []string) string {
	return fmt.Sprintf(
		"UPDATE %s SET %s FROM %s JOIN %s AS s ON %s;",
		d.Table(target),
		strings.Join(set, ", "),
		d.Table(target),
		d.Table(source),
		strings.Join(conds, " AND "),
	)
}

// ParamLimit leaves headroom under SQL Server's hard cap of 2100.
func (mssqlDialect) ParamLimit() int { return 2000 }

// dottedName renders the plain dotted form OBJECT_ID expects inside its
// string literal.
func dottedName(ref TableRef) string {
	parts := make([]string, 0, 3)
	if ref.Database != "" {
		parts = append(parts, ref.Database)
	}
	if ref.Schema != "" {
		parts = append(parts, ref.Schema)
	}
	parts = append(parts, ref.Name)
	return strings.Join(parts, ".")
}
