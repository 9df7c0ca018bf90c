// Package sqlgen builds the dynamic SQL the ingestion engine runs, from
// typed table/column/predicate inputs rendered through a backend Dialect.
//
// Nothing in this package touches a database. Every builder is a pure
// function returning a statement string (plus bind args where rows are
// involved), which keeps SQL generation unit-testable without a live
// backend and keeps raw metadata out of string concatenation.
package sqlgen

import (
	"fmt"
	"strings"
	"time"
)

// TableRef names a table, optionally schema- and database-qualified.
// Qualification is explicit: dialects never rely on an ambient current
// schema or session database.
type TableRef struct {
	Database string
	Schema   string
	Name     string
}

// Column is a column name with its declared SQL type.
type Column struct {
	Name string
	Type string
}

// OrderBy is one ORDER BY term for the dedup window.
type OrderBy struct {
	Column    string
	Desc      bool
	NullsLast bool
}

// Assign is one "column = expr" fragment in an UPDATE SET list.
// Expr is a rendered SQL expression (source alias "s" is in scope).
type Assign struct {
	Column string
	Expr   string
}

// Dialect renders backend-specific SQL fragments. Implementations are
// stateless and safe for concurrent use.
type Dialect interface {
	Name() string

	// QuoteIdent quotes a single identifier (column or bare table name).
	QuoteIdent(name string) string

	// Table renders a fully qualified, quoted table reference.
	Table(ref TableRef) string

	// Placeholder renders the n-th bind placeholder, 1-based.
	Placeholder(n int) string

	// DistinctFrom renders a null-aware "a differs from b" predicate:
	// NULL is not distinct from NULL.
	DistinctFrom(a, b string) string

	// OrderExpr renders one ORDER BY term, emulating NULLS LAST where the
	// backend has no native syntax for it.
	OrderExpr(term OrderBy) string

	BoolLiteral(v bool) string
	BoolType() string
	TimestampType() string
	StringType() string

	// TimeArg converts a timestamp into the bind value the driver stores
	// round-trippably (SQLite stores RFC3339Nano text, others time.Time).
	TimeArg(t time.Time) any

	// CreateTableIfMissing wraps a column-definition body in the backend's
	// create-if-absent form.
	CreateTableIfMissing(ref TableRef, body string) string

	// UpdateFrom renders an UPDATE of target joined to source rows.
	// Set entries use bare target columns on the left; conds reference the
	// target by its quoted bare name and the source by the alias "s".
	UpdateFrom(target, source TableRef, set []string, conds []string) string

	// ParamLimit is the backend's bind-parameter ceiling per statement.
	ParamLimit() int
}

// QuoteAll quotes a list of identifiers.
func QuoteAll(d Dialect, names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, d.QuoteIdent(n))
	}
	return out
}

// CreateTable renders create-if-absent DDL for the given columns.
func CreateTable(d Dialect, t TableRef, cols []Column) string {
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		parts = append(parts, fmt.Sprintf("%s %s", d.QuoteIdent(c.Name), c.Type))
	}
	return d.CreateTableIfMissing(t, strings.Join(parts, ", "))
}

// DropTable renders drop-if-exists DDL.
func DropTable(d Dialect, t TableRef) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", d.Table(t))
}

// AddColumn renders ALTER TABLE ... ADD for one column. defaultExpr, when
// non-empty, becomes a DEFAULT clause.
func AddColumn(d Dialect, t TableRef, col Column, defaultExpr string) string {
	def := fmt.Sprintf("%s %s", d.QuoteIdent(col.Name), col.Type)
	if defaultExpr != "" {
		def += " DEFAULT " + defaultExpr
	}
	// ADD without COLUMN keyword parses on every supported backend;
	// SQL Server rejects the keyword form.
	return fmt.Sprintf("ALTER TABLE %s ADD %s;", d.Table(t), def)
}

// InsertRows renders a multi-row INSERT with bind args for every value.
// Callers chunk rows via MaxRowsPerInsert before building.
func InsertRows(d Dialect, t TableRef, cols []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(d.Table(t))
	b.WriteString(" (")
	b.WriteString(strings.Join(QuoteAll(d, cols), ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(cols))
	n := 0
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range cols {
			if j > 0 {
				b.WriteString(", ")
			}
			n++
			b.WriteString(d.Placeholder(n))
			args = append(args, row[j])
		}
		b.WriteString(")")
	}
	return b.String(), args
}

// MaxRowsPerInsert is how many rows fit in one InsertRows statement under
// the dialect's parameter limit.
func MaxRowsPerInsert(d Dialect, ncols int) int {
	if ncols <= 0 {
		return 1
	}
	n := d.ParamLimit() / ncols
	if n < 1 {
		return 1
	}
	return n
}

// DedupInsert renders the dedup materialization: insert into dst the
// single surviving row per key partition of src, chosen by the order
// terms. The window subquery shape works on every supported backend.
func DedupInsert(d Dialect, dst, src TableRef, cols []string, keyCols []string, order []OrderBy) string {
	quoted := QuoteAll(d, cols)

	orderExprs := make([]string, 0, len(order))
	for _, o := range order {
		orderExprs = append(orderExprs, d.OrderExpr(o))
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(d.Table(dst))
	b.WriteString(" (")
	b.WriteString(strings.Join(quoted, ", "))
	b.WriteString(") SELECT ")
	b.WriteString(strings.Join(quoted, ", "))
	b.WriteString(" FROM (SELECT ")
	b.WriteString(strings.Join(quoted, ", "))
	b.WriteString(", ROW_NUMBER() OVER (PARTITION BY ")
	b.WriteString(strings.Join(QuoteAll(d, keyCols), ", "))
	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(orderExprs, ", "))
	b.WriteString(") AS _rank FROM ")
	b.WriteString(d.Table(src))
	b.WriteString(") AS ranked WHERE _rank = 1;")
	return b.String()
}

// CountRows renders SELECT COUNT(*) for a table.
func CountRows(d Dialect, t TableRef) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s;", d.Table(t))
}
