package sqlgen

import (
	"fmt"
	"strings"
	"time"
)

// SQLite is the SQLite dialect.
//
// Timestamps are bound as RFC3339Nano strings: SQLite has no dedicated
// timestamp storage class and TEXT round-trips reliably with
// modernc.org/sqlite. String comparison of RFC3339Nano in UTC matches
// chronological order, so ORDER BY on these columns stays correct.
var SQLite Dialect = sqliteDialect{}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Table ignores the database part: SQLite attaches at most one schema
// name and the engine always works inside the main database.
func (d sqliteDialect) Table(ref TableRef) string {
	r := ref
	r.Database = ""
	r.Schema = ""
	return joinQualified(d, r)
}

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) DistinctFrom(a, b string) string {
	return fmt.Sprintf("%s IS NOT %s", a, b)
}

func (d sqliteDialect) OrderExpr(term OrderBy) string {
	return nativeOrderExpr(d, term)
}

func (sqliteDialect) BoolLiteral(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func (sqliteDialect) BoolType() string      { return "BOOLEAN" }
func (sqliteDialect) TimestampType() string { return "TIMESTAMPTZ" }
func (sqliteDialect) StringType() string    { return "TEXT" }

func (sqliteDialect) TimeArg(t time.Time) any {
	return t.UTC().Format(time.RFC3339Nano)
}

func (d sqliteDialect) CreateTableIfMissing(ref TableRef, body string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);", d.Table(ref), body)
}

func (d sqliteDialect) UpdateFrom(target, source TableRef, set, conds []string) string {
	return fmt.Sprintf(
		"UPDATE %s SET %s FROM %s AS s WHERE %s;",
		d.Table(target),
		strings.Join(set, ", "),
		d.Table(source),
		strings.Join(conds, " AND "),
	)
}

// ParamLimit matches SQLITE_MAX_VARIABLE_NUMBER as shipped by
// modernc.org/sqlite builds.
func (sqliteDialect) ParamLimit() int { return 999 }
