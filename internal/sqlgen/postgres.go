package sqlgen

import (
	"fmt"
	"strings"
	"time"
)

// Postgres is the PostgreSQL dialect.
var Postgres Dialect = postgresDialect{}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d postgresDialect) Table(ref TableRef) string {
	return joinQualified(d, ref)
}

func (postgresDialect) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (postgresDialect) DistinctFrom(a, b string) string {
	return fmt.Sprintf("%s IS DISTINCT FROM %s", a, b)
}

func (d postgresDialect) OrderExpr(term OrderBy) string {
	return nativeOrderExpr(d, term)
}

func (postgresDialect) BoolLiteral(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

func (postgresDialect) BoolType() string      { return "BOOLEAN" }
func (postgresDialect) TimestampType() string { return "TIMESTAMPTZ" }
func (postgresDialect) StringType() string    { return "TEXT" }

func (postgresDialect) TimeArg(t time.Time) any { return t.UTC() }

func (d postgresDialect) CreateTableIfMissing(ref TableRef, body string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);", d.Table(ref), body)
}

func (d postgresDialect) UpdateFrom(target, source TableRef, set, conds []string) string {
	return fmt.Sprintf(
		"UPDATE %s SET %s FROM %s AS s WHERE %s;",
		d.Table(target),
		strings.Join(set, ", "),
		d.Table(source),
		strings.Join(conds, " AND "),
	)
}

// ParamLimit stays well under the wire-protocol ceiling of 65535.
func (postgresDialect) ParamLimit() int { return 2000 }

// joinQualified renders database.schema.name with each present part quoted.
func joinQualified(d Dialect, ref TableRef) string {
	parts := make([]string, 0, 3)
	if ref.Database != "" {
		parts = append(parts, d.QuoteIdent(ref.Database))
	}
	if ref.Schema != "" {
		parts = append(parts, d.QuoteIdent(ref.Schema))
	}
	parts = append(parts, d.QuoteIdent(ref.Name))
	return strings.Join(parts, ".")
}

// nativeOrderExpr renders "col [DESC] [NULLS LAST]" for backends with
// native NULLS LAST support.
func nativeOrderExpr(d Dialect, term OrderBy) string {
	expr := d.QuoteIdent(term.Column)
	if term.Desc {
		expr += " DESC"
	}
	if term.NullsLast {
		expr += " NULLS LAST"
	}
	return expr
}
