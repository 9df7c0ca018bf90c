package sqlgen

import (
	"fmt"
	"strings"
	"time"
)

// Snowflake is the Snowflake dialect.
var Snowflake Dialect = snowflakeDialect{}

type snowflakeDialect struct{}

func (snowflakeDialect) Name() string { return "snowflake" }

func (snowflakeDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d snowflakeDialect) Table(ref TableRef) string {
	return joinQualified(d, ref)
}

func (snowflakeDialect) Placeholder(int) string { return "?" }

func (snowflakeDialect) DistinctFrom(a, b string) string {
	return fmt.Sprintf("%s IS DISTINCT FROM %s", a, b)
}

func (d snowflakeDialect) OrderExpr(term OrderBy) string {
	return nativeOrderExpr(d, term)
}

func (snowflakeDialect) BoolLiteral(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

func (snowflakeDialect) BoolType() string      { return "BOOLEAN" }
func (snowflakeDialect) TimestampType() string { return "TIMESTAMP_TZ" }
func (snowflakeDialect) StringType() string    { return "VARCHAR" }

func (snowflakeDialect) TimeArg(t time.Time) any { return t.UTC() }

func (d snowflakeDialect) CreateTableIfMissing(ref TableRef, body string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);", d.Table(ref), body)
}

// UpdateFrom uses Snowflake's documented multi-table UPDATE form; the
// target is referenced by its bare name in the predicates.
func (d snowflakeDialect) UpdateFrom(target, source TableRef, set, conds []string) string {
	return fmt.Sprintf(
		"UPDATE %s SET %s FROM %s AS s WHERE %s;",
		d.Table(target),
		strings.Join(set, ", "),
		d.Table(source),
		strings.Join(conds, " AND "),
	)
}

// ParamLimit mirrors the client-side bind ceiling gosnowflake applies
// before switching to bulk array binds.
func (snowflakeDialect) ParamLimit() int { return 16000 }
