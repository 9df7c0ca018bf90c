package sqlgen

import (
	"strings"
	"testing"
	"time"
)

func TestQuoteIdentPerDialect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		d    Dialect
		in   string
		want string
	}{
		{"postgres plain", Postgres, "customer_id", `"customer_id"`},
		{"postgres embedded quote", Postgres, `we"ird`, `"we""ird"`},
		{"sqlite plain", SQLite, "customer_id", `"customer_id"`},
		{"snowflake plain", Snowflake, "customer_id", `"customer_id"`},
		{"mssql plain", MSSQL, "customer_id", "[customer_id]"},
		{"mssql embedded bracket", MSSQL, "we]ird", "[we]]ird]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.QuoteIdent(tt.in); got != tt.want {
				t.Fatalf("QuoteIdent(%q)=%q want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTableQualification(t *testing.T) {
	t.Parallel()

	ref := TableRef{Database: "edw", Schema: "landing", Name: "dim_customer"}

	if got := Postgres.Table(ref); got != `"edw"."landing"."dim_customer"` {
		t.Fatalf("postgres: %q", got)
	}
	if got := MSSQL.Table(ref); got != "[edw].[landing].[dim_customer]" {
		t.Fatalf("mssql: %q", got)
	}
	if got := Snowflake.Table(ref); got != `"edw"."landing"."dim_customer"` {
		t.Fatalf("snowflake: %q", got)
	}
	// SQLite has a single flat namespace; qualifiers are dropped.
	if got := SQLite.Table(ref); got != `"dim_customer"` {
		t.Fatalf("sqlite: %q", got)
	}
}

func TestPlaceholderStyles(t *testing.T) {
	t.Parallel()

	if got := Postgres.Placeholder(3); got != "$3" {
		t.Fatalf("postgres: %q", got)
	}
	if got := MSSQL.Placeholder(3); got != "@p3" {
		t.Fatalf("mssql: %q", got)
	}
	if got := SQLite.Placeholder(3); got != "?" {
		t.Fatalf("sqlite: %q", got)
	}
	if got := Snowflake.Placeholder(3); got != "?" {
		t.Fatalf("snowflake: %q", got)
	}
}

func TestDistinctFromIsNullAware(t *testing.T) {
	t.Parallel()

	if got := Postgres.DistinctFrom("a", "b"); got != "a IS DISTINCT FROM b" {
		t.Fatalf("postgres: %q", got)
	}
	if got := SQLite.DistinctFrom("a", "b"); got != "a IS NOT b" {
		t.Fatalf("sqlite: %q", got)
	}
	got := MSSQL.DistinctFrom("a", "b")
	for _, frag := range []string{"a <> b", "a IS NULL AND b IS NOT NULL", "a IS NOT NULL AND b IS NULL"} {
		if !strings.Contains(got, frag) {
			t.Fatalf("mssql predicate missing %q: %q", frag, got)
		}
	}
}

func TestOrderExprNullsLast(t *testing.T) {
	t.Parallel()

	term := OrderBy{Column: "customer_id", Desc: true, NullsLast: true}

	if got := Postgres.OrderExpr(term); got != `"customer_id" DESC NULLS LAST` {
		t.Fatalf("postgres: %q", got)
	}
	if got := Snowflake.OrderExpr(term); got != `"customer_id" DESC NULLS LAST` {
		t.Fatalf("snowflake: %q", got)
	}

	// SQL Server emulates NULLS LAST with a CASE prefix term.
	got := MSSQL.OrderExpr(term)
	if !strings.Contains(got, "CASE WHEN [customer_id] IS NULL THEN 1 ELSE 0 END") {
		t.Fatalf("mssql missing CASE emulation: %q", got)
	}
	if !strings.Contains(got, "[customer_id] DESC") {
		t.Fatalf("mssql missing direction: %q", got)
	}
}

func TestScalarTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d         Dialect
		boolT     string
		timeT     string
		stringT   string
		boolTrue  string
		boolFalse string
	}{
		{Postgres, "BOOLEAN", "TIMESTAMPTZ", "TEXT", "TRUE", "FALSE"},
		{SQLite, "BOOLEAN", "TIMESTAMPTZ", "TEXT", "1", "0"},
		{MSSQL, "BIT", "DATETIMEOFFSET", "NVARCHAR(MAX)", "1", "0"},
		{Snowflake, "BOOLEAN", "TIMESTAMP_TZ", "VARCHAR", "TRUE", "FALSE"},
	}
	for _, tt := range tests {
		t.Run(tt.d.Name(), func(t *testing.T) {
			if got := tt.d.BoolType(); got != tt.boolT {
				t.Errorf("BoolType=%q want %q", got, tt.boolT)
			}
			if got := tt.d.TimestampType(); got != tt.timeT {
				t.Errorf("TimestampType=%q want %q", got, tt.timeT)
			}
			if got := tt.d.StringType(); got != tt.stringT {
				t.Errorf("StringType=%q want %q", got, tt.stringT)
			}
			if got := tt.d.BoolLiteral(true); got != tt.boolTrue {
				t.Errorf("BoolLiteral(true)=%q want %q", got, tt.boolTrue)
			}
			if got := tt.d.BoolLiteral(false); got != tt.boolFalse {
				t.Errorf("BoolLiteral(false)=%q want %q", got, tt.boolFalse)
			}
		})
	}
}

func TestCreateTableShapes(t *testing.T) {
	t.Parallel()

	cols := []Column{
		{Name: "customer_id", Type: "BIGINT"},
		{Name: "full_name", Type: "VARCHAR(200)"},
	}
	ref := TableRef{Schema: "landing", Name: "stg_customers"}

	pg := CreateTable(Postgres, ref, cols)
	if !strings.Contains(pg, `CREATE TABLE IF NOT EXISTS "landing"."stg_customers"`) {
		t.Fatalf("postgres DDL: %q", pg)
	}
	if !strings.Contains(pg, `"customer_id" BIGINT`) {
		t.Fatalf("postgres DDL missing column: %q", pg)
	}

	ms := CreateTable(MSSQL, ref, cols)
	if !strings.Contains(ms, "IF OBJECT_ID(N'landing.stg_customers', N'U') IS NULL") {
		t.Fatalf("mssql DDL guard: %q", ms)
	}
	if !strings.Contains(ms, "CREATE TABLE [landing].[stg_customers]") {
		t.Fatalf("mssql DDL body: %q", ms)
	}
}

func TestAddColumnDefault(t *testing.T) {
	t.Parallel()

	ref := TableRef{Name: "dim_customer"}
	got := AddColumn(Postgres, ref, Column{Name: "is_current", Type: Postgres.BoolType()}, Postgres.BoolLiteral(true))
	want := `ALTER TABLE "dim_customer" ADD "is_current" BOOLEAN DEFAULT TRUE;`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}

	got = AddColumn(MSSQL, ref, Column{Name: "is_current", Type: MSSQL.BoolType()}, MSSQL.BoolLiteral(true))
	want = "ALTER TABLE [dim_customer] ADD [is_current] BIT DEFAULT 1;"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestInsertRowsPlaceholderNumbering(t *testing.T) {
	t.Parallel()

	ref := TableRef{Name: "stg_customers"}
	cols := []string{"customer_id", "full_name"}
	rows := [][]any{
		{int64(1), "Ada"},
		{int64(2), "Grace"},
	}

	sqlText, args := InsertRows(Postgres, ref, cols, rows)
	if !strings.Contains(sqlText, "($1, $2), ($3, $4)") {
		t.Fatalf("postgres numbering: %q", sqlText)
	}
	if len(args) != 4 {
		t.Fatalf("args=%d want 4", len(args))
	}

	sqlText, _ = InsertRows(MSSQL, ref, cols, rows)
	if !strings.Contains(sqlText, "(@p1, @p2), (@p3, @p4)") {
		t.Fatalf("mssql numbering: %q", sqlText)
	}

	sqlText, _ = InsertRows(SQLite, ref, cols, rows)
	if !strings.Contains(sqlText, "(?, ?), (?, ?)") {
		t.Fatalf("sqlite placeholders: %q", sqlText)
	}
}

func TestMaxRowsPerInsert(t *testing.T) {
	t.Parallel()

	if got := MaxRowsPerInsert(SQLite, 10); got != 99 {
		t.Fatalf("sqlite 10 cols: %d", got)
	}
	if got := MaxRowsPerInsert(Postgres, 3000); got != 1 {
		t.Fatalf("wide row must still fit one row per statement: %d", got)
	}
	if got := MaxRowsPerInsert(MSSQL, 0); got != 1 {
		t.Fatalf("zero cols: %d", got)
	}
}

func TestDedupInsertWindowShape(t *testing.T) {
	t.Parallel()

	dst := TableRef{Name: "dedup_customers"}
	src := TableRef{Name: "stg_customers"}
	cols := []string{"customer_id", "full_name"}
	keys := []string{"customer_id"}
	order := []OrderBy{{Column: "customer_id", Desc: true, NullsLast: true}}

	got := DedupInsert(Postgres, dst, src, cols, keys, order)

	for _, frag := range []string{
		`INSERT INTO "dedup_customers"`,
		`ROW_NUMBER() OVER (PARTITION BY "customer_id" ORDER BY "customer_id" DESC NULLS LAST)`,
		"AS _rank",
		") AS ranked WHERE _rank = 1;",
	} {
		if !strings.Contains(got, frag) {
			t.Fatalf("missing %q in: %q", frag, got)
		}
	}
}

func TestUpdateFromShapes(t *testing.T) {
	t.Parallel()

	target := TableRef{Schema: "edw", Name: "dim_customer"}
	source := TableRef{Schema: "edw", Name: "dedup_customers"}
	set := []string{`"full_name" = s."full_name"`}
	conds := []string{`"dim_customer"."customer_id" = s."customer_id"`}

	pg := Postgres.UpdateFrom(target, source, set, conds)
	if !strings.HasPrefix(pg, `UPDATE "edw"."dim_customer" SET`) || !strings.Contains(pg, `FROM "edw"."dedup_customers" AS s WHERE`) {
		t.Fatalf("postgres shape: %q", pg)
	}

	msSet := []string{"[full_name] = s.[full_name]"}
	msConds := []string{"[dim_customer].[customer_id] = s.[customer_id]"}
	ms := MSSQL.UpdateFrom(target, source, msSet, msConds)
	if !strings.Contains(ms, "FROM [edw].[dim_customer] JOIN [edw].[dedup_customers] AS s ON") {
		t.Fatalf("mssql join shape: %q", ms)
	}
}

func TestTimeArgFormats(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.FixedZone("CET", 3600))

	got, ok := SQLite.TimeArg(ts).(string)
	if !ok || got != "2026-03-14T08:30:00Z" {
		t.Fatalf("sqlite time arg: %v", SQLite.TimeArg(ts))
	}

	pg, ok := Postgres.TimeArg(ts).(time.Time)
	if !ok || !pg.Equal(ts) || pg.Location() != time.UTC {
		t.Fatalf("postgres time arg: %v", Postgres.TimeArg(ts))
	}
}
