package ingest

import (
	"reflect"
	"testing"
	"time"

	"github.com/rampotla586/ut-de-framework/internal/catalog"
	"github.com/rampotla586/ut-de-framework/internal/sqlgen"
)

func TestCanonicalKeys(t *testing.T) {
	t.Parallel()
	m := catalog.ColumnMapping{
		{Name: "CustomerID", DataType: "BIGINT", Position: 1},
		{Name: "Region", DataType: "TEXT", Position: 2},
	}
	got := canonicalKeys(m, []string{" customerid ", "REGION", "ghost"})
	want := []string{"CustomerID", "Region"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("canonicalKeys = %v, want mapped spellings %v", got, want)
	}
}

func TestNonKeyColumns(t *testing.T) {
	t.Parallel()
	got := nonKeyColumns([]string{"a", "b", "c"}, []string{" B "})
	if want := []string{"a", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("nonKeyColumns = %v, want %v", got, want)
	}
	if got := nonKeyColumns([]string{"a"}, []string{"a"}); len(got) != 0 {
		t.Errorf("key-only mapping left non-keys %v", got)
	}
}

func TestMergeClosesChangedAndInsertsNew(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	d := e.backend.Dialect()
	m := catalog.ColumnMapping(customerMapping())
	keys := []string{"customer_id"}

	dest := e.session.Ref("dim_customer")
	if err := e.runner.EnsureDestination(e.ctx, dest, m); err != nil {
		t.Fatalf("ensure destination: %v", err)
	}
	firstLoad := e.now.Add(-24 * time.Hour)
	destCols := []string{"customer_id", "full_name", "region", catalog.ColIsCurrent, catalog.ColStartDate, catalog.ColEndDate}
	q, args := sqlgen.InsertRows(d, dest, destCols, [][]any{
		{int64(1), "Ada", "EU", true, d.TimeArg(firstLoad), nil},
		{int64(2), "Grace", "US", true, d.TimeArg(firstLoad), nil},
	})
	e.exec(q, args...)

	dedup := e.session.Ref("stg_dim_customer_dedup")
	e.exec(sqlgen.CreateTable(d, dedup, mappedColumns(d, m)))
	q, args = sqlgen.InsertRows(d, dedup, m.Names(), [][]any{
		{int64(1), "Ada", "APAC"},
		{int64(3), "Lin", "APAC"},
	})
	e.exec(q, args...)

	inserted, closed, err := e.runner.Merge(e.ctx, dest, dedup, m, keys, fullLoad{})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if inserted != 1 || closed != 1 {
		t.Fatalf("merge counts = %d inserted / %d closed, want 1/1", inserted, closed)
	}

	rows := e.customerRows("dim_customer")
	if len(rows) != 3 {
		t.Fatalf("destination rows = %d, want 3", len(rows))
	}

	changed := rows[0]
	if changed.id != 1 || changed.region != "APAC" || changed.current || !changed.end.Equal(e.now) {
		t.Errorf("changed row = %+v, want overwritten and closed in place", changed)
	}
	if !changed.start.Equal(firstLoad) {
		t.Errorf("changed row start = %v, want untouched %v", changed.start, firstLoad)
	}

	same := rows[1]
	if same.id != 2 || !same.current || same.hasEnd {
		t.Errorf("unchanged row = %+v, want open current row", same)
	}

	fresh := rows[2]
	if fresh.id != 3 || !fresh.current || fresh.hasEnd || !fresh.start.Equal(e.now) {
		t.Errorf("new row = %+v, want current row started at %v", fresh, e.now)
	}
}

func TestMergeWithIdenticalRowsTouchesNothing(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	d := e.backend.Dialect()
	m := catalog.ColumnMapping(customerMapping())
	keys := []string{"customer_id"}

	dest := e.session.Ref("dim_customer")
	if err := e.runner.EnsureDestination(e.ctx, dest, m); err != nil {
		t.Fatalf("ensure destination: %v", err)
	}
	destCols := []string{"customer_id", "full_name", "region", catalog.ColIsCurrent, catalog.ColStartDate, catalog.ColEndDate}
	q, args := sqlgen.InsertRows(d, dest, destCols, [][]any{
		{int64(1), "Ada", "EU", true, d.TimeArg(e.now.Add(-time.Hour)), nil},
	})
	e.exec(q, args...)

	dedup := e.session.Ref("stg_dim_customer_dedup")
	e.exec(sqlgen.CreateTable(d, dedup, mappedColumns(d, m)))
	q, args = sqlgen.InsertRows(d, dedup, m.Names(), [][]any{{int64(1), "Ada", "EU"}})
	e.exec(q, args...)

	inserted, closed, err := e.runner.Merge(e.ctx, dest, dedup, m, keys, fullLoad{})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if inserted != 0 || closed != 0 {
		t.Errorf("merge counts = %d/%d, want untouched destination", inserted, closed)
	}
	rows := e.customerRows("dim_customer")
	if len(rows) != 1 || !rows[0].current || rows[0].hasEnd {
		t.Errorf("destination rows = %+v", rows)
	}
}

func TestMergeTreatsNullChangesAsDifferences(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	d := e.backend.Dialect()
	m := catalog.ColumnMapping(customerMapping())
	keys := []string{"customer_id"}

	dest := e.session.Ref("dim_customer")
	if err := e.runner.EnsureDestination(e.ctx, dest, m); err != nil {
		t.Fatalf("ensure destination: %v", err)
	}
	destCols := []string{"customer_id", "full_name", "region", catalog.ColIsCurrent, catalog.ColStartDate, catalog.ColEndDate}
	q, args := sqlgen.InsertRows(d, dest, destCols, [][]any{
		{int64(1), "Ada", nil, true, d.TimeArg(e.now.Add(-time.Hour)), nil},
	})
	e.exec(q, args...)

	dedup := e.session.Ref("stg_dim_customer_dedup")
	e.exec(sqlgen.CreateTable(d, dedup, mappedColumns(d, m)))
	q, args = sqlgen.InsertRows(d, dedup, m.Names(), [][]any{{int64(1), "Ada", "EU"}})
	e.exec(q, args...)

	// NULL -> value must count as a change even though plain equality
	// would call it unknown.
	inserted, closed, err := e.runner.Merge(e.ctx, dest, dedup, m, keys, fullLoad{})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if inserted != 0 || closed != 1 {
		t.Errorf("merge counts = %d/%d, want the NULL row closed", inserted, closed)
	}
	rows := e.customerRows("dim_customer")
	if len(rows) != 1 || rows[0].region != "EU" || rows[0].current {
		t.Errorf("destination rows = %+v, want closed row with staged region", rows)
	}
}
