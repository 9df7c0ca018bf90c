package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/rampotla586/ut-de-framework/internal/catalog"
	"github.com/rampotla586/ut-de-framework/internal/sqlgen"
)

// stageRows recreates a staging table and fills it with rows already
// carrying a _loaded_at value.
func (e *testEnv) stageRows(table sqlgen.TableRef, m catalog.ColumnMapping, rows [][]any) {
	e.t.Helper()
	if err := e.runner.EnsureStaging(e.ctx, table, m); err != nil {
		e.t.Fatalf("ensure staging: %v", err)
	}
	cols := append(m.Names(), catalog.ColLoadedAt)
	q, args := sqlgen.InsertRows(e.backend.Dialect(), table, cols, rows)
	e.exec(q, args...)
}

func TestDeduplicateKeepsOneRowPerKey(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	m := catalog.ColumnMapping(customerMapping())
	staging := e.session.Ref("stg_dim_customer")
	keys := []string{"customer_id"}

	ts := e.backend.Dialect().TimeArg(e.now)
	e.stageRows(staging, m, [][]any{
		{int64(1), "Ada", "EU", ts},
		{int64(1), "Ada", "EU", ts},
		{int64(2), "Grace", "US", ts},
	})

	dedup, n, err := e.runner.Deduplicate(e.ctx, staging, m, keys, bulkLoad{}.TieBreak(keys))
	if err != nil {
		t.Fatalf("deduplicate: %v", err)
	}
	if dedup.Name != "stg_dim_customer_dedup" {
		t.Errorf("dedup table = %q", dedup.Name)
	}
	if n != 2 {
		t.Errorf("dedup rows = %d, want one per key", n)
	}
	if got := e.countRows(dedup.Name); got != 2 {
		t.Errorf("materialized rows = %d, want 2", got)
	}

	// The dedup table carries business columns only.
	var ddl string
	q := `SELECT "sql" FROM "sqlite_master" WHERE "name" = 'stg_dim_customer_dedup';`
	if err := e.backend.QueryRow(e.ctx, q).Scan(&ddl); err != nil {
		t.Fatalf("read dedup DDL: %v", err)
	}
	if !strings.Contains(ddl, "customer_id") || strings.Contains(ddl, catalog.ColLoadedAt) {
		t.Errorf("dedup DDL = %q", ddl)
	}
}

func TestDeduplicateSurvivorIsEarliestLoaded(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	m := catalog.ColumnMapping(customerMapping())
	staging := e.session.Ref("stg_dim_customer")
	keys := []string{"customer_id"}

	d := e.backend.Dialect()
	first := d.TimeArg(e.now)
	second := d.TimeArg(e.now.Add(time.Minute))
	e.stageRows(staging, m, [][]any{
		{int64(1), "Ada", "NEW", second},
		{int64(1), "Ada", "OLD", first},
		{int64(2), "Grace", "US", first},
	})

	_, n, err := e.runner.Deduplicate(e.ctx, staging, m, keys, incrementalLoad{}.TieBreak(keys))
	if err != nil {
		t.Fatalf("deduplicate: %v", err)
	}
	if n != 2 {
		t.Fatalf("dedup rows = %d, want 2", n)
	}

	var region string
	q := `SELECT "region" FROM "stg_dim_customer_dedup" WHERE "customer_id" = 1;`
	if err := e.backend.QueryRow(e.ctx, q).Scan(&region); err != nil {
		t.Fatalf("read survivor: %v", err)
	}
	if region != "OLD" {
		t.Errorf("survivor region = %q, want the earliest-loaded row", region)
	}
}

func TestDeduplicateIsStableOnOwnOutput(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	m := catalog.ColumnMapping(customerMapping())
	staging := e.session.Ref("stg_dim_customer")
	keys := []string{"customer_id"}

	ts := e.backend.Dialect().TimeArg(e.now)
	e.stageRows(staging, m, [][]any{
		{int64(1), "Ada", "EU", ts},
		{int64(1), "Ada", "EU", ts},
		{int64(2), "Grace", "US", ts},
	})

	dedup, n, err := e.runner.Deduplicate(e.ctx, staging, m, keys, bulkLoad{}.TieBreak(keys))
	if err != nil {
		t.Fatalf("deduplicate: %v", err)
	}

	again, n2, err := e.runner.Deduplicate(e.ctx, dedup, m, keys, bulkLoad{}.TieBreak(keys))
	if err != nil {
		t.Fatalf("deduplicate output: %v", err)
	}
	if n2 != n {
		t.Errorf("second pass rows = %d, want %d", n2, n)
	}
	if again.Name != "stg_dim_customer_dedup_dedup" {
		t.Errorf("second pass table = %q", again.Name)
	}
}
