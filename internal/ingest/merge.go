package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rampotla586/ut-de-framework/internal/catalog"
	"github.com/rampotla586/ut-de-framework/internal/sqlgen"
)

// MergePlan is the resolved input a strategy builds its statements from:
// the dialect, both tables, the business-column split, and the run
// timestamp every closed or inserted version is stamped with.
type MergePlan struct {
	Dialect sqlgen.Dialect
	Dest    sqlgen.TableRef
	Dedup   sqlgen.TableRef
	Columns []string // business columns, mapping order
	Keys    []string // unique-key columns, mapping spelling
	NonKeys []string // Columns minus Keys
	Now     time.Time
}

// Merge reconciles deduplicated staged rows into the destination under
// the given strategy and reports how many rows it inserted and closed.
// Counts come from the backend's affected-row reporting; a statement
// failure aborts this ingestion's run only.
func (r *Runner) Merge(ctx context.Context, dest, dedup sqlgen.TableRef, mapping catalog.ColumnMapping, keyColumns []string, strat Strategy) (inserted, closed int64, err error) {
	p := MergePlan{
		Dialect: r.Backend.Dialect(),
		Dest:    dest,
		Dedup:   dedup,
		Columns: mapping.Names(),
		Keys:    keyColumns,
		NonKeys: nonKeyColumns(mapping.Names(), keyColumns),
		Now:     r.now(),
	}

	if q, args := strat.CloseStatement(p); q != "" {
		if closed, err = r.Backend.Exec(ctx, q, args...); err != nil {
			return 0, 0, fmt.Errorf("%s close: %w", strat.LoadType(), err)
		}
	}
	q, args := strat.InsertStatement(p)
	if inserted, err = r.Backend.Exec(ctx, q, args...); err != nil {
		return 0, closed, fmt.Errorf("%s insert: %w", strat.LoadType(), err)
	}
	return inserted, closed, nil
}

// nonKeyColumns returns the mapped columns not named as keys, compared
// case-insensitively the way key columns are validated.
func nonKeyColumns(columns, keys []string) []string {
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[strings.ToLower(strings.TrimSpace(k))] = true
	}
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if !isKey[strings.ToLower(strings.TrimSpace(c))] {
			out = append(out, c)
		}
	}
	return out
}

// canonicalKeys rewrites the header's key column spellings onto the
// exact mapped column names. Generated SQL quotes identifiers, so the
// spelling that created the column is the one every predicate must use.
// Keys that match no mapped column are dropped; ValidateHeader rejects
// those before any run starts.
func canonicalKeys(mapping catalog.ColumnMapping, keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		name := strings.ToLower(strings.TrimSpace(k))
		for _, c := range mapping {
			if strings.ToLower(strings.TrimSpace(c.Name)) == name {
				out = append(out, c.Name)
				break
			}
		}
	}
	return out
}
