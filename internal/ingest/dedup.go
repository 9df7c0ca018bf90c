package ingest

import (
	"context"
	"fmt"

	"github.com/rampotla586/ut-de-framework/internal/catalog"
	"github.com/rampotla586/ut-de-framework/internal/sqlgen"
)

// Deduplicate materializes one surviving row per key partition of the
// staging table into a run-scoped dedup table and returns its reference
// and row count. The survivor is chosen by tieBreak, which is strategy
// policy (Strategy.TieBreak). The dedup table carries business columns
// only and is drop-and-rebuilt on every call, so repeating the operation
// over unchanged input yields the same row set.
func (r *Runner) Deduplicate(ctx context.Context, staging sqlgen.TableRef, mapping catalog.ColumnMapping, keyColumns []string, tieBreak []sqlgen.OrderBy) (sqlgen.TableRef, int64, error) {
	d := r.Backend.Dialect()
	dedup := staging
	dedup.Name = staging.Name + "_dedup"

	if _, err := r.Backend.Exec(ctx, sqlgen.DropTable(d, dedup)); err != nil {
		return sqlgen.TableRef{}, 0, fmt.Errorf("drop dedup %s: %w", dedup.Name, err)
	}
	if _, err := r.Backend.Exec(ctx, sqlgen.CreateTable(d, dedup, mappedColumns(d, mapping))); err != nil {
		return sqlgen.TableRef{}, 0, fmt.Errorf("create dedup %s: %w", dedup.Name, err)
	}

	rows, err := r.Backend.Exec(ctx, sqlgen.DedupInsert(d, dedup, staging, mapping.Names(), keyColumns, tieBreak))
	if err != nil {
		return sqlgen.TableRef{}, 0, fmt.Errorf("deduplicate %s: %w", staging.Name, err)
	}
	return dedup, rows, nil
}
