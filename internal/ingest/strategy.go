package ingest

import (
	"fmt"
	"strings"

	"github.com/rampotla586/ut-de-framework/internal/catalog"
	"github.com/rampotla586/ut-de-framework/internal/sqlgen"
)

// Strategy is one load type's merge behavior: how staged duplicates are
// broken, which destination rows close and how, what inserts, and the
// run policy around empty sources and schedule advancement. The
// orchestrator only ever talks to this interface, so a variant with
// different close semantics drops in without touching it.
type Strategy interface {
	LoadType() catalog.LoadType

	// TieBreak returns the dedup window ordering that picks the
	// surviving row per key partition.
	TieBreak(keyColumns []string) []sqlgen.OrderBy

	// RequiresRows reports whether zero staged rows fails the run.
	RequiresRows() bool

	// AdvancesSchedule reports whether a successful run advances the
	// ingestion's schedule.
	AdvancesSchedule() bool

	// CloseStatement renders the UPDATE that closes matched destination
	// rows, with its bind args. Empty statement means this strategy (or
	// this mapping) closes nothing.
	CloseStatement(p MergePlan) (string, []any)

	// InsertStatement renders the INSERT that adds new current rows,
	// with its bind args.
	InsertStatement(p MergePlan) (string, []any)
}

// StrategyFor returns the strategy implementing a validated load type.
func StrategyFor(t catalog.LoadType) (Strategy, error) {
	switch t {
	case catalog.LoadFull:
		return fullLoad{}, nil
	case catalog.LoadIncremental:
		return incrementalLoad{}, nil
	case catalog.LoadBulk:
		return bulkLoad{}, nil
	case catalog.LoadAppend:
		return appendLoad{}, nil
	default:
		return nil, fmt.Errorf("%w %q", catalog.ErrUnknownLoadType, t)
	}
}

// fullLoad reconciles the destination against a full staged snapshot.
// A matched row with any non-key difference is end-dated, flagged not
// current, and overwritten in place with the staged values, regardless
// of its current flag; unmatched keys insert as new current rows. An
// empty source is a valid "no changes" run, and a successful run
// advances the ingestion's schedule.
type fullLoad struct{}

func (fullLoad) LoadType() catalog.LoadType { return catalog.LoadFull }

// TieBreak keeps the highest first-key-column value, NULLs last.
func (fullLoad) TieBreak(keyColumns []string) []sqlgen.OrderBy {
	return []sqlgen.OrderBy{{Column: keyColumns[0], Desc: true, NullsLast: true}}
}

func (fullLoad) RequiresRows() bool     { return false }
func (fullLoad) AdvancesSchedule() bool { return true }

func (fullLoad) CloseStatement(p MergePlan) (string, []any) {
	return closeMatched(p, closeSpec{overwrite: true})
}

func (fullLoad) InsertStatement(p MergePlan) (string, []any) {
	return insertMissing(p)
}

// incrementalLoad applies a delta: the close-and-overwrite applies only
// to matched rows that are still current, unmatched keys insert as new
// current rows, and an empty source fails the run.
type incrementalLoad struct{}

func (incrementalLoad) LoadType() catalog.LoadType { return catalog.LoadIncremental }

// TieBreak orders by the load timestamp; all rows in a run share it, so
// the survivor is whichever row materialized first.
func (incrementalLoad) TieBreak([]string) []sqlgen.OrderBy {
	return []sqlgen.OrderBy{{Column: catalog.ColLoadedAt}}
}

func (incrementalLoad) RequiresRows() bool     { return true }
func (incrementalLoad) AdvancesSchedule() bool { return false }

func (incrementalLoad) CloseStatement(p MergePlan) (string, []any) {
	return closeMatched(p, closeSpec{overwrite: true, onlyCurrent: true})
}

func (incrementalLoad) InsertStatement(p MergePlan) (string, []any) {
	return insertMissing(p)
}

// bulkLoad supersedes current rows wholesale: every matched current row
// closes without content comparison and keeps its business columns,
// unmatched keys insert as new current rows, and an empty source fails
// the run.
type bulkLoad struct{}

func (bulkLoad) LoadType() catalog.LoadType { return catalog.LoadBulk }

// TieBreak keeps the lowest first-key-column value.
func (bulkLoad) TieBreak(keyColumns []string) []sqlgen.OrderBy {
	return []sqlgen.OrderBy{{Column: keyColumns[0]}}
}

func (bulkLoad) RequiresRows() bool     { return true }
func (bulkLoad) AdvancesSchedule() bool { return false }

func (bulkLoad) CloseStatement(p MergePlan) (string, []any) {
	return closeMatched(p, closeSpec{onlyCurrent: true})
}

func (bulkLoad) InsertStatement(p MergePlan) (string, []any) {
	return insertMissing(p)
}

// appendLoad inserts every deduplicated row as a new current row with no
// match against existing destination content; nothing ever closes or
// updates.
type appendLoad struct{}

func (appendLoad) LoadType() catalog.LoadType { return catalog.LoadAppend }

func (appendLoad) TieBreak([]string) []sqlgen.OrderBy {
	return []sqlgen.OrderBy{{Column: catalog.ColLoadedAt}}
}

func (appendLoad) RequiresRows() bool     { return false }
func (appendLoad) AdvancesSchedule() bool { return false }

func (appendLoad) CloseStatement(MergePlan) (string, []any) {
	return "", nil
}

func (appendLoad) InsertStatement(p MergePlan) (string, []any) {
	return insertAll(p)
}

// closeSpec selects the close variant: whether matched rows are
// overwritten with staged values (and must differ on a non-key column to
// match), and whether only current rows match.
type closeSpec struct {
	overwrite   bool
	onlyCurrent bool
}

// closeMatched renders the UPDATE that end-dates matched destination
// rows. With overwrite set it also writes the staged non-key values onto
// the matched row and restricts the match to rows with at least one
// null-aware non-key difference; without it every key match closes
// untouched. Returns "" when overwrite is asked for but the mapping has
// no non-key columns to differ on.
func closeMatched(p MergePlan, spec closeSpec) (string, []any) {
	d := p.Dialect
	if spec.overwrite && len(p.NonKeys) == 0 {
		return "", nil
	}

	target := d.QuoteIdent(p.Dest.Name)

	set := make([]string, 0, len(p.NonKeys)+2)
	if spec.overwrite {
		for _, c := range p.NonKeys {
			set = append(set, fmt.Sprintf("%s = s.%s", d.QuoteIdent(c), d.QuoteIdent(c)))
		}
	}
	set = append(set,
		fmt.Sprintf("%s = %s", d.QuoteIdent(catalog.ColIsCurrent), d.BoolLiteral(false)),
		fmt.Sprintf("%s = %s", d.QuoteIdent(catalog.ColEndDate), d.Placeholder(1)),
	)

	conds := make([]string, 0, len(p.Keys)+2)
	for _, k := range p.Keys {
		conds = append(conds, fmt.Sprintf("%s.%s = s.%s", target, d.QuoteIdent(k), d.QuoteIdent(k)))
	}
	if spec.onlyCurrent {
		conds = append(conds, fmt.Sprintf("%s.%s = %s", target, d.QuoteIdent(catalog.ColIsCurrent), d.BoolLiteral(true)))
	}
	if spec.overwrite {
		diffs := make([]string, 0, len(p.NonKeys))
		for _, c := range p.NonKeys {
			diffs = append(diffs, d.DistinctFrom(
				target+"."+d.QuoteIdent(c),
				"s."+d.QuoteIdent(c),
			))
		}
		conds = append(conds, "("+strings.Join(diffs, " OR ")+")")
	}

	return d.UpdateFrom(p.Dest, p.Dedup, set, conds), []any{d.TimeArg(p.Now)}
}

// destColumns is the full INSERT column list: business columns plus the
// three tracking columns.
func destColumns(p MergePlan) []string {
	cols := make([]string, 0, len(p.Columns)+3)
	cols = append(cols, p.Columns...)
	return append(cols, catalog.ColIsCurrent, catalog.ColStartDate, catalog.ColEndDate)
}

// selectNewRows projects dedup rows as new current versions: staged
// business values, current flag TRUE, start date now, end date NULL.
func selectNewRows(p MergePlan) string {
	d := p.Dialect
	exprs := make([]string, 0, len(p.Columns)+3)
	for _, c := range p.Columns {
		exprs = append(exprs, "s."+d.QuoteIdent(c))
	}
	exprs = append(exprs, d.BoolLiteral(true), d.Placeholder(1), "NULL")
	return fmt.Sprintf("SELECT %s FROM %s AS s", strings.Join(exprs, ", "), d.Table(p.Dedup))
}

// insertMissing renders the INSERT that adds one new current row per
// deduplicated key with no destination match, scanning all destination
// rows regardless of their current flag.
func insertMissing(p MergePlan) (string, []any) {
	d := p.Dialect
	conds := make([]string, 0, len(p.Keys))
	for _, k := range p.Keys {
		conds = append(conds, fmt.Sprintf("t.%s = s.%s", d.QuoteIdent(k), d.QuoteIdent(k)))
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) %s WHERE NOT EXISTS (SELECT 1 FROM %s AS t WHERE %s);",
		d.Table(p.Dest),
		strings.Join(sqlgen.QuoteAll(d, destColumns(p)), ", "),
		selectNewRows(p),
		d.Table(p.Dest),
		strings.Join(conds, " AND "),
	)
	return q, []any{d.TimeArg(p.Now)}
}

// insertAll renders the INSERT that adds every deduplicated row as a new
// current row.
func insertAll(p MergePlan) (string, []any) {
	d := p.Dialect
	q := fmt.Sprintf("INSERT INTO %s (%s) %s;",
		d.Table(p.Dest),
		strings.Join(sqlgen.QuoteAll(d, destColumns(p)), ", "),
		selectNewRows(p),
	)
	return q, []any{d.TimeArg(p.Now)}
}
