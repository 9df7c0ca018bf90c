// Package ingest runs the metadata-driven load pipeline end to end:
// ensure schema, stage source files, deduplicate, merge under the
// header's load strategy, audit the run, and advance the schedule after
// a successful full load. Failures never cross ingestion-id boundaries;
// a failing definition audits FAILED and the orchestrator moves on.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/rampotla586/ut-de-framework/internal/audit"
	"github.com/rampotla586/ut-de-framework/internal/catalog"
	"github.com/rampotla586/ut-de-framework/internal/config"
	"github.com/rampotla586/ut-de-framework/internal/metrics"
	"github.com/rampotla586/ut-de-framework/internal/schedule"
	"github.com/rampotla586/ut-de-framework/internal/sqlgen"
	"github.com/rampotla586/ut-de-framework/internal/storage"
)

// ErrNoRowsLoaded marks an empty source under a strategy that requires
// staged rows (INCREMENTAL and BULK).
var ErrNoRowsLoaded = errors.New("ingest: no rows loaded")

// Logger is the minimal logging seam the runner reports progress
// through. *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Runner executes ingestion definitions sequentially, one to completion
// at a time, isolating failures to the failing ingestion id.
type Runner struct {
	Backend storage.Backend
	Session storage.Config
	Catalog *catalog.Store
	Audit   *audit.Recorder
	Config  config.Config
	Logger  Logger

	// DueOnly skips ingestions whose schedule says the next run is still
	// in the future. Unscheduled ingestions always run.
	DueOnly bool

	// Now and NewRunID are seams for deterministic tests. Nil means
	// time.Now and uuid.NewString.
	Now      func() time.Time
	NewRunID func() string
}

func (r *Runner) logger() func(format string, v ...any) {
	if r.Logger == nil {
		l := log.New(discardWriter{}, "", 0)
		return l.Printf
	}
	return r.Logger.Printf
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) runID() string {
	if r.NewRunID != nil {
		return r.NewRunID()
	}
	return uuid.NewString()
}

// stagingRef returns the run-scoped staging table for an ingestion.
// Staging lives next to the destination under the same database and
// schema.
func (r *Runner) stagingRef(h catalog.IngestionHeader) sqlgen.TableRef {
	return r.Session.Ref("stg_" + h.Destination)
}

func durMS(start time.Time) time.Duration { return time.Since(start).Truncate(time.Millisecond) }

// Run executes every active ingestion definition in id order. A failing
// definition is audited FAILED and does not stop the pass; the returned
// error only reports how many definitions failed.
func (r *Runner) Run(ctx context.Context) error {
	logf := r.logger()

	headers, err := r.Catalog.ListActive(ctx, func(id int64, err error) {
		logf("ingestion=%d skipped: %v", id, err)
	})
	if err != nil {
		return err
	}

	failed := 0
	for _, h := range headers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.DueOnly {
			due, err := r.due(ctx, h)
			if err != nil {
				logf("ingestion=%d schedule check failed, skipping: %v", h.ID, err)
				continue
			}
			if !due {
				logf("ingestion=%d not due, skipping", h.ID)
				continue
			}
		}
		if err := r.RunHeader(ctx, h); err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d ingestions failed", failed, len(headers))
	}
	return nil
}

// RunOne executes a single ingestion definition by id, regardless of its
// active flag.
func (r *Runner) RunOne(ctx context.Context, id int64) error {
	h, err := r.Catalog.HeaderByID(ctx, id)
	if err != nil {
		return err
	}
	return r.RunHeader(ctx, h)
}

// RunHeader executes one ingestion definition to completion and audits
// the outcome, success and failure alike. The returned error is the
// run's failure cause; the audit row and operator log already carry it.
func (r *Runner) RunHeader(ctx context.Context, h catalog.IngestionHeader) error {
	logf := r.logger()
	start := r.now()

	e := audit.Entry{
		RunID:       r.runID(),
		IngestionID: h.ID,
		Source:      h.Source,
		Destination: h.Destination,
		Stage:       h.Stage,
		FileFormat:  h.FileFormat,
		LoadType:    h.LoadType,
		StartTime:   start,
	}
	logf("ingestion=%d run=%s load_type=%s dest=%s start", h.ID, e.RunID, h.LoadType, h.Destination)

	err := r.execute(ctx, h, &e)
	e.EndTime = r.now()
	if err != nil {
		e.Status = audit.StatusFailed
		e.ErrorMessage = err.Error()
		logf("ingestion=%d run=%s failed: %v", h.ID, e.RunID, err)
	} else {
		e.Status = audit.StatusSuccess
		logf("ingestion=%d run=%s ok source_rows=%d dest_rows=%d duration=%s",
			h.ID, e.RunID, e.SourceCount, e.DestCount, durMS(start))
	}

	if r.Audit != nil {
		r.Audit.LogRun(ctx, e)
	}
	metrics.RecordRun(h.LoadType.String(), e.Status)
	return err
}

// execute is the pipeline body for one ingestion. It fills the audit
// entry's counts as stages complete and returns the first failure.
func (r *Runner) execute(ctx context.Context, h catalog.IngestionHeader, e *audit.Entry) error {
	logf := r.logger()

	strat, err := StrategyFor(h.LoadType)
	if err != nil {
		return err
	}
	mapping, err := r.Catalog.MappingFor(ctx, h.ID)
	if err != nil {
		return err
	}
	if err := catalog.ValidateHeader(h, mapping); err != nil {
		return err
	}
	keys := canonicalKeys(mapping, h.KeyColumns)

	dest := r.Session.Ref(h.Destination)
	staging := r.stagingRef(h)

	schemaStart := time.Now()
	err = r.EnsureDestination(ctx, dest, mapping)
	if err == nil {
		err = r.EnsureSCDColumns(ctx, dest)
	}
	if err == nil {
		err = r.EnsureStaging(ctx, staging, mapping)
	}
	if err = r.stageDone(h, "schema", schemaStart, err); err != nil {
		return err
	}

	stagingStart := time.Now()
	loaded, err := r.LoadStaging(ctx, h, mapping)
	e.SourceCount = loaded
	if err = r.stageDone(h, "staging", stagingStart, err); err != nil {
		return err
	}
	metrics.RecordRows(metrics.MetricRowsLoaded, h.LoadType.String(), loaded)
	if loaded == 0 && strat.RequiresRows() {
		return fmt.Errorf("ingestion %d: %w from %s", h.ID, ErrNoRowsLoaded, h.Source)
	}

	dedupStart := time.Now()
	dedup, dedupRows, err := r.Deduplicate(ctx, staging, mapping, keys, strat.TieBreak(keys))
	if err = r.stageDone(h, "dedup", dedupStart, err); err != nil {
		return err
	}
	metrics.RecordRows(metrics.MetricRowsDeduped, h.LoadType.String(), dedupRows)

	mergeStart := time.Now()
	inserted, closed, err := r.Merge(ctx, dest, dedup, mapping, keys, strat)
	if err = r.stageDone(h, "merge", mergeStart, err); err != nil {
		return err
	}
	metrics.RecordRows(metrics.MetricRowsInserted, h.LoadType.String(), inserted)
	metrics.RecordRows(metrics.MetricRowsClosed, h.LoadType.String(), closed)
	logf("ingestion=%d merged inserted=%d closed=%d", h.ID, inserted, closed)

	var total int64
	if err := r.Backend.QueryRow(ctx, sqlgen.CountRows(r.Backend.Dialect(), dest)).Scan(&total); err != nil {
		return fmt.Errorf("count destination %s: %w", h.Destination, err)
	}
	e.DestCount = total

	if strat.AdvancesSchedule() {
		if err := r.advanceSchedule(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

// stageDone records one pipeline stage's outcome in the operator log and
// the stage-duration metric, passing the error through.
func (r *Runner) stageDone(h catalog.IngestionHeader, stage string, start time.Time, err error) error {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordStage(stage, status, time.Since(start))
	if err == nil {
		r.logger()("ingestion=%d stage=%s ok duration=%s", h.ID, stage, durMS(start))
	}
	return err
}

// advanceSchedule moves the ingestion's schedule forward after a
// successful full load. An unscheduled ingestion is not an error.
func (r *Runner) advanceSchedule(ctx context.Context, h catalog.IngestionHeader) error {
	sched, err := r.Catalog.ScheduleFor(ctx, h.ID)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	next, err := schedule.Advance(ctx, r.Catalog, sched, r.now())
	if err != nil {
		return err
	}
	r.logger()("ingestion=%d schedule=%d next_run=%s", h.ID, sched.ID, next.UTC().Format(time.RFC3339))
	return nil
}

// due reports whether the ingestion's schedule owes a run now.
// Unscheduled ingestions are always due.
func (r *Runner) due(ctx context.Context, h catalog.IngestionHeader) (bool, error) {
	sched, err := r.Catalog.ScheduleFor(ctx, h.ID)
	if errors.Is(err, catalog.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return schedule.Due(sched, r.now()), nil
}
