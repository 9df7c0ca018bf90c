// Package audit records one immutable log row per ingestion run: what
// ran, from where to where, how many rows moved, and how it ended.
//
// Audit writes are best-effort. A failure to write the log row is
// reported to the operator channel and swallowed; a load never fails
// because its audit write failed. The resulting audit gap is an
// accepted tradeoff.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/rampotla586/ut-de-framework/internal/catalog"
	"github.com/rampotla586/ut-de-framework/internal/sqlgen"
	"github.com/rampotla586/ut-de-framework/internal/storage"
)

// LogTable is the audit table name. Qualification with database/schema
// comes from the storage configuration.
const LogTable = "ingestion_run_log"

// Run statuses.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// Entry is one audit row. Append-only; the engine never updates or
// deletes entries.
type Entry struct {
	RunID        string
	IngestionID  int64
	Source       string
	Destination  string
	Stage        string
	FileFormat   string
	LoadType     catalog.LoadType
	StartTime    time.Time
	EndTime      time.Time
	SourceCount  int64
	DestCount    int64
	Status       string
	ErrorMessage string
}

// Logger is the minimal logging interface used for operator diagnostics
// when an audit write fails. *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Recorder writes Entry rows to the log table, drawing log ids from the
// backend's id source. A nil Logger discards diagnostics.
type Recorder struct {
	Backend storage.Backend
	Table   sqlgen.TableRef
	Logger  Logger
}

// NewRecorder builds a Recorder writing to LogTable under the
// configured database/schema.
func NewRecorder(b storage.Backend, cfg storage.Config, opLog Logger) *Recorder {
	return &Recorder{Backend: b, Table: cfg.Ref(LogTable), Logger: opLog}
}

func (r *Recorder) logf(format string, v ...any) {
	if r.Logger != nil {
		r.Logger.Printf(format, v...)
	}
}

var logColumns = []string{
	"log_id", "run_id", "ingestion_id", "source_path", "destination_table",
	"stage_name", "file_format", "load_type", "start_time", "end_time",
	"source_count", "destination_count", "status", "error_message",
}

// EnsureLogTable creates the log table and its id source when absent.
func (r *Recorder) EnsureLogTable(ctx context.Context) error {
	d := r.Backend.Dialect()
	cols := []sqlgen.Column{
		{Name: "log_id", Type: "BIGINT NOT NULL"},
		{Name: "run_id", Type: d.StringType()},
		{Name: "ingestion_id", Type: "BIGINT"},
		{Name: "source_path", Type: d.StringType()},
		{Name: "destination_table", Type: d.StringType()},
		{Name: "stage_name", Type: d.StringType()},
		{Name: "file_format", Type: d.StringType()},
		{Name: "load_type", Type: d.StringType()},
		{Name: "start_time", Type: d.TimestampType()},
		{Name: "end_time", Type: d.TimestampType()},
		{Name: "source_count", Type: "BIGINT"},
		{Name: "destination_count", Type: "BIGINT"},
		{Name: "status", Type: d.StringType()},
		{Name: "error_message", Type: d.StringType()},
	}
	if _, err := r.Backend.Exec(ctx, sqlgen.CreateTable(d, r.Table, cols)); err != nil {
		return fmt.Errorf("create %s: %w", LogTable, err)
	}
	if err := r.Backend.EnsureLogSequence(ctx); err != nil {
		return fmt.Errorf("ensure log id source: %w", err)
	}
	return nil
}

// LogRun writes one audit row, drawing a fresh log id first. Failures
// go to the operator log only; LogRun never returns an error.
func (r *Recorder) LogRun(ctx context.Context, e Entry) {
	id, err := r.Backend.NextLogID(ctx)
	if err != nil {
		r.logf("audit: ingestion=%d run=%s next log id: %v", e.IngestionID, e.RunID, err)
		return
	}

	d := r.Backend.Dialect()

	// error_message and end_time are nullable; bind NULL rather than a
	// zero value.
	var errMsg any
	if e.ErrorMessage != "" {
		errMsg = e.ErrorMessage
	}
	var endTime any
	if !e.EndTime.IsZero() {
		endTime = d.TimeArg(e.EndTime)
	}

	stmt, args := sqlgen.InsertRows(d, r.Table, logColumns, [][]any{{
		id, e.RunID, e.IngestionID, e.Source, e.Destination, e.Stage,
		e.FileFormat, string(e.LoadType), d.TimeArg(e.StartTime), endTime,
		e.SourceCount, e.DestCount, e.Status, errMsg,
	}})
	if _, err := r.Backend.Exec(ctx, stmt, args...); err != nil {
		r.logf("audit: ingestion=%d run=%s insert log row: %v", e.IngestionID, e.RunID, err)
	}
}
