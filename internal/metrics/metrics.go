// Package metrics is the seam between the ingestion engine and a
// metrics backend. The engine records counters and histogram samples
// against a process-wide backend; wiring one up is the CLI's job, and
// the default is a no-op so library code never checks for nil.
package metrics

import (
	"sync"
	"time"
)

// Labels are metric dimensions. Backends fold them into tags or label
// pairs as their protocol requires.
type Labels map[string]string

// Backend receives metric points. Implementations must be safe for
// concurrent use; Flush submits anything buffered.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

// Metric names the engine emits.
const (
	MetricRuns          = "ingest_runs_total"
	MetricRowsLoaded    = "ingest_rows_loaded_total"
	MetricRowsDeduped   = "ingest_rows_deduped_total"
	MetricRowsInserted  = "ingest_rows_inserted_total"
	MetricRowsClosed    = "ingest_rows_closed_total"
	MetricStageDuration = "ingest_stage_duration_seconds"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend replaces the process-wide backend. Passing nil restores
// the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to a counter on the active backend.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample on the active backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush submits buffered metrics on the active backend.
func Flush() error { return current().Flush() }

// RecordRun counts one finished ingestion run.
func RecordRun(loadType, status string) {
	IncCounter(MetricRuns, 1, Labels{"load_type": loadType, "status": status})
}

// RecordRows counts rows that moved through one pipeline step. metric
// should be one of the MetricRows* names; non-positive counts are
// dropped.
func RecordRows(metric string, loadType string, n int64) {
	if n <= 0 {
		return
	}
	IncCounter(metric, float64(n), Labels{"load_type": loadType})
}

// RecordStage records the wall-clock duration of one pipeline stage.
func RecordStage(stage, status string, d time.Duration) {
	ObserveHistogram(MetricStageDuration, d.Seconds(), Labels{"stage": stage, "status": status})
}
