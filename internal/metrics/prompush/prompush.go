// Package prompush implements a Prometheus Pushgateway backend for the
// internal/metrics package.
//
// Counters and histograms register lazily in a private registry on
// first use; Flush pushes the whole registry to the gateway under the
// configured job name. Pushgateway keeps the last pushed value per
// (job, metric, labels) grouping, which suits batch-style ingestion
// passes; a long-lived scraped process would not need this package.
package prompush

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/rampotla586/ut-de-framework/internal/metrics"
)

// Backend implements metrics.Backend over a private registry pushed to a
// Pushgateway on Flush.
type Backend struct {
	pusher *push.Pusher

	mu         sync.Mutex
	registry   *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// NewBackend builds a backend pushing to gatewayURL under jobName.
// An empty jobName defaults to "ingest".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if strings.TrimSpace(gatewayURL) == "" {
		return nil, fmt.Errorf("prompush: empty gateway URL")
	}
	if strings.TrimSpace(jobName) == "" {
		jobName = "ingest"
	}

	reg := prometheus.NewRegistry()
	return &Backend{
		pusher:     push.New(gatewayURL, jobName).Gatherer(reg),
		registry:   reg,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}, nil
}

// labelKeys returns the sorted label names of one observation. The
// first observation of a metric name fixes its label schema; later
// observations with different keys are dropped.
func labelKeys(labels metrics.Labels) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	b.mu.Lock()
	vec, ok := b.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name,
			Help: helpFor(name),
		}, labelKeys(labels))
		if err := b.registry.Register(vec); err != nil {
			b.mu.Unlock()
			return
		}
		b.counters[name] = vec
	}
	b.mu.Unlock()

	c, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return
	}
	c.Add(delta)
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}

	b.mu.Lock()
	vec, ok := b.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    helpFor(name),
			Buckets: prometheus.DefBuckets,
		}, labelKeys(labels))
		if err := b.registry.Register(vec); err != nil {
			b.mu.Unlock()
			return
		}
		b.histograms[name] = vec
	}
	b.mu.Unlock()

	h, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return
	}
	h.Observe(value)
}

// Flush pushes the whole registry to the gateway, replacing the
// previous push for this job.
func (b *Backend) Flush() error {
	return b.pusher.Push()
}

func helpFor(name string) string {
	switch name {
	case metrics.MetricRuns:
		return "Finished ingestion runs by load type and status."
	case metrics.MetricRowsLoaded:
		return "Rows copied into staging tables."
	case metrics.MetricRowsDeduped:
		return "Rows surviving per-key deduplication."
	case metrics.MetricRowsInserted:
		return "New version rows inserted into destination tables."
	case metrics.MetricRowsClosed:
		return "Current rows closed during merges."
	case metrics.MetricStageDuration:
		return "Wall-clock duration of pipeline stages in seconds."
	default:
		return name
	}
}

var _ metrics.Backend = (*Backend)(nil)
