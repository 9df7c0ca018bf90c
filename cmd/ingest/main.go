// Command ingest runs the metadata-driven ingestion engine: it reads
// ingestion definitions from the catalog tables named in the config,
// loads staged files into their destination tables, and writes one
// audit row per run.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/rampotla586/ut-de-framework/internal/audit"
	"github.com/rampotla586/ut-de-framework/internal/catalog"
	"github.com/rampotla586/ut-de-framework/internal/config"
	"github.com/rampotla586/ut-de-framework/internal/ingest"
	"github.com/rampotla586/ut-de-framework/internal/metrics"
	"github.com/rampotla586/ut-de-framework/internal/metrics/datadog"
	"github.com/rampotla586/ut-de-framework/internal/metrics/prompush"
	"github.com/rampotla586/ut-de-framework/internal/storage"

	// register every storage backend with the factory; the config picks
	// which one a deployment uses.
	_ "github.com/rampotla586/ut-de-framework/internal/storage/all"
)

// runner is the engine surface the CLI drives.
type runner interface {
	Run(ctx context.Context) error
	RunOne(ctx context.Context, id int64) error
}

// runOptions carries the per-invocation switches into runner
// construction.
type runOptions struct {
	dueOnly bool
}

// appDeps are runMain's side-effecting collaborators. main wires the
// real ones; tests substitute fakes.
type appDeps struct {
	loadConfig  func(path string) (config.Config, error)
	openBackend func(ctx context.Context, sess storage.Config) (storage.Backend, error)
	bootstrap   func(ctx context.Context, b storage.Backend, sess storage.Config) error
	newRunner   func(b storage.Backend, sess storage.Config, cfg config.Config, opts runOptions) runner
	initMetrics func(ctx context.Context, jobName, backendName, gatewayURL string) (func(), error)
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig:  config.Load,
		openBackend: storage.Open,
		bootstrap: func(ctx context.Context, b storage.Backend, sess storage.Config) error {
			if err := catalog.NewStore(b, b.Dialect(), sess).EnsureCatalog(ctx); err != nil {
				return err
			}
			return audit.NewRecorder(b, sess, log.Default()).EnsureLogTable(ctx)
		},
		newRunner: func(b storage.Backend, sess storage.Config, cfg config.Config, opts runOptions) runner {
			return &ingest.Runner{
				Backend: b,
				Session: sess,
				Catalog: catalog.NewStore(b, b.Dialect(), sess),
				Audit:   audit.NewRecorder(b, sess, log.Default()),
				Config:  cfg,
				Logger:  log.Default(),
				DueOnly: opts.dueOnly,
			}
		},
		initMetrics: initMetrics,
	}
}

func main() {
	os.Exit(runMain(context.Background(), os.Args[1:], os.Stdout, os.Stderr, defaultDeps()))
}

func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		cfgPath        string
		ingestionID    int64
		dueOnly        bool
		bootstrap      bool
		validateOnly   bool
		metricsBackend string
		pushGatewayURL string
	)
	fs.StringVar(&cfgPath, "config", "", "engine config JSON path")
	fs.Int64Var(&ingestionID, "ingestion-id", 0, "run one ingestion id instead of every active definition")
	fs.BoolVar(&dueOnly, "due-only", false, "run only ingestions whose schedule is due")
	fs.BoolVar(&bootstrap, "bootstrap", false, "create the catalog and run-log tables before running")
	fs.BoolVar(&validateOnly, "validate", false, "validate the configuration and exit")
	fs.StringVar(&metricsBackend, "metrics-backend", "", "metrics backend (pushgateway, datadog, none; overrides env METRICS_BACKEND)")
	fs.StringVar(&pushGatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	verbose := fs.Bool("v", false, "enable verbose logs")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(cfgPath) == "" {
		fmt.Fprintln(stderr, "usage: ingest -config <path> [-ingestion-id N] [-due-only] [-bootstrap] [-validate]")
		return 2
	}

	cfg, err := deps.loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "read config: %v\n", err)
		return 1
	}

	hasError := false
	for _, iss := range config.Validate(cfg) {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		fmt.Fprintf(stderr, "configuration is invalid: %s\n", cfgPath)
		return 1
	}
	if validateOnly {
		fmt.Fprintf(stdout, "configuration is valid: %s\n", cfgPath)
		return 0
	}

	jobName := cfg.Job
	if jobName == "" {
		jobName = "ingest_job"
	}
	backendName := metricsBackend
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	gwURL := pushGatewayURL
	if gwURL == "" {
		gwURL = os.Getenv("PUSHGATEWAY_URL")
	}

	cleanup, err := deps.initMetrics(ctx, jobName, backendName, gwURL)
	if err != nil {
		fmt.Fprintf(stderr, "init metrics: %v\n", err)
		return 1
	}
	defer cleanup()

	sess := storage.Config{
		Kind:     cfg.Storage.Kind,
		DSN:      cfg.Storage.DSN,
		Database: cfg.Storage.Database,
		Schema:   cfg.Storage.Schema,
		Role:     cfg.Storage.Role,
	}
	backend, err := deps.openBackend(ctx, sess)
	if err != nil {
		fmt.Fprintf(stderr, "open storage: %v\n", err)
		return 1
	}
	defer backend.Close()

	if bootstrap {
		if err := deps.bootstrap(ctx, backend, sess); err != nil {
			fmt.Fprintf(stderr, "bootstrap: %v\n", err)
			return 1
		}
	}

	if *verbose {
		log.Printf("engine: storage=%s database=%s schema=%s stages=%d formats=%d",
			sess.Kind, sess.Database, sess.Schema, len(cfg.Stages), len(cfg.Formats))
	}

	start := time.Now()
	r := deps.newRunner(backend, sess, cfg, runOptions{dueOnly: dueOnly})
	if ingestionID > 0 {
		err = r.RunOne(ctx, ingestionID)
	} else {
		err = r.Run(ctx)
	}
	if err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return 1
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
	fmt.Fprintln(stdout, "ok")
	return 0
}

// metricsCloser is the shutdown surface of a buffering metrics backend.
type metricsCloser interface {
	Close() error
}

// metricsFlusher is the shutdown surface of a push-on-flush backend.
type metricsFlusher interface {
	Flush() error
}

// Seams for tests; production code never reassigns these.
var (
	newPushBackend = func(jobName, gatewayURL string) (metricsFlusher, error) {
		return prompush.NewBackend(jobName, gatewayURL)
	}
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsCloser, error) {
		return datadog.NewBackend(ctx, opts)
	}
	setMetricsBackend = func(b any) {
		if mb, ok := b.(metrics.Backend); ok {
			metrics.SetBackend(mb)
		}
	}
	logPrintf = log.Printf
)

// initMetrics wires the named metrics backend into the process-wide
// metrics seam and returns its shutdown function. The returned cleanup
// is always non-nil and safe to call, even on error.
func initMetrics(ctx context.Context, jobName, backendName, gatewayURL string) (func(), error) {
	nop := func() {}

	switch strings.ToLower(strings.TrimSpace(backendName)) {
	case "", "none", "noop":
		return nop, nil

	case "pushgateway", "prom":
		if gatewayURL == "" {
			gatewayURL = "http://localhost:9091"
		}
		b, err := newPushBackend(jobName, gatewayURL)
		if err != nil {
			return nop, fmt.Errorf("init pushgateway backend: %w", err)
		}
		setMetricsBackend(b)
		logPrintf("metrics: backend=pushgateway url=%s job=%s", gatewayURL, jobName)
		return func() {
			if err := b.Flush(); err != nil {
				logPrintf("metrics: push error: %v", err)
			}
		}, nil

	case "datadog", "dd":
		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName:    jobName,
			Tags:       datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")),
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			return nop, fmt.Errorf("init datadog backend: %w", err)
		}
		setMetricsBackend(b)
		logPrintf("metrics: backend=datadog job=%s", jobName)
		return func() {
			// Close stops the periodic flush loop and submits once more.
			if err := b.Close(); err != nil {
				logPrintf("metrics: datadog close error: %v", err)
			}
		}, nil

	default:
		return nop, fmt.Errorf("unknown metrics backend %q (want none|pushgateway|datadog)", backendName)
	}
}
