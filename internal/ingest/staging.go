package ingest

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rampotla586/ut-de-framework/internal/catalog"
	"github.com/rampotla586/ut-de-framework/internal/filefmt"
	"github.com/rampotla586/ut-de-framework/internal/sqlgen"
	"github.com/rampotla586/ut-de-framework/internal/stage"
	"github.com/rampotla586/ut-de-framework/internal/storage"
)

// defaultBatchSize caps rows buffered per staging insert when
// runtime.batch_size is unset.
const defaultBatchSize = 1024

// LoadStaging fills the ingestion's staging table from its named stage
// and file format and returns the number of rows loaded. Warehouse-
// managed stages go through the backend's native copy path; everything
// else is listed, parsed client-side, and inserted in
// parameter-limit-aware chunks. Malformed source rows are logged and
// skipped, lowering the count; zero rows is a valid count, not an error.
func (r *Runner) LoadStaging(ctx context.Context, h catalog.IngestionHeader, mapping catalog.ColumnMapping) (int64, error) {
	logf := r.logger()
	table := r.stagingRef(h)

	stageCfg, ok := r.Config.StageByName(h.Stage)
	if !ok {
		return 0, fmt.Errorf("ingestion %d: unknown stage %q", h.ID, h.Stage)
	}
	src, err := stage.New(stageCfg)
	if err != nil {
		return 0, fmt.Errorf("ingestion %d: %w", h.ID, err)
	}
	if w, ok := src.(*stage.Warehouse); ok {
		return r.copyNative(ctx, table, w, h)
	}

	fmtCfg, ok := r.Config.FormatByName(h.FileFormat)
	if !ok {
		return 0, fmt.Errorf("ingestion %d: unknown file format %q", h.ID, h.FileFormat)
	}
	reader, err := filefmt.New(fmtCfg)
	if err != nil {
		return 0, fmt.Errorf("ingestion %d: %w", h.ID, err)
	}

	files, err := src.List(ctx, h.Source)
	if err != nil {
		return 0, fmt.Errorf("ingestion %d: list %s: %w", h.ID, h.Source, err)
	}

	d := r.Backend.Dialect()
	ld := &stagingLoader{
		db:        r.Backend,
		d:         d,
		table:     table,
		cols:      append(mapping.Names(), catalog.ColLoadedAt),
		kinds:     mappingKinds(mapping),
		fields:    mappingFields(mapping),
		loadedAt:  d.TimeArg(r.now()),
		ingestion: h.ID,
		logf:      logf,
	}
	ld.chunk = r.Config.Runtime.BatchSize
	if ld.chunk <= 0 {
		ld.chunk = defaultBatchSize
	}
	if max := sqlgen.MaxRowsPerInsert(d, len(ld.cols)); ld.chunk > max {
		ld.chunk = max
	}

	for _, f := range files {
		if err := ld.loadFile(ctx, reader, src, f); err != nil {
			return ld.loaded, err
		}
	}
	if err := ld.flush(ctx); err != nil {
		return ld.loaded, err
	}
	if ld.skipped > 0 {
		logf("ingestion=%d staged=%d skipped=%d", h.ID, ld.loaded, ld.skipped)
	}
	return ld.loaded, nil
}

// copyNative routes a warehouse-managed stage through the backend's bulk
// copy path.
func (r *Runner) copyNative(ctx context.Context, table sqlgen.TableRef, w *stage.Warehouse, h catalog.IngestionHeader) (int64, error) {
	nc, ok := r.Backend.(storage.NativeCopier)
	if !ok {
		return 0, fmt.Errorf("ingestion %d: stage %q is warehouse-managed but %s has no native copy path",
			h.ID, h.Stage, r.Backend.Dialect().Name())
	}
	n, err := nc.CopyIntoStaging(ctx, table, w.Object, h.FileFormat, h.Source)
	if err != nil {
		return 0, fmt.Errorf("ingestion %d: copy into %s: %w", h.ID, table.Name, err)
	}
	return n, nil
}

// mappingFields renders a mapping as file-format extraction rules.
func mappingFields(mapping catalog.ColumnMapping) []filefmt.Field {
	out := make([]filefmt.Field, 0, len(mapping))
	for _, c := range mapping {
		out = append(out, filefmt.Field{Name: c.Name, Position: c.Position})
	}
	return out
}

func mappingKinds(mapping catalog.ColumnMapping) []columnKind {
	out := make([]columnKind, 0, len(mapping))
	for _, c := range mapping {
		out = append(out, kindOf(c.DataType))
	}
	return out
}

// stagingLoader accumulates parsed rows for one ingestion and writes
// them out in chunks.
type stagingLoader struct {
	db    storage.DB
	d     sqlgen.Dialect
	table sqlgen.TableRef

	cols   []string     // mapped columns plus _loaded_at
	kinds  []columnKind // one per mapped column
	fields []filefmt.Field
	chunk  int

	loadedAt  any
	ingestion int64
	file      string
	logf      func(format string, v ...any)

	batch   [][]any
	loaded  int64
	skipped int64
}

func (l *stagingLoader) loadFile(ctx context.Context, reader filefmt.Reader, src stage.Stage, f stage.File) error {
	rc, err := src.Open(ctx, f.Name)
	if err != nil {
		return fmt.Errorf("ingestion %d: open %s: %w", l.ingestion, f.Name, err)
	}
	defer rc.Close()

	l.file = f.Name
	err = reader.ReadRows(ctx, rc, l.fields, l.emit(ctx), func(line int, err error) {
		l.skipped++
		l.logf("ingestion=%d file=%s line=%d skipped: %v", l.ingestion, l.file, line, err)
	})
	if err != nil {
		return fmt.Errorf("ingestion %d: read %s: %w", l.ingestion, f.Name, err)
	}
	return nil
}

// emit returns the per-row callback: coerce each value to its column
// kind, stamp the load time, flush full chunks. A row that fails
// coercion is skipped like any other malformed record.
func (l *stagingLoader) emit(ctx context.Context) func(vals []any) error {
	return func(vals []any) error {
		row := make([]any, 0, len(l.cols))
		for i, v := range vals {
			cv, err := coerceValue(l.d, l.kinds[i], v)
			if err != nil {
				l.skipped++
				l.logf("ingestion=%d file=%s skipped: column %s: %v", l.ingestion, l.file, l.fields[i].Name, err)
				return nil
			}
			row = append(row, cv)
		}
		row = append(row, l.loadedAt)
		l.batch = append(l.batch, row)
		if len(l.batch) >= l.chunk {
			return l.flush(ctx)
		}
		return nil
	}
}

func (l *stagingLoader) flush(ctx context.Context) error {
	if len(l.batch) == 0 {
		return nil
	}
	q, args := sqlgen.InsertRows(l.d, l.table, l.cols, l.batch)
	if _, err := l.db.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("ingestion %d: insert staging %s: %w", l.ingestion, l.table.Name, err)
	}
	l.loaded += int64(len(l.batch))
	l.batch = l.batch[:0]
	return nil
}

// coerceValue converts one parsed source value to the Go value bound for
// its column kind. Text formats produce strings for every cell; JSONL
// hands through typed values. nil stays nil (SQL NULL). A value that
// cannot represent its declared kind is a malformed-record condition and
// skips the row.
//
// Timestamps are special-cased: a string in a recognized layout binds
// through the dialect's time representation, anything else passes
// through for the backend to interpret.
func coerceValue(d sqlgen.Dialect, k columnKind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch k {
	case kindInt:
		switch x := v.(type) {
		case int64:
			return x, nil
		case float64:
			if x != math.Trunc(x) {
				return nil, fmt.Errorf("value %v is not an integer", x)
			}
			return int64(x), nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("value %q is not an integer", x)
			}
			return n, nil
		}
	case kindFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case int64:
			return float64(x), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return nil, fmt.Errorf("value %q is not numeric", x)
			}
			return f, nil
		}
	case kindBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case int64:
			if x == 0 || x == 1 {
				return x == 1, nil
			}
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(x))
			if err != nil {
				return nil, fmt.Errorf("value %q is not a boolean", x)
			}
			return b, nil
		}
	case kindTime:
		if s, ok := v.(string); ok {
			if t, ok, err := storage.ParseTime(s); err == nil && ok {
				return d.TimeArg(t), nil
			}
		}
		return v, nil
	default:
		switch x := v.(type) {
		case string:
			return x, nil
		case int64:
			return strconv.FormatInt(x, 10), nil
		case float64:
			return strconv.FormatFloat(x, 'g', -1, 64), nil
		case bool:
			return strconv.FormatBool(x), nil
		}
		return v, nil
	}
	return nil, fmt.Errorf("cannot store %T as declared type", v)
}
