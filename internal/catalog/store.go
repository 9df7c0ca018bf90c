package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rampotla586/ut-de-framework/internal/sqlgen"
	"github.com/rampotla586/ut-de-framework/internal/storage"
)

// Store reads the catalog tables and carries the single mutation the
// engine performs on them, schedule advancement.
type Store struct {
	db storage.DB
	d  sqlgen.Dialect

	headers   sqlgen.TableRef
	mappings  sqlgen.TableRef
	schedules sqlgen.TableRef
}

// NewStore binds a store to the catalog tables under cfg's database and
// schema.
func NewStore(db storage.DB, d sqlgen.Dialect, cfg storage.Config) *Store {
	return &Store{
		db:        db,
		d:         d,
		headers:   cfg.Ref(HeadersTable),
		mappings:  cfg.Ref(MappingsTable),
		schedules: cfg.Ref(SchedulesTable),
	}
}

var headerColumns = []string{
	"id", "stage_name", "source_path", "destination_table",
	"file_format", "load_type", "key_columns", "is_active",
}

func (s *Store) selectHeaders() string {
	return fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(sqlgen.QuoteAll(s.d, headerColumns), ", "),
		s.d.Table(s.headers),
	)
}

// scanHeader reads one header row. On an unknown load type the returned
// header still carries the row's id so the caller can report which
// definition was skipped.
func scanHeader(r storage.Row) (IngestionHeader, error) {
	var (
		h        IngestionHeader
		loadType string
		keyList  string
	)
	err := r.Scan(&h.ID, &h.Stage, &h.Source, &h.Destination, &h.FileFormat, &loadType, &keyList, &h.Active)
	if err != nil {
		return IngestionHeader{}, err
	}
	h.KeyColumns = splitKeyColumns(keyList)

	h.LoadType, err = ParseLoadType(loadType)
	if err != nil {
		return h, err
	}
	return h, nil
}

// ListActive returns every active ingestion header in id order. A row
// whose load type fails validation is reported through onSkip (nil is
// allowed) and excluded, so it never reaches dispatch.
func (s *Store) ListActive(ctx context.Context, onSkip func(id int64, err error)) ([]IngestionHeader, error) {
	q := fmt.Sprintf("%s WHERE %s = %s ORDER BY %s;",
		s.selectHeaders(),
		s.d.QuoteIdent("is_active"), s.d.BoolLiteral(true),
		s.d.QuoteIdent("id"),
	)

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list active ingestions: %w", err)
	}
	defer rows.Close()

	var out []IngestionHeader
	for rows.Next() {
		h, err := scanHeader(rows)
		if err != nil {
			if errors.Is(err, ErrUnknownLoadType) {
				if onSkip != nil {
					onSkip(h.ID, err)
				}
				continue
			}
			return nil, fmt.Errorf("scan ingestion header: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// HeaderByID fetches one header regardless of its active flag.
// Returns ErrNotFound when no row exists; an unknown load type is an
// error here, not a skip.
func (s *Store) HeaderByID(ctx context.Context, id int64) (IngestionHeader, error) {
	q := fmt.Sprintf("%s WHERE %s = %s;", s.selectHeaders(), s.d.QuoteIdent("id"), s.d.Placeholder(1))

	h, err := scanHeader(s.db.QueryRow(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return IngestionHeader{}, fmt.Errorf("ingestion %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return IngestionHeader{}, fmt.Errorf("ingestion %d: %w", id, err)
	}
	return h, nil
}

// MappingFor returns the ordered column mapping for an ingestion.
// Returns ErrNoMapping when no rows exist: a header without a mapping is
// a configuration error, not an empty table.
func (s *Store) MappingFor(ctx context.Context, id int64) (ColumnMapping, error) {
	q := fmt.Sprintf("SELECT %s, %s, %s FROM %s WHERE %s = %s ORDER BY %s;",
		s.d.QuoteIdent("column_name"), s.d.QuoteIdent("data_type"), s.d.QuoteIdent("ordinal_position"),
		s.d.Table(s.mappings),
		s.d.QuoteIdent("ingestion_id"), s.d.Placeholder(1),
		s.d.QuoteIdent("ordinal_position"),
	)

	rows, err := s.db.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("mapping for ingestion %d: %w", id, err)
	}
	defer rows.Close()

	var m ColumnMapping
	for rows.Next() {
		var c MappedColumn
		if err := rows.Scan(&c.Name, &c.DataType, &c.Position); err != nil {
			return nil, fmt.Errorf("scan mapping for ingestion %d: %w", id, err)
		}
		m = append(m, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mapping for ingestion %d: %w", id, err)
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("ingestion %d: %w", id, ErrNoMapping)
	}
	return m, nil
}

// ScheduleFor returns the schedule row for an ingestion, or ErrNotFound
// when the ingestion is unscheduled.
func (s *Store) ScheduleFor(ctx context.Context, ingestionID int64) (ScheduleDefinition, error) {
	cols := []string{
		"id", "ingestion_id", "schedule_type", "interval_minutes",
		"cron_expression", "timezone", "last_run", "next_run",
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s;",
		strings.Join(sqlgen.QuoteAll(s.d, cols), ", "),
		s.d.Table(s.schedules),
		s.d.QuoteIdent("ingestion_id"), s.d.Placeholder(1),
	)

	var (
		def      ScheduleDefinition
		kind     string
		interval sql.NullInt64
		cron     sql.NullString
		tz       sql.NullString
		lastRaw  any
		nextRaw  any
	)
	err := s.db.QueryRow(ctx, q, ingestionID).Scan(
		&def.ID, &def.IngestionID, &kind, &interval, &cron, &tz, &lastRaw, &nextRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return ScheduleDefinition{}, fmt.Errorf("schedule for ingestion %d: %w", ingestionID, ErrNotFound)
	}
	if err != nil {
		return ScheduleDefinition{}, fmt.Errorf("schedule for ingestion %d: %w", ingestionID, err)
	}

	if def.Kind, err = ParseScheduleKind(kind); err != nil {
		return ScheduleDefinition{}, fmt.Errorf("ingestion %d: %w", ingestionID, err)
	}
	def.IntervalMinutes = int(interval.Int64)
	def.CronExpr = cron.String
	def.Timezone = tz.String

	if def.LastRun, _, err = storage.ParseTime(lastRaw); err != nil {
		return ScheduleDefinition{}, fmt.Errorf("ingestion %d last_run: %w", ingestionID, err)
	}
	if def.NextRun, _, err = storage.ParseTime(nextRaw); err != nil {
		return ScheduleDefinition{}, fmt.Errorf("ingestion %d next_run: %w", ingestionID, err)
	}
	return def, nil
}

// UpdateSchedule persists an advanced schedule as one atomic UPDATE
// keyed by schedule id. Zero rows affected means the schedule row is
// gone and surfaces as ErrNotFound.
func (s *Store) UpdateSchedule(ctx context.Context, scheduleID int64, lastRun, nextRun, updatedAt time.Time) error {
	q := fmt.Sprintf("UPDATE %s SET %s = %s, %s = %s, %s = %s WHERE %s = %s;",
		s.d.Table(s.schedules),
		s.d.QuoteIdent("last_run"), s.d.Placeholder(1),
		s.d.QuoteIdent("next_run"), s.d.Placeholder(2),
		s.d.QuoteIdent("updated_at"), s.d.Placeholder(3),
		s.d.QuoteIdent("id"), s.d.Placeholder(4),
	)

	n, err := s.db.Exec(ctx, q,
		s.d.TimeArg(lastRun), s.d.TimeArg(nextRun), s.d.TimeArg(updatedAt), scheduleID)
	if err != nil {
		return fmt.Errorf("update schedule %d: %w", scheduleID, err)
	}
	if n == 0 {
		return fmt.Errorf("update schedule %d: %w", scheduleID, ErrNotFound)
	}
	return nil
}
