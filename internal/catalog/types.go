// Package catalog reads the metadata tables that drive the ingestion
// engine: headers (what to load, from where, with which strategy),
// column mappings (destination schema and positional extraction order)
// and schedules (when to load next).
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Catalog table names. Qualification with database/schema comes from the
// storage configuration.
const (
	HeadersTable   = "ingestion_headers"
	MappingsTable  = "ingestion_mappings"
	SchedulesTable = "ingestion_schedules"
)

// Reserved destination column names. The engine owns these; a mapping
// that declares one is a configuration error. Names starting with an
// underscore are reserved for engine bookkeeping (staging adds
// ColLoadedAt to every row).
const (
	ColIsCurrent = "is_current"
	ColStartDate = "start_date"
	ColEndDate   = "end_date"
	ColLoadedAt  = "_loaded_at"
)

var (
	ErrNotFound        = errors.New("catalog: not found")
	ErrNoMapping       = errors.New("catalog: no column mapping")
	ErrUnknownLoadType = errors.New("catalog: unknown load type")
	ErrBadHeader       = errors.New("catalog: invalid header")
	ErrBadSchedule     = errors.New("catalog: invalid schedule")
)

// LoadType is the closed set of load strategies. Values outside the set
// never construct: ParseLoadType rejects them when the header row is
// read, before any run starts.
type LoadType string

const (
	LoadFull        LoadType = "FULL"
	LoadIncremental LoadType = "INCREMENTAL"
	LoadBulk        LoadType = "BULK"
	LoadAppend      LoadType = "APPEND"
)

// ParseLoadType matches case-insensitively and trims surrounding space.
func ParseLoadType(s string) (LoadType, error) {
	switch t := LoadType(strings.ToUpper(strings.TrimSpace(s))); t {
	case LoadFull, LoadIncremental, LoadBulk, LoadAppend:
		return t, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownLoadType, s)
	}
}

func (t LoadType) String() string { return string(t) }

// ScheduleKind selects the next-run arithmetic.
type ScheduleKind string

const (
	ScheduleRecurring ScheduleKind = "RECURRING"
	ScheduleCron      ScheduleKind = "CRON"
)

// ParseScheduleKind matches case-insensitively and trims surrounding
// space.
func ParseScheduleKind(s string) (ScheduleKind, error) {
	switch k := ScheduleKind(strings.ToUpper(strings.TrimSpace(s))); k {
	case ScheduleRecurring, ScheduleCron:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown schedule type %q", ErrBadSchedule, s)
	}
}

func (k ScheduleKind) String() string { return string(k) }

// IngestionHeader is one ingestion definition. Read-only to the engine.
type IngestionHeader struct {
	ID          int64
	Stage       string // named stage the source files live on
	Source      string // path prefix within the stage
	Destination string // destination table name
	FileFormat  string // named file format
	LoadType    LoadType
	KeyColumns  []string // ordered unique-key columns
	Active      bool
}

// MappedColumn is one destination column with its declared type and the
// source ordinal it is extracted from.
type MappedColumn struct {
	Name     string
	DataType string
	Position int
}

// ColumnMapping is the ordered destination schema for one ingestion.
// Order defines both staging-table column order and positional
// extraction from source files.
type ColumnMapping []MappedColumn

// Names returns the column names in mapping order.
func (m ColumnMapping) Names() []string {
	out := make([]string, 0, len(m))
	for _, c := range m {
		out = append(out, c.Name)
	}
	return out
}

// Has reports whether the mapping declares name, compared
// case-insensitively the way the warehouse resolves identifiers.
func (m ColumnMapping) Has(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range m {
		if strings.ToLower(strings.TrimSpace(c.Name)) == name {
			return true
		}
	}
	return false
}

// ScheduleDefinition is the schedule row for one ingestion. A zero
// LastRun means the schedule has never advanced.
type ScheduleDefinition struct {
	ID              int64
	IngestionID     int64
	Kind            ScheduleKind
	IntervalMinutes int    // RECURRING only
	CronExpr        string // CRON only
	Timezone        string // IANA name; empty means UTC
	LastRun         time.Time
	NextRun         time.Time
}

// ValidateHeader checks the header/mapping pair invariants before any
// DDL or data movement: key columns are a non-empty subset of mapped
// columns, no mapped column collides with a reserved name, and the
// header names its collaborators.
func ValidateHeader(h IngestionHeader, mapping ColumnMapping) error {
	if len(mapping) == 0 {
		return fmt.Errorf("ingestion %d: %w", h.ID, ErrNoMapping)
	}
	if h.Destination == "" {
		return fmt.Errorf("%w: ingestion %d has no destination table", ErrBadHeader, h.ID)
	}
	if h.Stage == "" {
		return fmt.Errorf("%w: ingestion %d has no stage", ErrBadHeader, h.ID)
	}
	if h.FileFormat == "" {
		return fmt.Errorf("%w: ingestion %d has no file format", ErrBadHeader, h.ID)
	}
	if len(h.KeyColumns) == 0 {
		return fmt.Errorf("%w: ingestion %d has no key columns", ErrBadHeader, h.ID)
	}

	seen := make(map[string]bool, len(mapping))
	for _, c := range mapping {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" {
			return fmt.Errorf("%w: ingestion %d maps an empty column name", ErrBadHeader, h.ID)
		}
		if seen[name] {
			return fmt.Errorf("%w: ingestion %d maps column %q twice", ErrBadHeader, h.ID, c.Name)
		}
		seen[name] = true

		if name == ColIsCurrent || name == ColStartDate || name == ColEndDate {
			return fmt.Errorf("%w: ingestion %d maps reserved column %q", ErrBadHeader, h.ID, c.Name)
		}
		if strings.HasPrefix(name, "_") {
			return fmt.Errorf("%w: ingestion %d maps reserved column %q (underscore prefix)", ErrBadHeader, h.ID, c.Name)
		}
	}

	for _, k := range h.KeyColumns {
		if !mapping.Has(k) {
			return fmt.Errorf("%w: ingestion %d key column %q is not mapped", ErrBadHeader, h.ID, k)
		}
	}
	return nil
}

// splitKeyColumns parses the comma-separated key list stored on the
// header row.
func splitKeyColumns(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
