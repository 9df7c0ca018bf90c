package catalog

import (
	"context"
	"fmt"

	"github.com/rampotla586/ut-de-framework/internal/sqlgen"
)

// EnsureCatalog creates the catalog tables when absent. Production
// Postgres deployments run the versioned migrations instead; this covers
// dev setups and the other backends.
func (s *Store) EnsureCatalog(ctx context.Context) error {
	str := s.d.StringType()
	ts := s.d.TimestampType()

	tables := []struct {
		ref  sqlgen.TableRef
		cols []sqlgen.Column
	}{
		{s.headers, []sqlgen.Column{
			{Name: "id", Type: "BIGINT NOT NULL"},
			{Name: "stage_name", Type: str + " NOT NULL"},
			{Name: "source_path", Type: str},
			{Name: "destination_table", Type: str + " NOT NULL"},
			{Name: "file_format", Type: str + " NOT NULL"},
			{Name: "load_type", Type: str + " NOT NULL"},
			{Name: "key_columns", Type: str + " NOT NULL"},
			{Name: "is_active", Type: s.d.BoolType() + " NOT NULL"},
		}},
		{s.mappings, []sqlgen.Column{
			{Name: "ingestion_id", Type: "BIGINT NOT NULL"},
			{Name: "column_name", Type: str + " NOT NULL"},
			{Name: "data_type", Type: str + " NOT NULL"},
			{Name: "ordinal_position", Type: "INT NOT NULL"},
		}},
		{s.schedules, []sqlgen.Column{
			{Name: "id", Type: "BIGINT NOT NULL"},
			{Name: "ingestion_id", Type: "BIGINT NOT NULL"},
			{Name: "schedule_type", Type: str + " NOT NULL"},
			{Name: "interval_minutes", Type: "INT"},
			{Name: "cron_expression", Type: str},
			{Name: "timezone", Type: str},
			{Name: "last_run", Type: ts},
			{Name: "next_run", Type: ts},
			{Name: "updated_at", Type: ts},
		}},
	}

	for _, t := range tables {
		if _, err := s.db.Exec(ctx, sqlgen.CreateTable(s.d, t.ref, t.cols)); err != nil {
			return fmt.Errorf("ensure %s: %w", t.ref.Name, err)
		}
	}
	return nil
}
