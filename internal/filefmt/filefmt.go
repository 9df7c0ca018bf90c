// Package filefmt parses declared file formats into positional rows
// aligned to an ingestion's column mapping. Readers tolerate malformed
// records: each bad record goes to the caller's error callback and is
// skipped, never aborting the file.
package filefmt

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rampotla586/ut-de-framework/internal/config"
)

// Field is one destination column's extraction rule: matched by Name
// when the file carries headers, by the 1-based Position otherwise.
type Field struct {
	Name     string
	Position int
}

// Reader parses one source file.
type Reader interface {
	// ReadRows streams src and invokes emit once per parsed record with
	// values aligned to fields (nil for absent/empty). Malformed records
	// are reported to onErr (nil allowed) and skipped. An emit error
	// stops the read and is returned as-is.
	ReadRows(ctx context.Context, src io.Reader, fields []Field, emit func(vals []any) error, onErr func(line int, err error)) error
}

// New builds a reader from a named file format declaration.
func New(cfg config.FormatConfig) (Reader, error) {
	switch cfg.Type {
	case "csv":
		return newCSV(cfg.Name, cfg.Options)
	case "jsonl":
		return newJSONL(cfg.Name, cfg.Options), nil
	case "htmltable":
		return newHTMLTable(cfg.Name, cfg.Options), nil
	default:
		return nil, fmt.Errorf("file format %s: unsupported type %q", cfg.Name, cfg.Type)
	}
}

// normalizeHeader folds a source header cell into the form mapping
// columns are matched against: trimmed, lowered, spaces to underscores.
func normalizeHeader(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}
