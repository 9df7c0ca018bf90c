// Package stage resolves the named external locations ingestion sources
// live on. A stage can list files under a path prefix and open them for
// reading; which backend serves that (local directory, S3-compatible
// bucket, warehouse-managed stage) is declared in configuration.
package stage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rampotla586/ut-de-framework/internal/config"
)

// ErrWarehouseManaged is returned by warehouse stages for client-side
// file access; their files are only reachable by the backend's native
// copy path.
var ErrWarehouseManaged = errors.New("stage: warehouse-managed stage has no client-side file access")

// File is one listed source file. Name is a slash path relative to the
// stage root and is what Open accepts.
type File struct {
	Name string
	Size int64
}

// Stage is a named external storage location.
type Stage interface {
	// List returns the files under prefix in lexical order. A prefix
	// with no files is an empty listing, not an error.
	List(ctx context.Context, prefix string) ([]File, error)

	// Open opens one listed file for reading.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Warehouse marks a stage the warehouse manages itself (a Snowflake
// named stage). The staging loader routes these through the backend's
// native bulk copy instead of listing and parsing files client-side.
type Warehouse struct {
	// Object is the warehouse-side stage reference, e.g. "@landing".
	Object string
}

func (w *Warehouse) List(ctx context.Context, prefix string) ([]File, error) {
	return nil, ErrWarehouseManaged
}

func (w *Warehouse) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return nil, ErrWarehouseManaged
}

// New builds a stage from its configuration entry.
func New(cfg config.StageConfig) (Stage, error) {
	switch cfg.Kind {
	case "local":
		return newLocal(cfg.Name, cfg.Options)
	case "s3":
		return newS3(cfg.Name, cfg.Options)
	case "warehouse":
		obj := cfg.Options.String("object", "")
		if obj == "" {
			return nil, fmt.Errorf("stage %s: warehouse stage needs options.object", cfg.Name)
		}
		return &Warehouse{Object: obj}, nil
	default:
		return nil, fmt.Errorf("stage %s: unsupported kind %q", cfg.Name, cfg.Kind)
	}
}

var _ Stage = (*Warehouse)(nil)
