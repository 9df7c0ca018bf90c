package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rampotla586/ut-de-framework/internal/config"
)

// Local serves files from a directory tree. The prefix names a
// subdirectory (or a single file) under the root.
type Local struct {
	name string
	root string
}

func newLocal(name string, opts config.Options) (*Local, error) {
	root := opts.String("root", "")
	if root == "" {
		return nil, fmt.Errorf("stage %s: local stage needs options.root", name)
	}
	return &Local{name: name, root: root}, nil
}

func (l *Local) List(ctx context.Context, prefix string) ([]File, error) {
	if err := l.checkPath(prefix); err != nil {
		return nil, err
	}

	start := filepath.Join(l.root, filepath.FromSlash(prefix))
	info, err := os.Stat(start)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", l.name, err)
	}

	if !info.IsDir() {
		return []File{{Name: filepath.ToSlash(filepath.FromSlash(prefix)), Size: info.Size()}}, nil
	}

	var out []File
	err = filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		out = append(out, File{Name: filepath.ToSlash(rel), Size: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", l.name, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (l *Local) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := l.checkPath(name); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(l.root, filepath.FromSlash(name)))
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", l.name, err)
	}
	return f, nil
}

// checkPath rejects paths that would escape the stage root.
func (l *Local) checkPath(p string) error {
	if filepath.IsAbs(p) {
		return fmt.Errorf("stage %s: path %q escapes the stage root", l.name, p)
	}
	for _, seg := range strings.Split(filepath.ToSlash(p), "/") {
		if seg == ".." {
			return fmt.Errorf("stage %s: path %q escapes the stage root", l.name, p)
		}
	}
	return nil
}

var _ Stage = (*Local)(nil)
