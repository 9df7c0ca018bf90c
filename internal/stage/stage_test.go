package stage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rampotla586/ut-de-framework/internal/config"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestLocalListAndOpen(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "customers/2024-02.csv", "2,b\n")
	writeFile(t, root, "customers/2024-01.csv", "1,a\n")
	writeFile(t, root, "orders/o.csv", "x\n")

	st, err := New(config.StageConfig{
		Name:    "landing",
		Kind:    "local",
		Options: config.Options{"root": root},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	files, err := st.List(context.Background(), "customers")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files=%+v", files)
	}
	if files[0].Name != "customers/2024-01.csv" || files[1].Name != "customers/2024-02.csv" {
		t.Fatalf("order wrong: %+v", files)
	}

	rc, err := st.Open(context.Background(), files[0].Name)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil || string(data) != "1,a\n" {
		t.Fatalf("read %q err=%v", data, err)
	}
}

func TestLocalListSingleFileAndMissingPrefix(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "one.csv", "1\n")

	st, err := New(config.StageConfig{
		Name:    "landing",
		Kind:    "local",
		Options: config.Options{"root": root},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	files, err := st.List(context.Background(), "one.csv")
	if err != nil || len(files) != 1 || files[0].Name != "one.csv" {
		t.Fatalf("single file: %+v err=%v", files, err)
	}

	files, err = st.List(context.Background(), "nope/")
	if err != nil || len(files) != 0 {
		t.Fatalf("missing prefix: %+v err=%v", files, err)
	}
}

func TestLocalRejectsEscapingPaths(t *testing.T) {
	t.Parallel()

	st, err := New(config.StageConfig{
		Name:    "landing",
		Kind:    "local",
		Options: config.Options{"root": t.TempDir()},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := st.List(context.Background(), "../etc"); err == nil {
		t.Fatal("List accepted escaping prefix")
	}
	if _, err := st.Open(context.Background(), "a/../../passwd"); err == nil {
		t.Fatal("Open accepted escaping path")
	}
	// Dots inside a segment are a normal file name, not an escape.
	if _, err := st.List(context.Background(), "v1..v2"); err != nil {
		t.Fatalf("List rejected dotted name: %v", err)
	}
}

func TestWarehouseStageHasNoClientAccess(t *testing.T) {
	t.Parallel()

	st, err := New(config.StageConfig{
		Name:    "sf_landing",
		Kind:    "warehouse",
		Options: config.Options{"object": "@landing"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	w, ok := st.(*Warehouse)
	if !ok || w.Object != "@landing" {
		t.Fatalf("stage=%#v", st)
	}
	if _, err := st.List(context.Background(), "x"); !errors.Is(err, ErrWarehouseManaged) {
		t.Fatalf("List err=%v", err)
	}
	if _, err := st.Open(context.Background(), "x"); !errors.Is(err, ErrWarehouseManaged) {
		t.Fatalf("Open err=%v", err)
	}
}

func TestNewStageConfigErrors(t *testing.T) {
	t.Parallel()

	cases := []config.StageConfig{
		{Name: "x", Kind: "ftp"},
		{Name: "x", Kind: "local", Options: config.Options{}},
		{Name: "x", Kind: "s3", Options: config.Options{"endpoint": "localhost:9000"}},
		{Name: "x", Kind: "warehouse", Options: config.Options{}},
	}
	for _, c := range cases {
		if _, err := New(c); err == nil {
			t.Errorf("New(%+v) accepted bad config", c)
		}
	}
}

func TestNewS3BuildsWithoutDialing(t *testing.T) {
	t.Parallel()

	st, err := New(config.StageConfig{
		Name: "bucketed",
		Kind: "s3",
		Options: config.Options{
			"endpoint":   "localhost:9000",
			"bucket":     "landing",
			"access_key": "minio",
			"secret_key": "minio123",
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := st.(*S3); !ok {
		t.Fatalf("stage=%#v", st)
	}
}
