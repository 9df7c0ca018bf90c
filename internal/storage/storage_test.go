package storage

import (
	"context"
	"strings"
	"testing"
)

func TestOpenUnknownKind(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{Kind: "oracle"})
	if err == nil {
		t.Fatal("expected error for unregistered kind")
	}
	if !strings.Contains(err.Error(), "unsupported storage.kind=oracle") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOpenEmptyKind(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error for empty kind")
	}
}

func TestOpenDispatchesToFactory(t *testing.T) {
	called := false
	Register("test-dispatch", func(ctx context.Context, cfg Config) (Backend, error) {
		called = true
		if cfg.DSN != "dsn-under-test" {
			t.Errorf("factory got DSN %q", cfg.DSN)
		}
		return nil, nil
	})

	_, err := Open(context.Background(), Config{Kind: "test-dispatch", DSN: "dsn-under-test"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !called {
		t.Fatal("factory was not invoked")
	}
}

func TestRegisterPanics(t *testing.T) {
	cases := []struct {
		name string
		fn   func()
	}{
		{"empty kind", func() { Register("", func(context.Context, Config) (Backend, error) { return nil, nil }) }},
		{"nil factory", func() { Register("test-nil", nil) }},
		{"duplicate", func() {
			f := func(context.Context, Config) (Backend, error) { return nil, nil }
			Register("test-dup", f)
			Register("test-dup", f)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatal("expected panic")
				}
			}()
			tc.fn()
		})
	}
}
