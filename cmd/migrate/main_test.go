package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"

	"github.com/rampotla586/ut-de-framework/internal/config"
)

type fakeMigrator struct {
	upErr      error
	stepsErr   error
	versionErr error
	dropErr    error
	closeErr   error

	version uint
	dirty   bool

	ups    int
	steps  []int
	drops  int
	closes int
}

func (f *fakeMigrator) Up() error                    { f.ups++; return f.upErr }
func (f *fakeMigrator) Steps(n int) error            { f.steps = append(f.steps, n); return f.stepsErr }
func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, f.dirty, f.versionErr }
func (f *fakeMigrator) Drop() error                  { f.drops++; return f.dropErr }
func (f *fakeMigrator) Close() error                 { f.closes++; return f.closeErr }

type openCall struct {
	dsn    string
	schema string
}

// fakeDeps routes open to fm and records each call. Tests that expect
// the config to be read override loadConfig.
func fakeDeps(t *testing.T, fm *fakeMigrator, calls *[]openCall) appDeps {
	t.Helper()
	return appDeps{
		loadConfig: func(path string) (config.Config, error) {
			t.Errorf("unexpected loadConfig(%q)", path)
			return config.Config{}, nil
		},
		open: func(_ context.Context, dsn, schema string) (migrator, error) {
			*calls = append(*calls, openCall{dsn: dsn, schema: schema})
			return fm, nil
		},
	}
}

func pgConfig(dsn, schema string) config.Config {
	return config.Config{Storage: config.StorageConfig{Kind: "postgres", DSN: dsn, Schema: schema}}
}

func TestRunMainUsageErrors(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"no dsn or config", []string{"up"}, "usage: migrate"},
		{"unknown flag", []string{"-nope"}, ""},
		{"unknown command", []string{"-dsn", "postgres://x", "sideways"}, `unknown command "sideways"`},
		{"bad step count", []string{"-dsn", "postgres://x", "down", "zero"}, `bad step count "zero"`},
		{"negative step count", []string{"-dsn", "postgres://x", "down", "-2"}, ""},
		{"down extra args", []string{"-dsn", "postgres://x", "down", "1", "2"}, "usage: migrate"},
		{"up extra args", []string{"-dsn", "postgres://x", "up", "now"}, "usage: migrate"},
		{"drop without force", []string{"-dsn", "postgres://x", "drop"}, "drop is destructive"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			deps := appDeps{
				loadConfig: func(path string) (config.Config, error) {
					t.Errorf("unexpected loadConfig(%q)", path)
					return config.Config{}, nil
				},
				open: func(context.Context, string, string) (migrator, error) {
					t.Error("unexpected open")
					return nil, nil
				},
			}
			if got := runMain(context.Background(), tc.args, &stdout, &stderr, deps); got != 2 {
				t.Fatalf("exit = %d, want 2\nstderr: %s", got, stderr.String())
			}
			if tc.want != "" && !strings.Contains(stderr.String(), tc.want) {
				t.Errorf("stderr = %q, want substring %q", stderr.String(), tc.want)
			}
			if stdout.Len() != 0 {
				t.Errorf("stdout = %q, want empty", stdout.String())
			}
		})
	}
}

func TestRunMainResolvesConnectionFromConfig(t *testing.T) {
	t.Run("dsn and schema from config", func(t *testing.T) {
		fm := &fakeMigrator{}
		var calls []openCall
		deps := fakeDeps(t, fm, &calls)
		deps.loadConfig = func(path string) (config.Config, error) {
			if path != "eng.json" {
				t.Errorf("loadConfig path = %q", path)
			}
			return pgConfig("postgres://cfg", "etl"), nil
		}

		var stdout, stderr bytes.Buffer
		if got := runMain(context.Background(), []string{"-config", "eng.json"}, &stdout, &stderr, deps); got != 0 {
			t.Fatalf("exit = %d\nstderr: %s", got, stderr.String())
		}
		if len(calls) != 1 || calls[0] != (openCall{dsn: "postgres://cfg", schema: "etl"}) {
			t.Errorf("open calls = %+v", calls)
		}
		if fm.ups != 1 {
			t.Errorf("ups = %d, want 1 (up is the default command)", fm.ups)
		}
		if fm.closes != 1 {
			t.Errorf("closes = %d, want 1", fm.closes)
		}
		if !strings.Contains(stdout.String(), "migrations applied") {
			t.Errorf("stdout = %q", stdout.String())
		}
	})

	t.Run("schema flag overrides config", func(t *testing.T) {
		fm := &fakeMigrator{}
		var calls []openCall
		deps := fakeDeps(t, fm, &calls)
		deps.loadConfig = func(string) (config.Config, error) {
			return pgConfig("postgres://cfg", "etl"), nil
		}

		var stdout, stderr bytes.Buffer
		args := []string{"-config", "eng.json", "-schema", "override"}
		if got := runMain(context.Background(), args, &stdout, &stderr, deps); got != 0 {
			t.Fatalf("exit = %d\nstderr: %s", got, stderr.String())
		}
		if len(calls) != 1 || calls[0].schema != "override" {
			t.Errorf("open calls = %+v, want schema override", calls)
		}
	})

	t.Run("dsn flag skips the config", func(t *testing.T) {
		fm := &fakeMigrator{}
		var calls []openCall
		deps := fakeDeps(t, fm, &calls)

		var stdout, stderr bytes.Buffer
		args := []string{"-dsn", "postgres://direct", "-schema", "s1"}
		if got := runMain(context.Background(), args, &stdout, &stderr, deps); got != 0 {
			t.Fatalf("exit = %d\nstderr: %s", got, stderr.String())
		}
		if len(calls) != 1 || calls[0] != (openCall{dsn: "postgres://direct", schema: "s1"}) {
			t.Errorf("open calls = %+v", calls)
		}
	})

	t.Run("non-postgres storage refused", func(t *testing.T) {
		fm := &fakeMigrator{}
		var calls []openCall
		deps := fakeDeps(t, fm, &calls)
		deps.loadConfig = func(string) (config.Config, error) {
			return config.Config{Storage: config.StorageConfig{Kind: "sqlite", DSN: ":memory:"}}, nil
		}

		var stdout, stderr bytes.Buffer
		if got := runMain(context.Background(), []string{"-config", "eng.json"}, &stdout, &stderr, deps); got != 1 {
			t.Fatalf("exit = %d, want 1", got)
		}
		if !strings.Contains(stderr.String(), `config has kind "sqlite"`) {
			t.Errorf("stderr = %q", stderr.String())
		}
		if len(calls) != 0 {
			t.Errorf("open calls = %+v, want none", calls)
		}
	})

	t.Run("config read error", func(t *testing.T) {
		fm := &fakeMigrator{}
		var calls []openCall
		deps := fakeDeps(t, fm, &calls)
		deps.loadConfig = func(string) (config.Config, error) {
			return config.Config{}, errors.New("no such file")
		}

		var stdout, stderr bytes.Buffer
		if got := runMain(context.Background(), []string{"-config", "eng.json"}, &stdout, &stderr, deps); got != 1 {
			t.Fatalf("exit = %d, want 1", got)
		}
		if !strings.Contains(stderr.String(), "read config: no such file") {
			t.Errorf("stderr = %q", stderr.String())
		}
	})

	t.Run("empty dsn in config", func(t *testing.T) {
		fm := &fakeMigrator{}
		var calls []openCall
		deps := fakeDeps(t, fm, &calls)
		deps.loadConfig = func(string) (config.Config, error) {
			return pgConfig("", ""), nil
		}

		var stdout, stderr bytes.Buffer
		if got := runMain(context.Background(), []string{"-config", "eng.json"}, &stdout, &stderr, deps); got != 1 {
			t.Fatalf("exit = %d, want 1", got)
		}
		if !strings.Contains(stderr.String(), "storage dsn is empty") {
			t.Errorf("stderr = %q", stderr.String())
		}
		if len(calls) != 0 {
			t.Errorf("open calls = %+v, want none", calls)
		}
	})
}

func TestRunMainCommands(t *testing.T) {
	run := func(t *testing.T, fm *fakeMigrator, args ...string) (int, string, string) {
		t.Helper()
		var calls []openCall
		var stdout, stderr bytes.Buffer
		code := runMain(context.Background(), append([]string{"-dsn", "postgres://x"}, args...),
			&stdout, &stderr, fakeDeps(t, fm, &calls))
		return code, stdout.String(), stderr.String()
	}

	t.Run("up with nothing pending", func(t *testing.T) {
		fm := &fakeMigrator{upErr: migrate.ErrNoChange}
		code, stdout, _ := run(t, fm, "up")
		if code != 0 || !strings.Contains(stdout, "no pending migrations") {
			t.Errorf("exit = %d stdout = %q", code, stdout)
		}
	})

	t.Run("up failure", func(t *testing.T) {
		fm := &fakeMigrator{upErr: errors.New("boom")}
		code, _, stderr := run(t, fm)
		if code != 1 || !strings.Contains(stderr, "up: boom") {
			t.Errorf("exit = %d stderr = %q", code, stderr)
		}
		if fm.closes != 1 {
			t.Errorf("closes = %d, want 1", fm.closes)
		}
	})

	t.Run("down defaults to one step", func(t *testing.T) {
		fm := &fakeMigrator{}
		code, stdout, _ := run(t, fm, "down")
		if code != 0 || !strings.Contains(stdout, "rolled back 1 migration(s)") {
			t.Errorf("exit = %d stdout = %q", code, stdout)
		}
		if len(fm.steps) != 1 || fm.steps[0] != -1 {
			t.Errorf("steps = %v, want [-1]", fm.steps)
		}
	})

	t.Run("down takes a step count", func(t *testing.T) {
		fm := &fakeMigrator{}
		code, stdout, _ := run(t, fm, "down", "3")
		if code != 0 || !strings.Contains(stdout, "rolled back 3 migration(s)") {
			t.Errorf("exit = %d stdout = %q", code, stdout)
		}
		if len(fm.steps) != 1 || fm.steps[0] != -3 {
			t.Errorf("steps = %v, want [-3]", fm.steps)
		}
	})

	t.Run("down with nothing applied", func(t *testing.T) {
		fm := &fakeMigrator{stepsErr: migrate.ErrNoChange}
		code, stdout, _ := run(t, fm, "down")
		if code != 0 || !strings.Contains(stdout, "nothing to roll back") {
			t.Errorf("exit = %d stdout = %q", code, stdout)
		}
	})

	t.Run("version", func(t *testing.T) {
		fm := &fakeMigrator{version: 4}
		code, stdout, _ := run(t, fm, "version")
		if code != 0 || !strings.Contains(stdout, "version 4\n") {
			t.Errorf("exit = %d stdout = %q", code, stdout)
		}
	})

	t.Run("version dirty", func(t *testing.T) {
		fm := &fakeMigrator{version: 4, dirty: true}
		code, stdout, _ := run(t, fm, "version")
		if code != 0 || !strings.Contains(stdout, "version 4 (dirty)") {
			t.Errorf("exit = %d stdout = %q", code, stdout)
		}
	})

	t.Run("version before any migration", func(t *testing.T) {
		fm := &fakeMigrator{versionErr: migrate.ErrNilVersion}
		code, stdout, _ := run(t, fm, "version")
		if code != 0 || !strings.Contains(stdout, "no migrations applied") {
			t.Errorf("exit = %d stdout = %q", code, stdout)
		}
	})

	t.Run("forced drop", func(t *testing.T) {
		fm := &fakeMigrator{}
		code, stdout, _ := run(t, fm, "-force", "drop")
		if code != 0 || !strings.Contains(stdout, "all objects dropped") {
			t.Errorf("exit = %d stdout = %q", code, stdout)
		}
		if fm.drops != 1 {
			t.Errorf("drops = %d, want 1", fm.drops)
		}
	})

	t.Run("close error is reported but not fatal", func(t *testing.T) {
		fm := &fakeMigrator{closeErr: errors.New("late")}
		code, _, stderr := run(t, fm)
		if code != 0 {
			t.Errorf("exit = %d, want 0", code)
		}
		if !strings.Contains(stderr, "close: late") {
			t.Errorf("stderr = %q", stderr)
		}
	})

	t.Run("open failure", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		deps := appDeps{
			loadConfig: func(string) (config.Config, error) {
				t.Error("unexpected loadConfig")
				return config.Config{}, nil
			},
			open: func(context.Context, string, string) (migrator, error) {
				return nil, errors.New("refused")
			},
		}
		code := runMain(context.Background(), []string{"-dsn", "postgres://x"}, &stdout, &stderr, deps)
		if code != 1 || !strings.Contains(stderr.String(), "open database: refused") {
			t.Errorf("exit = %d stderr = %q", code, stderr.String())
		}
	})
}
