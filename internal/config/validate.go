package config

import (
	"fmt"
	"strings"
)

// Severity grades a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path points into the config document
// using dotted/indexed notation, e.g. "stages[2].options.bucket".
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

var storageKinds = map[string]bool{
	"postgres":  true,
	"mssql":     true,
	"sqlite":    true,
	"snowflake": true,
}

var stageKinds = map[string]bool{
	"local":     true,
	"s3":        true,
	"warehouse": true,
}

var formatTypes = map[string]bool{
	"csv":       true,
	"jsonl":     true,
	"htmltable": true,
}

// Validate checks a loaded config and returns all findings. Callers
// treat any SeverityError issue as fatal before starting a run.
func Validate(cfg Config) []Issue {
	var issues []Issue

	addErr := func(path, format string, a ...any) {
		issues = append(issues, Issue{SeverityError, path, fmt.Sprintf(format, a...)})
	}
	addWarn := func(path, format string, a ...any) {
		issues = append(issues, Issue{SeverityWarning, path, fmt.Sprintf(format, a...)})
	}

	if strings.TrimSpace(cfg.Job) == "" {
		addWarn("job", "job name is empty; logs and metrics will use a default")
	}

	if cfg.Storage.Kind == "" {
		addErr("storage.kind", "storage kind must be set")
	} else if !storageKinds[cfg.Storage.Kind] {
		addErr("storage.kind", "unknown storage kind %q", cfg.Storage.Kind)
	}
	if cfg.Storage.DSN == "" {
		addErr("storage.dsn", "storage dsn must be set")
	}
	if cfg.Storage.Role != "" && cfg.Storage.Kind != "snowflake" {
		addWarn("storage.role", "role is only applied on snowflake; ignored for %q", cfg.Storage.Kind)
	}

	seenStages := map[string]bool{}
	for i, s := range cfg.Stages {
		path := fmt.Sprintf("stages[%d]", i)
		if s.Name == "" {
			addErr(path+".name", "stage name must be set")
		} else if seenStages[s.Name] {
			addErr(path+".name", "duplicate stage name %q", s.Name)
		}
		seenStages[s.Name] = true

		switch s.Kind {
		case "local":
			if s.Options.String("root", "") == "" {
				addErr(path+".options.root", "local stage needs a root directory")
			}
		case "s3":
			if s.Options.String("endpoint", "") == "" {
				addErr(path+".options.endpoint", "s3 stage needs an endpoint")
			}
			if s.Options.String("bucket", "") == "" {
				addErr(path+".options.bucket", "s3 stage needs a bucket")
			}
		case "warehouse":
			if s.Options.String("object", "") == "" {
				addErr(path+".options.object", "warehouse stage needs a stage object name, e.g. @landing")
			}
			if cfg.Storage.Kind != "snowflake" {
				addErr(path+".kind", "warehouse stages require a backend with server-side COPY (snowflake)")
			}
		case "":
			addErr(path+".kind", "stage kind must be set")
		default:
			if !stageKinds[s.Kind] {
				addErr(path+".kind", "unknown stage kind %q", s.Kind)
			}
		}
	}

	seenFormats := map[string]bool{}
	for i, f := range cfg.Formats {
		path := fmt.Sprintf("file_formats[%d]", i)
		if f.Name == "" {
			addErr(path+".name", "file format name must be set")
		} else if seenFormats[f.Name] {
			addErr(path+".name", "duplicate file format name %q", f.Name)
		}
		seenFormats[f.Name] = true

		if f.Type == "" {
			addErr(path+".type", "file format type must be set")
		} else if !formatTypes[f.Type] {
			addErr(path+".type", "unknown file format type %q", f.Type)
		}
		if f.Type == "csv" {
			if enc := f.Options.String("encoding", ""); enc != "" && !knownEncoding(enc) {
				addErr(path+".options.encoding", "unknown encoding %q", enc)
			}
		}
	}

	if cfg.Runtime.BatchSize < 0 {
		addErr("runtime.batch_size", "batch_size must not be negative")
	}

	return issues
}

// knownEncoding reports whether the CSV reader can decode the named
// character set. Kept in sync with filefmt's decoder table.
func knownEncoding(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "utf-8", "utf8", "utf-16", "utf-16le", "utf-16be",
		"latin1", "iso-8859-1", "iso-8859-2", "windows-1250", "windows-1252":
		return true
	}
	return false
}
