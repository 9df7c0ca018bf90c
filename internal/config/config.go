// Package config defines the engine configuration file format and its
// validation. The config carries connection, stage, and file-format
// declarations; the ingestion definitions themselves live in catalog
// tables and are read at run time.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the root of the JSON configuration file.
type Config struct {
	// Job names this deployment for logs and metric tags.
	Job string `json:"job"`

	Storage StorageConfig  `json:"storage"`
	Stages  []StageConfig  `json:"stages"`
	Formats []FormatConfig `json:"file_formats"`
	Runtime RuntimeConfig  `json:"runtime"`
}

// StorageConfig selects the warehouse backend and the session placement
// every generated statement is qualified with. Database/Schema/Role are
// explicit here so no collaborator depends on ambient session state.
type StorageConfig struct {
	// Kind is the backend kind: "postgres" | "mssql" | "sqlite" | "snowflake".
	Kind string `json:"kind"`

	// DSN is the driver connection string. Environment variables in the
	// form $NAME or ${NAME} are expanded at load time.
	DSN string `json:"dsn"`

	Database string `json:"database,omitempty"`
	Schema   string `json:"schema,omitempty"`
	Role     string `json:"role,omitempty"`
}

// StageConfig declares a named external storage location files are
// ingested from.
type StageConfig struct {
	Name string `json:"name"`

	// Kind: "local" (directory), "s3" (S3-compatible object store), or
	// "warehouse" (a stage object managed by the warehouse itself, usable
	// only with backends that support server-side COPY).
	Kind string `json:"kind"`

	Options Options `json:"options"`
}

// FormatConfig declares a named file format used to parse staged files.
type FormatConfig struct {
	Name string `json:"name"`

	// Type: "csv" | "jsonl" | "htmltable".
	Type string `json:"type"`

	Options Options `json:"options"`
}

// RuntimeConfig controls execution behavior.
type RuntimeConfig struct {
	// BatchSize caps rows buffered per staging insert. Zero means the
	// engine default.
	BatchSize int `json:"batch_size"`

	// DebugTimings enables per-statement duration logs.
	DebugTimings bool `json:"debug_timings"`
}

// Load reads and decodes a config file, expanding environment variables
// inside the storage DSN.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Storage.DSN = os.ExpandEnv(cfg.Storage.DSN)
	return cfg, nil
}

// StageByName returns the named stage declaration.
func (c Config) StageByName(name string) (StageConfig, bool) {
	for _, s := range c.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageConfig{}, false
}

// FormatByName returns the named file format declaration.
func (c Config) FormatByName(name string) (FormatConfig, bool) {
	for _, f := range c.Formats {
		if f.Name == name {
			return f, true
		}
	}
	return FormatConfig{}, false
}
