// Package config defines the table2json job document and its validation.
//
// A job is read from JSON or YAML (chosen by file extension). Unset fields keep
// the values from DefaultJob, so a job file only needs the settings it changes.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"tabletojson/internal/htmltable"
)

// MaxInputSize limits the size of a job document.
var MaxInputSize = 1 << 20

var (
	ErrEmptyDocument = errors.New("config: empty job document")
	ErrInputTooLarge = errors.New("config: job document exceeds maximum size")
	ErrUnknownFormat = errors.New("config: unknown job format")
)

// Job is one table2json run.
type Job struct {
	// Name tags metrics (job:<name>).
	Name string `json:"name" yaml:"name"`

	Source   SourceSpec        `json:"source" yaml:"source"`
	Keys     htmltable.Options `json:"keys" yaml:"keys"`
	Selector string            `json:"selector" yaml:"selector"`

	// Table selects one table by index among the matched tables. Nil means all.
	Table *int `json:"table,omitempty" yaml:"table,omitempty"`

	Output  OutputSpec  `json:"output" yaml:"output"`
	Storage StorageSpec `json:"storage" yaml:"storage"`
	Metrics MetricsSpec `json:"metrics" yaml:"metrics"`
}

// SourceSpec says where HTML comes from. With neither URL nor Dir set the
// document is read from stdin.
type SourceSpec struct {
	URL       string `json:"url,omitempty" yaml:"url,omitempty"`
	Dir       string `json:"dir,omitempty" yaml:"dir,omitempty"`
	Timeout   string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	UserAgent string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
}

// TimeoutDuration parses Timeout; an empty value yields DefaultTimeout.
func (s SourceSpec) TimeoutDuration() (time.Duration, error) {
	if strings.TrimSpace(s.Timeout) == "" {
		return DefaultTimeout, nil
	}
	return time.ParseDuration(s.Timeout)
}

// Output formats.
const (
	FormatJSON      = "json"
	FormatJSONLines = "jsonl"
	FormatXLSX      = "xlsx"
)

type OutputSpec struct {
	Format string `json:"format" yaml:"format"`

	// Path is the output file; empty or "-" means stdout. XLSX needs a file.
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	Indent bool   `json:"indent" yaml:"indent"`
}

// ToStdout reports whether output goes to stdout.
func (o OutputSpec) ToStdout() bool {
	return o.Path == "" || o.Path == "-"
}

// StorageSpec is optional; an empty Kind disables loading into a database.
type StorageSpec struct {
	Kind       string `json:"kind,omitempty" yaml:"kind,omitempty"`
	DSN        string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Table      string `json:"table,omitempty" yaml:"table,omitempty"`
	AutoCreate bool   `json:"auto_create" yaml:"auto_create"`
}

// Enabled reports whether a storage backend is configured.
func (s StorageSpec) Enabled() bool { return strings.TrimSpace(s.Kind) != "" }

type MetricsSpec struct {
	// Backend is "none" or "datadog".
	Backend    string   `json:"backend" yaml:"backend"`
	Tags       []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	FlushEvery string   `json:"flush_every,omitempty" yaml:"flush_every,omitempty"`
}

// FlushEveryDuration parses FlushEvery; an empty value yields DefaultFlushEvery.
func (m MetricsSpec) FlushEveryDuration() (time.Duration, error) {
	if strings.TrimSpace(m.FlushEvery) == "" {
		return DefaultFlushEvery, nil
	}
	return time.ParseDuration(m.FlushEvery)
}

const (
	DefaultJobName    = "table2json"
	DefaultTimeout    = 20 * time.Second
	DefaultFlushEvery = 60 * time.Second
	DefaultDestTable  = "html_table_records"
)

// DefaultJob returns the job used when no config file is given.
func DefaultJob() Job {
	return Job{
		Name:     DefaultJobName,
		Keys:     htmltable.DefaultOptions(),
		Selector: "table",
		Output:   OutputSpec{Format: FormatJSON},
		Storage:  StorageSpec{Table: DefaultDestTable, AutoCreate: true},
		Metrics:  MetricsSpec{Backend: "none"},
	}
}

// Load reads a job file. ".yaml" and ".yml" are decoded as YAML, everything
// else as JSON. Unknown fields are rejected.
func Load(path string) (Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("read config: %w", err)
	}
	job, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return Job{}, fmt.Errorf("%s: %w", path, err)
	}
	return job, nil
}

// FormatFromPath returns "yaml" or "json" by file extension.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// Parse decodes data in the given format ("json" or "yaml") over DefaultJob.
func Parse(data []byte, format string) (Job, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Job{}, ErrEmptyDocument
	}
	if len(data) > MaxInputSize {
		return Job{}, fmt.Errorf("%w: %d bytes (max %d)", ErrInputTooLarge, len(data), MaxInputSize)
	}

	job := DefaultJob()
	switch format {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&job); err != nil {
			return Job{}, fmt.Errorf("decode json: %w", err)
		}
	case "yaml":
		if err := yaml.UnmarshalWithOptions(data, &job, yaml.Strict()); err != nil {
			return Job{}, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return Job{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return job, nil
}
