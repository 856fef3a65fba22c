package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestParse_YAMLKeepsDefaultsForUnsetFields decodes a partial YAML job.
func TestParse_YAMLKeepsDefaultsForUnsetFields(t *testing.T) {
	t.Parallel()

	doc := []byte(`
name: prices
source:
  url: https://example.com/prices
  timeout: 5s
keys:
  lowercase_keys: false
selector: "#main table"
table: 1
output:
  format: jsonl
storage:
  kind: sqlite
  dsn: file:prices.db
`)
	job, err := Parse(doc, "yaml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if job.Name != "prices" || job.Selector != "#main table" {
		t.Fatalf("unexpected job: %+v", job)
	}
	if job.Keys.LowercaseKeys {
		t.Fatalf("lowercase_keys should be off")
	}
	if !job.Keys.TrimKeys || !job.Keys.ReplaceWhitespace || job.Keys.WhitespaceReplacement != "_" {
		t.Fatalf("unset key options should keep defaults: %+v", job.Keys)
	}
	if job.Table == nil || *job.Table != 1 {
		t.Fatalf("table=%v want 1", job.Table)
	}
	if job.Storage.Table != DefaultDestTable || !job.Storage.AutoCreate {
		t.Fatalf("storage defaults lost: %+v", job.Storage)
	}
	d, err := job.Source.TimeoutDuration()
	if err != nil || d != 5*time.Second {
		t.Fatalf("timeout=%v err=%v", d, err)
	}
	if issues := ValidateJob(job); HasErrors(issues) {
		t.Fatalf("unexpected issues: %v", issues)
	}
}

// TestParse_JSONRejectsUnknownFields catches typos in job files.
func TestParse_JSONRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	if _, err := Parse([]byte(`{"selectr":"table"}`), "json"); err == nil {
		t.Fatalf("expected unknown field error")
	}
	if _, err := Parse([]byte("selectr: table\n"), "yaml"); err == nil {
		t.Fatalf("expected unknown field error for yaml")
	}
}

func TestParse_EmptyAndUnknownFormat(t *testing.T) {
	t.Parallel()

	if _, err := Parse([]byte("  \n"), "json"); !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("want ErrEmptyDocument, got %v", err)
	}
	if _, err := Parse([]byte("{}"), "toml"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("want ErrUnknownFormat, got %v", err)
	}
}

// TestLoad_PicksFormatByExtension loads the same job from .json and .yml files.
func TestLoad_PicksFormatByExtension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "job.json")
	ymlPath := filepath.Join(dir, "job.yml")
	if err := os.WriteFile(jsonPath, []byte(`{"selector":"table.data"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ymlPath, []byte("selector: table.data\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, p := range []string{jsonPath, ymlPath} {
		job, err := Load(p)
		if err != nil {
			t.Fatalf("Load(%s): %v", p, err)
		}
		if job.Selector != "table.data" {
			t.Fatalf("Load(%s) selector=%q", p, job.Selector)
		}
	}

	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
