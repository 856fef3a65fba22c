package config

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is a dotted field path such as
// "storage.dsn".
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// storageKinds lists the backends linked by internal/storage/all.
var storageKinds = map[string]bool{"sqlite": true, "postgres": true, "mssql": true}

// ValidateJob checks a job for errors that would fail the run and for
// settings that are likely mistakes.
func ValidateJob(j Job) []Issue {
	var issues []Issue
	add := func(sev Severity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if j.Source.URL != "" && j.Source.Dir != "" {
		add(SeverityError, "source", "url and dir are mutually exclusive")
	}
	if j.Source.URL != "" {
		u, err := url.Parse(j.Source.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add(SeverityError, "source.url", "must be an absolute http(s) URL, got %q", j.Source.URL)
		}
	}
	if d, err := j.Source.TimeoutDuration(); err != nil {
		add(SeverityError, "source.timeout", "invalid duration %q", j.Source.Timeout)
	} else if d <= 0 {
		add(SeverityError, "source.timeout", "must be positive")
	}

	if j.Keys.ReplaceWhitespace && strings.ContainsFunc(j.Keys.WhitespaceReplacement, unicode.IsSpace) {
		add(SeverityWarning, "keys.whitespace_replacement", "replacement contains whitespace; keys will still contain spaces")
	}
	if strings.TrimSpace(j.Selector) == "" {
		add(SeverityWarning, "selector", "empty selector; defaulting to \"table\"")
	}
	if j.Table != nil && *j.Table < 0 {
		add(SeverityError, "table", "index must be >= 0, got %d", *j.Table)
	}

	switch j.Output.Format {
	case FormatJSON, FormatJSONLines:
	case FormatXLSX:
		if j.Output.ToStdout() {
			add(SeverityError, "output.path", "xlsx output needs a file path")
		}
	default:
		add(SeverityError, "output.format", "unsupported format %q (json, jsonl, xlsx)", j.Output.Format)
	}

	if j.Storage.Enabled() {
		if !storageKinds[j.Storage.Kind] {
			add(SeverityError, "storage.kind", "unsupported kind %q (sqlite, postgres, mssql)", j.Storage.Kind)
		}
		if strings.TrimSpace(j.Storage.DSN) == "" {
			add(SeverityError, "storage.dsn", "required when storage.kind is set")
		}
		if strings.TrimSpace(j.Storage.Table) == "" {
			add(SeverityError, "storage.table", "required when storage.kind is set")
		}
		if !j.Storage.AutoCreate {
			add(SeverityWarning, "storage.auto_create", "disabled; table %q must already exist", j.Storage.Table)
		}
	}

	switch j.Metrics.Backend {
	case "", "none":
	case "datadog":
		if d, err := j.Metrics.FlushEveryDuration(); err != nil {
			add(SeverityError, "metrics.flush_every", "invalid duration %q", j.Metrics.FlushEvery)
		} else if d <= 0 {
			add(SeverityError, "metrics.flush_every", "must be positive")
		}
	default:
		add(SeverityError, "metrics.backend", "unsupported backend %q (none, datadog)", j.Metrics.Backend)
	}

	return issues
}
