// Package metrics is the backend-neutral metrics surface used by the parser
// commands.
//
// Callers record through the package-level helpers. A process installs one
// Backend at startup with SetBackend; until then every call is a no-op.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Labels are metric dimensions, e.g. {"step": "parse", "status": "ok"}.
type Labels map[string]string

// Backend receives metric observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer observations.
type Flusher interface {
	Flush() error
}

// Metric names understood by the backends.
const (
	StepTotal           = "table2json_step_total"
	StepDurationSeconds = "table2json_step_duration_seconds"
	TablesTotal         = "table2json_tables_total"
	RecordsTotal        = "table2json_records_total"

	HTTPRequestsTotal           = "table2json_http_requests_total"
	HTTPErrorsTotal             = "table2json_http_errors_total"
	HTTPRequestDurationSeconds  = "table2json_http_request_duration_seconds"
	HTTPResponseDurationSeconds = "table2json_http_response_duration_seconds"
	HTTPDownloadBytes           = "table2json_http_download_bytes"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. A nil b restores the
// no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush flushes the installed backend if it buffers.
func Flush() error {
	if f, ok := current().(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// IncCounter forwards to the installed backend.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram forwards to the installed backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// RecordStep counts one execution of a pipeline step and its duration.
// status is "ok" when err is nil and "error" otherwise.
func RecordStep(step string, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	l := Labels{"step": step, "status": status}
	IncCounter(StepTotal, 1, l)
	ObserveHistogram(StepDurationSeconds, time.Since(started).Seconds(), l)
}

// RecordTables counts parsed tables.
func RecordTables(n int) {
	if n <= 0 {
		return
	}
	IncCounter(TablesTotal, float64(n), nil)
}

// RecordRecords counts records of a kind ("mapped", "stored", ...).
func RecordRecords(kind string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(RecordsTotal, float64(n), Labels{"kind": kind})
}

// RecordHTTP records one HTTP fetch. statusCode 0 means the request failed
// before a response arrived.
func RecordHTTP(statusCode int, requestDur, responseDur time.Duration, bytes int64) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	l := Labels{"status": status}

	IncCounter(HTTPRequestsTotal, 1, l)
	if statusCode == 0 || statusCode >= 400 {
		IncCounter(HTTPErrorsTotal, 1, l)
	}
	ObserveHistogram(HTTPRequestDurationSeconds, requestDur.Seconds(), l)
	if statusCode > 0 {
		ObserveHistogram(HTTPResponseDurationSeconds, responseDur.Seconds(), l)
		ObserveHistogram(HTTPDownloadBytes, float64(bytes), l)
	}
}
