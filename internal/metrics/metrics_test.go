package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type observation struct {
	kind   string
	name   string
	value  float64
	labels Labels
}

type captureBackend struct {
	mu      sync.Mutex
	obs     []observation
	flushes int
}

func (c *captureBackend) IncCounter(name string, delta float64, labels Labels) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.obs = append(c.obs, observation{"counter", name, delta, labels})
}

func (c *captureBackend) ObserveHistogram(name string, value float64, labels Labels) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.obs = append(c.obs, observation{"histogram", name, value, labels})
}

func (c *captureBackend) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushes++
	return nil
}

func (c *captureBackend) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.obs))
	for _, o := range c.obs {
		out = append(out, o.name)
	}
	return out
}

// These tests mutate the process-wide backend, so they do not run in parallel.

// TestRecordStep_Labels verifies ok/error status labels and that both the
// counter and the duration histogram are emitted.
func TestRecordStep_Labels(t *testing.T) {
	c := &captureBackend{}
	SetBackend(c)
	t.Cleanup(func() { SetBackend(nil) })

	RecordStep("parse", time.Now(), nil)
	RecordStep("store", time.Now(), errors.New("boom"))

	if len(c.obs) != 4 {
		t.Fatalf("want 4 observations got %d", len(c.obs))
	}
	if c.obs[0].name != StepTotal || c.obs[0].labels["status"] != "ok" {
		t.Fatalf("unexpected first observation: %#v", c.obs[0])
	}
	if c.obs[3].name != StepDurationSeconds || c.obs[3].labels["status"] != "error" || c.obs[3].labels["step"] != "store" {
		t.Fatalf("unexpected last observation: %#v", c.obs[3])
	}
}

// TestRecordHTTP_ErrorStatuses verifies 4xx/5xx and transport failures are
// counted as errors and transport failures skip response histograms.
func TestRecordHTTP_ErrorStatuses(t *testing.T) {
	c := &captureBackend{}
	SetBackend(c)
	t.Cleanup(func() { SetBackend(nil) })

	RecordHTTP(200, time.Millisecond, time.Millisecond, 10)
	RecordHTTP(404, time.Millisecond, time.Millisecond, 0)
	RecordHTTP(0, time.Millisecond, 0, 0)

	errs := 0
	for _, n := range c.names() {
		if n == HTTPErrorsTotal {
			errs++
		}
	}
	if errs != 2 {
		t.Fatalf("want 2 error counters got %d (%v)", errs, c.names())
	}

	last := c.obs[len(c.obs)-1]
	if last.name != HTTPRequestDurationSeconds || last.labels["status"] != "error" {
		t.Fatalf("transport failure should end with request duration, got %#v", last)
	}
}

// TestFlush_UsesFlusher verifies Flush reaches buffering backends and is a
// no-op for the default backend.
func TestFlush_UsesFlusher(t *testing.T) {
	SetBackend(nil)
	if err := Flush(); err != nil {
		t.Fatalf("nop flush: %v", err)
	}

	c := &captureBackend{}
	SetBackend(c)
	t.Cleanup(func() { SetBackend(nil) })

	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if c.flushes != 1 {
		t.Fatalf("want 1 flush got %d", c.flushes)
	}
}

// TestRecordCounts_SkipNonPositive verifies zero counts are not forwarded.
func TestRecordCounts_SkipNonPositive(t *testing.T) {
	c := &captureBackend{}
	SetBackend(c)
	t.Cleanup(func() { SetBackend(nil) })

	RecordTables(0)
	RecordRecords("mapped", 0)
	RecordTables(2)
	RecordRecords("mapped", 5)

	if got := c.names(); len(got) != 2 || got[0] != TablesTotal || got[1] != RecordsTotal {
		t.Fatalf("unexpected observations: %v", got)
	}
}
