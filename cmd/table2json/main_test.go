package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"tabletojson/internal/config"
)

const pricesHTML = `<html><body>
<table id="prices">
<thead>
<tr><th>Product  Name</th><th colspan="2">Price</th></tr>
<tr><th>Net</th><th>Gross</th></tr>
</thead>
<tbody>
<tr><td>Tea</td><td>1.00</td><td>1.19</td></tr>
<tr><td>Coffee</td><td>2.00</td></tr>
</tbody>
</table>
<table><tr><td>k</td></tr><tr><td>v</td><td>extra</td></tr></table>
</body></html>`

func runWith(t *testing.T, args []string, stdin string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr, http.DefaultClient)
	return code, stdout.String(), stderr.String()
}

// TestRun_StdinJSON verifies the default stdin to JSON path, including nested
// headers, key normalization and missing values.
func TestRun_StdinJSON(t *testing.T) {
	t.Parallel()

	code, out, errOut := runWith(t, nil, pricesHTML)
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, errOut)
	}
	want := `[[{"product_name":"Tea","price":{"net":"1.00","gross":"1.19"}},{"product_name":"Coffee","price":{"net":"2.00","gross":null}}],[{"k":"v","unlabelled_0":"extra"}]]` + "\n"
	if out != want {
		t.Fatalf("got=%s\nwant=%s", out, want)
	}
}

// TestRun_KeyFlags verifies the normalizer flags reach the parser.
func TestRun_KeyFlags(t *testing.T) {
	t.Parallel()

	code, out, errOut := runWith(t, []string{"-selector", "#prices", "-keep-case", "-replace", "-"}, pricesHTML)
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, errOut)
	}
	if !strings.Contains(out, `"Product-Name":"Tea"`) || !strings.Contains(out, `"Price":{"Net"`) {
		t.Fatalf("unexpected output: %s", out)
	}
}

// TestRun_TableIndexOutOfRange is a usage error.
func TestRun_TableIndexOutOfRange(t *testing.T) {
	t.Parallel()

	code, _, errOut := runWith(t, []string{"-table", "5"}, pricesHTML)
	if code != 2 {
		t.Fatalf("want exit 2, got %d; stderr=%s", code, errOut)
	}
	if !strings.Contains(errOut, "element not found") {
		t.Fatalf("unexpected stderr: %s", errOut)
	}
}

// TestRun_JSONLinesSingleTable selects one table and writes JSON Lines.
func TestRun_JSONLinesSingleTable(t *testing.T) {
	t.Parallel()

	code, out, errOut := runWith(t, []string{"-table", "1", "-format", "jsonl"}, pricesHTML)
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, errOut)
	}
	if out != `{"table":1,"row":0,"record":{"k":"v","unlabelled_0":"extra"}}`+"\n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

// TestRun_NoTables prints an empty array rather than failing.
func TestRun_NoTables(t *testing.T) {
	t.Parallel()

	code, out, errOut := runWith(t, nil, `<p>nothing here</p>`)
	if code != 0 || out != "[]\n" {
		t.Fatalf("code=%d out=%q stderr=%s", code, out, errOut)
	}
}

// TestRun_InvalidFlagsAndConfig covers exit code 2 paths.
func TestRun_InvalidFlagsAndConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown format", []string{"-format", "csv"}, "output.format"},
		{"xlsx to stdout", []string{"-format", "xlsx"}, "output.path"},
		{"store without dsn", []string{"-store", "sqlite"}, "storage.dsn"},
		{"missing config", []string{"-config", "/nonexistent/job.yaml"}, "load config"},
		{"stray argument", []string{"extra"}, "unexpected arguments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := runWith(t, tt.args, pricesHTML)
			if code != 2 {
				t.Fatalf("want exit 2, got %d; stderr=%s", code, errOut)
			}
			if !strings.Contains(errOut, tt.want) {
				t.Fatalf("stderr %q does not mention %q", errOut, tt.want)
			}
		})
	}
}

// TestRun_DebugSelectorText verifies debug selector mode prints text (not JSON).
func TestRun_DebugSelectorText(t *testing.T) {
	t.Parallel()

	code, out, errOut := runWith(t, []string{"-debug-selector", "td", "-text"}, `<table><tr><td> A </td><td>B</td></tr></table>`)
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, errOut)
	}
	if out != "A\n\nB\n\n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

// TestRun_PrintTree shows the header tree instead of records.
func TestRun_PrintTree(t *testing.T) {
	t.Parallel()

	code, out, errOut := runWith(t, []string{"-print-tree", "-selector", "#prices"}, pricesHTML)
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, errOut)
	}
	want := "# stdin table 0\nproduct_name (span 0)\nprice (span 0)\n  net (span 0)\n  gross (span 0)\n"
	if out != want {
		t.Fatalf("got %q want %q", out, want)
	}
}

// TestRun_URL fetches the page over HTTP.
func TestRun_URL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(pricesHTML))
	}))
	t.Cleanup(srv.Close)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-url", srv.URL, "-table", "1", "-format", "jsonl"}, nil, &stdout, &stderr, srv.Client())
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, stderr.String())
	}
	var entry struct {
		Source string         `json:"source"`
		Record map[string]any `json:"record"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &entry); err != nil {
		t.Fatalf("bad json: %v; out=%s", err, stdout.String())
	}
	if entry.Source != srv.URL || entry.Record["k"] != "v" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

// TestRun_URLNon2xx surfaces fetch failures as runtime errors.
func TestRun_URLNon2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	t.Cleanup(srv.Close)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-url", srv.URL}, nil, &stdout, &stderr, srv.Client())
	if code != 1 {
		t.Fatalf("want exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "load html") {
		t.Fatalf("unexpected stderr: %s", stderr.String())
	}
}

func writePages(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	pages := map[string]string{
		"b.html": `<table><tr><th>x</th></tr><tr><td>2</td></tr></table>`,
		"a.html": `<table><tr><th>x</th></tr><tr><td>1</td></tr></table>`,
	}
	for name, html := range pages {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(html), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

// TestRun_DirJSON emits one flat array with records in filename order.
func TestRun_DirJSON(t *testing.T) {
	t.Parallel()

	code, out, errOut := runWith(t, []string{"-dir", writePages(t)}, "")
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, errOut)
	}
	var got []struct {
		Source string            `json:"source"`
		Record map[string]string `json:"record"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("bad json: %v; out=%s", err, out)
	}
	if len(got) != 2 || got[0].Source != "a.html" || got[1].Record["x"] != "2" {
		t.Fatalf("unexpected output: %+v", got)
	}
}

// TestRun_DirXLSX writes one sheet per file and table.
func TestRun_DirXLSX(t *testing.T) {
	t.Parallel()

	outPath := filepath.Join(t.TempDir(), "out.xlsx")
	code, _, errOut := runWith(t, []string{"-dir", writePages(t), "-format", "xlsx", "-out", outPath}, "")
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, errOut)
	}

	f, err := excelize.OpenFile(outPath)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != "a_table_0" || sheets[1] != "b_table_0" {
		t.Fatalf("unexpected sheets: %v", sheets)
	}
}

// TestRun_StoreSQLiteFromConfig loads a YAML job into SQLite twice; the
// second run must not fail on already stored rows.
func TestRun_StoreSQLiteFromConfig(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "job.yaml")
	dbPath := filepath.Join(tmp, "records.db")
	cfg := "name: prices\nselector: \"#prices\"\noutput:\n  format: jsonl\n  path: " +
		filepath.Join(tmp, "out.jsonl") + "\nstorage:\n  kind: sqlite\n  dsn: " + dbPath + "\n  table: prices\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	for i := 0; i < 2; i++ {
		code, out, errOut := runWith(t, []string{"-config", cfgPath, "-v"}, pricesHTML)
		if code != 0 {
			t.Fatalf("run %d returned %d; stderr=%s", i, code, errOut)
		}
		if out != "" {
			t.Fatalf("output should go to the file, got %q", out)
		}
		want := "2 of 2 rows new"
		if i == 1 {
			want = "0 of 2 rows new"
		}
		if !strings.Contains(errOut, want) {
			t.Fatalf("run %d: stderr %q does not mention %q", i, errOut, want)
		}
	}

	b, err := os.ReadFile(filepath.Join(tmp, "out.jsonl"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if strings.Count(string(b), "\n") != 2 {
		t.Fatalf("expected 2 lines, got %q", b)
	}
}

// TestRun_ValidateOnly stops after validation.
func TestRun_ValidateOnly(t *testing.T) {
	t.Parallel()

	code, out, errOut := runWith(t, []string{"-validate", "-store", "sqlite", "-dsn", "x.db", "-dest-table", "t"}, "")
	if code != 0 || out != "" {
		t.Fatalf("code=%d out=%q stderr=%s", code, out, errOut)
	}
}

// TestRun_ProbeSuggestsJob checks the suggested job round-trips through the
// job file loader and targets the largest table.
func TestRun_ProbeSuggestsJob(t *testing.T) {
	t.Parallel()

	code, out, errOut := runWith(t, []string{"-probe", "-store", "postgres"}, pricesHTML)
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, errOut)
	}
	job, err := config.Parse([]byte(out), "yaml")
	if err != nil {
		t.Fatalf("parse suggested job: %v\n%s", err, out)
	}
	if job.Selector != "table#prices" {
		t.Fatalf("selector=%q", job.Selector)
	}
	if job.Storage.Kind != "postgres" || job.Storage.Table != "public.html_table_records" {
		t.Fatalf("storage=%+v", job.Storage)
	}
	if job.Storage.DSN == "" {
		t.Fatalf("expected a placeholder dsn")
	}
}

// TestRun_ProbeReport prints the per-table report.
func TestRun_ProbeReport(t *testing.T) {
	t.Parallel()

	code, out, errOut := runWith(t, []string{"-probe", "-report"}, pricesHTML)
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, errOut)
	}
	for _, want := range []string{
		"table 0\tselector=table#prices\trows=2\theader_depth=2",
		"table 1\tselector=-\trows=1",
		"price.gross",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}
