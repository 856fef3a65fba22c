// Command table2json converts HTML tables into JSON records, keeping
// multi-row colspan headers as nested objects.
//
// Usage (stdin):
//
//	cat page.html | table2json
//
// Usage (fetch URL, one table, JSON Lines):
//
//	table2json -url "https://example.com/prices" -table 1 -format jsonl
//
// Usage (directory of pages into SQLite):
//
//	table2json -dir ./pages -store sqlite -dsn file:records.db
//
// Usage (job file):
//
//	table2json -config job.yaml
//
// Debug (print matches of a selector, or the header trees):
//
//	cat page.html | table2json -debug-selector "table.prices" -text
//	cat page.html | table2json -print-tree
//
// Probe (suggest a job file for a page, or report on its tables):
//
//	table2json -url "https://example.com/prices" -probe -store postgres > job.yaml
//	table2json -url "https://example.com/prices" -probe -report
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"tabletojson/internal/config"
	"tabletojson/internal/htmltable"
	"tabletojson/internal/input"
	"tabletojson/internal/metrics"
	"tabletojson/internal/metrics/datadog"
	"tabletojson/internal/output"
	"tabletojson/internal/probe"
	"tabletojson/internal/storage"

	// register all backends with the storage factory.
	_ "tabletojson/internal/storage/all"
)

func main() {
	os.Exit(run(
		context.Background(),
		os.Args[1:],
		os.Stdin,
		os.Stdout,
		os.Stderr,
		http.DefaultClient,
	))
}

// errUsage marks errors that are the caller's fault (exit code 2).
var errUsage = errors.New("usage")

// run returns a Unix-style exit code:
//   - 0 for success
//   - 2 for usage/config errors
//   - 1 for operational/runtime errors
func run(
	ctx context.Context,
	args []string,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
	httpClient *http.Client,
) int {
	fs := flag.NewFlagSet("table2json", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfgPath := fs.String("config", "", "Optional: job config file (.json, .yaml or .yml)")
	validateOnly := fs.Bool("validate", false, "validate the job and exit")
	urlFlag := fs.String("url", "", "Optional: fetch HTML from URL instead of stdin")
	dirFlag := fs.String("dir", "", "Optional: directory containing HTML files to parse")
	timeout := fs.Duration("timeout", config.DefaultTimeout, "Timeout for -url fetch")
	selector := fs.String("selector", "table", "CSS selector of the tables to parse")
	tableIdx := fs.Int("table", -1, "Only output the table with this index among the matches")
	format := fs.String("format", config.FormatJSON, "Output format: json, jsonl or xlsx")
	outPath := fs.String("out", "", "Output file (default stdout; required for xlsx)")
	indent := fs.Bool("indent", false, "Indent JSON output")

	keepCase := fs.Bool("keep-case", false, "Do not lowercase header keys")
	noTrim := fs.Bool("no-trim", false, "Do not trim header keys")
	noCollapse := fs.Bool("no-collapse", false, "Do not collapse whitespace runs in header keys")
	noReplace := fs.Bool("no-replace", false, "Do not replace whitespace in header keys")
	replaceWith := fs.String("replace", htmltable.DefaultWhitespaceReplacement, "Replacement for whitespace in header keys")

	store := fs.String("store", "", "Optional: also load records into sqlite, postgres or mssql")
	dsn := fs.String("dsn", "", "Data source name for -store")
	destTable := fs.String("dest-table", config.DefaultDestTable, "Destination table for -store")

	metricsBackend := fs.String("metrics-backend", "", "metrics backend to use (none, datadog; overrides env METRICS_BACKEND)")
	verbose := fs.Bool("v", false, "enable verbose logs")

	debugSelector := fs.String("debug-selector", "", "Debug: CSS selector to print matches for (not JSON)")
	onlyText := fs.Bool("text", false, "Debug: print text blocks for -debug-selector matches")
	printTree := fs.Bool("print-tree", false, "Debug: print the header tree of each matched table")
	probeFlag := fs.Bool("probe", false, "Inspect the matched tables and print a suggested job (YAML)")
	reportFlag := fs.Bool("report", false, "With -probe: print the table report instead of a job")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return 2
	}

	logger := log.New(io.Discard, "", log.LstdFlags)
	if *verbose {
		logger.SetOutput(stderr)
	}

	job := config.DefaultJob()
	if *cfgPath != "" {
		j, err := config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintf(stderr, "load config: %v\n", err)
			return 2
		}
		job = j
	}

	// Flags given on the command line override the job file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			job.Source.URL = *urlFlag
		case "dir":
			job.Source.Dir = *dirFlag
		case "timeout":
			job.Source.Timeout = timeout.String()
		case "selector":
			job.Selector = *selector
		case "table":
			idx := *tableIdx
			job.Table = &idx
		case "format":
			job.Output.Format = *format
		case "out":
			job.Output.Path = *outPath
		case "indent":
			job.Output.Indent = *indent
		case "keep-case":
			job.Keys.LowercaseKeys = !*keepCase
		case "no-trim":
			job.Keys.TrimKeys = !*noTrim
		case "no-collapse":
			job.Keys.CollapseWhitespace = !*noCollapse
		case "no-replace":
			job.Keys.ReplaceWhitespace = !*noReplace
		case "replace":
			job.Keys.WhitespaceReplacement = *replaceWith
		case "store":
			job.Storage.Kind = *store
		case "dsn":
			job.Storage.DSN = *dsn
		case "dest-table":
			job.Storage.Table = *destTable
		case "metrics-backend":
			job.Metrics.Backend = *metricsBackend
		}
	})
	if *metricsBackend == "" {
		if env := os.Getenv("METRICS_BACKEND"); env != "" {
			job.Metrics.Backend = env
		}
	}

	// DSN from the environment when neither flag nor job file sets one.
	if job.Storage.Enabled() && strings.TrimSpace(job.Storage.DSN) == "" {
		envDSN, ok, err := config.ResolveDSN(job.Storage.Kind, os.Getenv)
		if err != nil {
			fmt.Fprintf(stderr, "resolve dsn: %v\n", err)
			return 2
		}
		if ok {
			job.Storage.DSN = envDSN
		}
	}

	checked := job
	if *probeFlag {
		// The probe only names the backend; it does not connect.
		checked.Storage = config.DefaultJob().Storage
	}
	issues := config.ValidateJob(checked)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s\n", iss)
	}
	if config.HasErrors(issues) {
		return 2
	}
	if *validateOnly {
		logger.Printf("job is valid")
		return 0
	}

	fetchTimeout, _ := job.Source.TimeoutDuration()
	loader := input.NewLoader(httpClient, fetchTimeout).WithUserAgent(job.Source.UserAgent)

	// Debug selector mode needs HTML input (stdin or url) but parses no tables.
	if *debugSelector != "" {
		html, err := loader.Load(ctx, input.Input{URL: job.Source.URL, Stdin: stdin})
		if err != nil {
			fmt.Fprintf(stderr, "load html: %v\n", err)
			return 1
		}
		p, err := htmltable.NewParser(html, job.Keys)
		if err != nil {
			fmt.Fprintf(stderr, "parse html: %v\n", err)
			return 1
		}
		if err := htmltable.DebugPrintSelector(stdout, p.Document(), *debugSelector, *onlyText); err != nil {
			fmt.Fprintf(stderr, "debug selector: %v\n", err)
			return 1
		}
		return 0
	}

	if *probeFlag {
		if err := runProbe(ctx, loader, job, stdin, stdout, *reportFlag); err != nil {
			fmt.Fprintf(stderr, "probe: %v\n", err)
			return 1
		}
		return 0
	}

	stopMetrics := setupMetrics(ctx, job, logger)
	defer stopMetrics()

	docs, err := loadDocuments(ctx, loader, job, stdin, logger)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitCode(err)
	}

	if *printTree {
		for _, d := range docs {
			for _, t := range d.Tables {
				fmt.Fprintf(stdout, "# %s table %d\n", sourceLabel(d.Source), t.Index)
				if err := htmltable.PrintHeaderTree(stdout, t.Tree); err != nil {
					fmt.Fprintf(stderr, "print tree: %v\n", err)
					return 1
				}
			}
		}
		return 0
	}

	if err := writeOutput(stdout, job, docs); err != nil {
		fmt.Fprintf(stderr, "write output: %v\n", err)
		return 1
	}

	if job.Storage.Enabled() {
		if err := storeDocuments(ctx, job, docs, logger); err != nil {
			fmt.Fprintf(stderr, "store: %v\n", err)
			return 1
		}
	}
	return 0
}

// runProbe inspects a single page (stdin or URL).
func runProbe(ctx context.Context, loader *input.Loader, job config.Job, stdin io.Reader, stdout io.Writer, report bool) error {
	if job.Source.Dir != "" {
		return errors.New("-probe reads a single page; use stdin or -url")
	}
	html, err := loader.Load(ctx, input.Input{URL: job.Source.URL, Stdin: stdin})
	if err != nil {
		return fmt.Errorf("load html: %w", err)
	}
	p, err := htmltable.NewParser(html, job.Keys)
	if err != nil {
		return err
	}
	reports, err := probe.Inspect(p, job.Selector)
	if err != nil {
		return err
	}
	if report {
		return probe.FormatReport(stdout, reports)
	}

	suggested := probe.SuggestJob(job.Source.URL, reports, job.Storage.Kind)
	suggested.Keys = job.Keys
	b, err := yaml.Marshal(suggested)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	_, err = stdout.Write(b)
	return err
}

func exitCode(err error) int {
	if errors.Is(err, errUsage) {
		return 2
	}
	return 1
}

func sourceLabel(source string) string {
	if source == "" {
		return "stdin"
	}
	return source
}

// loadDocuments reads and parses the job's input. In directory mode files
// that cannot be read or parsed are skipped.
func loadDocuments(ctx context.Context, loader *input.Loader, job config.Job, stdin io.Reader, logger *log.Logger) ([]output.Document, error) {
	if job.Source.Dir != "" {
		started := time.Now()
		files, err := input.ReadDir(job.Source.Dir, func(name string, err error) {
			logger.Printf("skip %s: %v", name, err)
		})
		metrics.RecordStep("read_dir", started, err)
		if err != nil {
			return nil, fmt.Errorf("dir extract: %w", err)
		}

		docs := make([]output.Document, 0, len(files))
		for _, f := range files {
			doc, err := parseDocument(f.Name, f.HTML, job)
			if err != nil {
				logger.Printf("skip %s: %v", f.Name, err)
				continue
			}
			docs = append(docs, doc)
		}
		logger.Printf("parsed %d of %d files in %s", len(docs), len(files), job.Source.Dir)
		return docs, nil
	}

	started := time.Now()
	html, err := loader.Load(ctx, input.Input{URL: job.Source.URL, Stdin: stdin})
	metrics.RecordStep("load", started, err)
	if err != nil {
		return nil, fmt.Errorf("load html: %w", err)
	}

	doc, err := parseDocument(job.Source.URL, html, job)
	if err != nil {
		if errors.Is(err, htmltable.ErrElementNotFound) {
			return nil, fmt.Errorf("%w: %v", errUsage, err)
		}
		return nil, err
	}
	return []output.Document{doc}, nil
}

func parseDocument(source, html string, job config.Job) (output.Document, error) {
	started := time.Now()
	doc, err := parseTables(source, html, job)
	metrics.RecordStep("parse", started, err)
	if err != nil {
		return output.Document{}, err
	}
	metrics.RecordTables(len(doc.Tables))
	metrics.RecordRecords("mapped", doc.RecordCount())
	return doc, nil
}

func parseTables(source, html string, job config.Job) (output.Document, error) {
	p, err := htmltable.NewParser(html, job.Keys)
	if err != nil {
		return output.Document{}, err
	}
	tables, err := p.ParseSelectorDetailed(job.Selector)
	if err != nil {
		return output.Document{}, fmt.Errorf("parse tables: %w", err)
	}

	if job.Table != nil {
		idx := *job.Table
		if idx < 0 || idx >= len(tables) {
			return output.Document{}, fmt.Errorf("%w: table %d of %d matching %q", htmltable.ErrElementNotFound, idx, len(tables), job.Selector)
		}
		tables = tables[idx : idx+1]
	}
	return output.Document{Source: source, Tables: tables}, nil
}

func writeOutput(stdout io.Writer, job config.Job, docs []output.Document) (err error) {
	w := stdout
	if !job.Output.ToStdout() {
		f, ferr := os.Create(job.Output.Path)
		if ferr != nil {
			return ferr
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	started := time.Now()
	defer func() { metrics.RecordStep("write_"+job.Output.Format, started, err) }()

	dirMode := job.Source.Dir != ""
	switch job.Output.Format {
	case config.FormatJSONLines:
		for _, d := range docs {
			if err := output.WriteJSONLines(w, d.Entries()); err != nil {
				return err
			}
		}
		return nil

	case config.FormatXLSX:
		return output.WriteXLSX(w, docs)

	default:
		if !dirMode {
			var tables []htmltable.Table
			if len(docs) > 0 {
				tables = docs[0].Tables
			}
			return output.WriteJSON(w, tables, job.Output.Indent)
		}
		// Directory mode: a single JSON array of records tagged with their file.
		aw := output.NewArrayWriter(w)
		for _, d := range docs {
			for _, e := range d.Entries() {
				if err := aw.Write(e); err != nil {
					return err
				}
			}
		}
		return aw.Close()
	}
}

func storeDocuments(ctx context.Context, job config.Job, docs []output.Document, logger *log.Logger) (err error) {
	started := time.Now()
	defer func() { metrics.RecordStep("store", started, err) }()

	repo, err := storage.New(ctx, storage.Config{Kind: job.Storage.Kind, DSN: job.Storage.DSN})
	if err != nil {
		return err
	}
	defer repo.Close()

	spec := storage.TableSpec{Name: job.Storage.Table, AutoCreate: job.Storage.AutoCreate}
	if err := repo.EnsureTable(ctx, spec); err != nil {
		return err
	}

	var total int64
	for _, d := range docs {
		rows, err := storage.BuildRows(d.Source, d.Tables)
		if err != nil {
			return err
		}
		n, err := repo.InsertRows(ctx, spec.Name, rows)
		if err != nil {
			return fmt.Errorf("%s: %w", sourceLabel(d.Source), err)
		}
		logger.Printf("store: %s: %d of %d rows new", sourceLabel(d.Source), n, len(rows))
		total += n
	}
	metrics.RecordRecords("stored", int(total))
	logger.Printf("store: kind=%s table=%s inserted=%d", job.Storage.Kind, spec.Name, total)
	return nil
}

// setupMetrics installs the job's metrics backend and returns a function that
// flushes and removes it.
func setupMetrics(ctx context.Context, job config.Job, logger *log.Logger) func() {
	switch job.Metrics.Backend {
	case "datadog":
		flushEvery, _ := job.Metrics.FlushEveryDuration()
		tags := append([]string(nil), job.Metrics.Tags...)
		tags = append(tags, datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))...)

		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    job.Name,
			Tags:       tags,
			FlushEvery: flushEvery,
		})
		if err != nil {
			logger.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return func() {}
		}
		logger.Printf("metrics: backend=datadog job_name=%s flush_every=%s", job.Name, flushEvery)
		metrics.SetBackend(b)
		return func() {
			// Close performs the final submit.
			if err := b.Close(); err != nil {
				logger.Printf("metrics: close error: %v", err)
			}
			metrics.SetBackend(nil)
		}
	default:
		return func() {}
	}
}
