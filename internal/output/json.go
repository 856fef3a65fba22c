// Package output writes parsed tables as JSON, JSON Lines or XLSX.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"tabletojson/internal/htmltable"
)

// Document is the parse result of one HTML input.
type Document struct {
	// Source names the input: a file name in directory mode, the URL, or
	// empty for stdin.
	Source string
	Tables []htmltable.Table
}

// Entry is one record with its position, as written in JSON Lines and
// directory-mode JSON.
type Entry struct {
	Source string            `json:"source,omitempty"`
	Table  int               `json:"table"`
	Row    int               `json:"row"`
	Record *htmltable.Record `json:"record"`
}

// Entries flattens a document into one Entry per record.
func (d Document) Entries() []Entry {
	var out []Entry
	for _, t := range d.Tables {
		for i, rec := range t.Records {
			out = append(out, Entry{Source: d.Source, Table: t.Index, Row: i, Record: rec})
		}
	}
	return out
}

// RecordCount returns the number of records across all tables.
func (d Document) RecordCount() int {
	n := 0
	for _, t := range d.Tables {
		n += len(t.Records)
	}
	return n
}

func newEncoder(w io.Writer, indent bool) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc
}

// WriteJSON writes tables as an array of per-table record arrays:
//
//	[[{"a":"1"}], [{"b":"2"}]]
//
// Zero tables produce "[]".
func WriteJSON(w io.Writer, tables []htmltable.Table, indent bool) error {
	out := make([][]*htmltable.Record, 0, len(tables))
	for _, t := range tables {
		recs := t.Records
		if recs == nil {
			recs = []*htmltable.Record{}
		}
		out = append(out, recs)
	}
	if err := newEncoder(w, indent).Encode(out); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// WriteJSONLines writes one Entry per line.
func WriteJSONLines(w io.Writer, entries []Entry) error {
	enc := newEncoder(w, false)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("encode record %s/%d/%d: %w", e.Source, e.Table, e.Row, err)
		}
	}
	return nil
}

// ArrayWriter streams values as a single JSON array, so directory mode does
// not hold every document in memory.
type ArrayWriter struct {
	w     io.Writer
	enc   *json.Encoder
	count int
}

func NewArrayWriter(w io.Writer) *ArrayWriter {
	return &ArrayWriter{w: w, enc: newEncoder(w, false)}
}

// Write appends v to the array.
func (a *ArrayWriter) Write(v any) error {
	sep := ","
	if a.count == 0 {
		sep = "["
	}
	if _, err := io.WriteString(a.w, sep); err != nil {
		return fmt.Errorf("write %s: %w", sep, err)
	}
	a.count++
	if err := a.enc.Encode(v); err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	return nil
}

// Close terminates the array. An array with no values is written as "[]".
func (a *ArrayWriter) Close() error {
	end := "]\n"
	if a.count == 0 {
		end = "[]\n"
	}
	if _, err := io.WriteString(a.w, end); err != nil {
		return fmt.Errorf("write ]: %w", err)
	}
	return nil
}

// Count returns how many values were written.
func (a *ArrayWriter) Count() int { return a.count }
