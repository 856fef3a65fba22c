package storage

import (
	"fmt"
	"strings"
)

// Column names of the record table. Every backend uses the same layout.
const (
	ColumnID         = "id"
	ColumnSource     = "source"
	ColumnTableIndex = "table_index"
	ColumnRowIndex   = "row_index"
	ColumnRowHash    = "row_hash"
	ColumnRecord     = "record"
	ColumnLoadedAt   = "loaded_at"
)

// InsertColumns are the columns InsertRows writes, in order.
var InsertColumns = []string{ColumnSource, ColumnTableIndex, ColumnRowIndex, ColumnRowHash, ColumnRecord}

// TableSpec describes the destination table.
type TableSpec struct {
	// Name may be schema qualified ("dbo.records") where the backend supports it.
	Name string `json:"name" yaml:"name"`

	// AutoCreate controls whether EnsureTable issues DDL at all.
	AutoCreate bool `json:"auto_create" yaml:"auto_create"`
}

// Validate checks the table name is usable as an identifier.
func (t TableSpec) Validate() error {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return fmt.Errorf("table name is empty")
	}
	for _, part := range strings.Split(name, ".") {
		if strings.TrimSpace(part) == "" {
			return fmt.Errorf("table name %q has an empty part", t.Name)
		}
	}
	return nil
}

// Batches splits rows into consecutive slices of at most size rows.
//
// Backends use it to stay under their bind-parameter limits.
func Batches(rows []Row, size int) [][]Row {
	if size <= 0 {
		size = len(rows)
	}
	var out [][]Row
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}

// DedupeByHash keeps the first row for every RowHash, preserving order.
func DedupeByHash(rows []Row) []Row {
	seen := make(map[string]struct{}, len(rows))
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if _, ok := seen[r.RowHash]; ok {
			continue
		}
		seen[r.RowHash] = struct{}{}
		out = append(out, r)
	}
	return out
}
