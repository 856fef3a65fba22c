package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"tabletojson/internal/htmltable"
)

// maxSheetName is Excel's limit on sheet name length.
const maxSheetName = 31

// WriteXLSX writes one sheet per table. The first row holds the flattened
// key paths ("group.leaf"), each following row one record. Missing values
// are left blank.
//
// Sheets are named "table_<n>". With more than one document the source name
// is prefixed so sheets from different files do not collide.
func WriteXLSX(w io.Writer, docs []Document) error {
	f := excelize.NewFile()
	defer f.Close()

	const defaultSheet = "Sheet1"
	used := map[string]bool{}
	first := true

	for _, d := range docs {
		for _, t := range d.Tables {
			name := uniqueSheetName(sheetName(d.Source, t.Index, len(docs) > 1), used)
			if first {
				if err := f.SetSheetName(defaultSheet, name); err != nil {
					return fmt.Errorf("rename sheet: %w", err)
				}
				first = false
			} else if _, err := f.NewSheet(name); err != nil {
				return fmt.Errorf("new sheet %s: %w", name, err)
			}
			if err := writeSheet(f, name, t); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, t htmltable.Table) error {
	columns := Columns(t)
	if len(columns) == 0 {
		return nil
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("%s header: %w", sheet, err)
	}

	for i, rec := range t.Records {
		values := make(map[string]string, len(columns))
		for _, fld := range rec.Flatten(".") {
			if s, ok := fld.Value.(string); ok {
				values[fld.Key] = s
			}
		}
		row := make([]any, len(columns))
		for j, c := range columns {
			if v, ok := values[c]; ok {
				row[j] = v
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i, err)
		}
	}
	return nil
}

// Columns returns the column keys of a table: the header leaf paths followed
// by any other flattened key that appears in a record (unlabelled values).
func Columns(t htmltable.Table) []string {
	var out []string
	seen := map[string]bool{}
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, p := range t.Tree.LeafPaths(".") {
		add(p)
	}
	for _, rec := range t.Records {
		for _, fld := range rec.Flatten(".") {
			add(fld.Key)
		}
	}
	return out
}

func sheetName(source string, index int, prefixed bool) string {
	name := "table_" + strconv.Itoa(index)
	if !prefixed || source == "" {
		return name
	}
	base := source
	if i := strings.LastIndexAny(base, "/\\"); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, ".html")
	base = strings.TrimSuffix(base, ".htm")
	base = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']', '\'':
			return '_'
		}
		return r
	}, base)

	if room := maxSheetName - len(name) - 1; len(base) > room {
		base = truncateRunes(base, room)
	}
	if base == "" {
		return name
	}
	return base + "_" + name
}

func truncateRunes(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	cut := 0
	for i := range s {
		if i > maxBytes {
			break
		}
		cut = i
	}
	return s[:cut]
}

func uniqueSheetName(name string, used map[string]bool) string {
	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := "~" + strconv.Itoa(n)
		candidate = truncateRunes(name, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}
