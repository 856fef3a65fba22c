package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"tabletojson/internal/htmltable"
)

// Row is one table record prepared for storage.
type Row struct {
	Source     string
	TableIndex int
	RowIndex   int

	// RowHash is a hex SHA-256 over source, position and the flattened
	// record. It is the dedupe key.
	RowHash string

	// Record is the record encoded as a JSON object.
	Record string
}

// Values returns the row in InsertColumns order.
func (r Row) Values() []any {
	return []any{r.Source, r.TableIndex, r.RowIndex, r.RowHash, r.Record}
}

// BuildRows converts parsed tables of one source document into rows.
func BuildRows(source string, tables []htmltable.Table) ([]Row, error) {
	var rows []Row
	for _, t := range tables {
		for i, rec := range t.Records {
			b, err := rec.MarshalJSON()
			if err != nil {
				return nil, fmt.Errorf("encode record %s/%d/%d: %w", source, t.Index, i, err)
			}
			rows = append(rows, Row{
				Source:     source,
				TableIndex: t.Index,
				RowIndex:   i,
				RowHash:    HashRecord(source, t.Index, i, rec),
				Record:     string(b),
			})
		}
	}
	return rows, nil
}

// hashSep separates the components of the canonical form (ASCII unit
// separator).
const hashSep = "\x1f"

// HashRecord computes the dedupe hash of a record at a position.
//
// Canonical form: "source=<s>", "table=<n>", "row=<n>" and then "key=value"
// for every flattened leaf, joined by hashSep. A missing value is encoded as a
// single NUL byte so it differs from an empty string.
func HashRecord(source string, tableIndex, rowIndex int, rec *htmltable.Record) string {
	var b strings.Builder
	b.WriteString("source=")
	b.WriteString(source)
	b.WriteString(hashSep + "table=")
	b.WriteString(strconv.Itoa(tableIndex))
	b.WriteString(hashSep + "row=")
	b.WriteString(strconv.Itoa(rowIndex))

	for _, f := range rec.Flatten(".") {
		b.WriteString(hashSep)
		b.WriteString(f.Key)
		b.WriteByte('=')
		s, ok := f.Value.(string)
		if !ok {
			b.WriteByte('\x00')
			continue
		}
		b.WriteString(s)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
