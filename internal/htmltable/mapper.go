package htmltable

import "strconv"

// UnlabelledPrefix prefixes the keys of values that have no header column.
const UnlabelledPrefix = "unlabelled_"

// MapRow maps one flat row onto the header tree.
//
// Leaves take values from the front of row in depth-first, left-to-right
// order. A leaf with no value left gets a missing (nil) value. Values left
// over after the last leaf are stored under unlabelled_0, unlabelled_1, ...
// in the top-level record. A length mismatch is never an error.
//
// row itself is not modified.
func MapRow(tree HeaderTree, row []string) *Record {
	m := rowMapper{values: row}
	rec := NewRecord()
	m.fill(rec, tree)

	for i, v := range m.rest() {
		rec.Set(UnlabelledPrefix+strconv.Itoa(i), v)
	}
	return rec
}

// rowMapper consumes a row from the front while the tree is walked.
type rowMapper struct {
	values []string
	next   int
}

func (m *rowMapper) pop() any {
	if m.next >= len(m.values) {
		return nil
	}
	v := m.values[m.next]
	m.next++
	return v
}

func (m *rowMapper) rest() []string {
	if m.next >= len(m.values) {
		return nil
	}
	return m.values[m.next:]
}

func (m *rowMapper) fill(dst *Record, cells []HeaderCell) {
	for _, c := range cells {
		key := uniqueKey(c.Name, dst.Has)
		if c.IsLeaf() {
			dst.Set(key, m.pop())
			continue
		}
		nested := NewRecord()
		m.fill(nested, c.Children)
		dst.Set(key, nested)
	}
}
