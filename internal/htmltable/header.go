package htmltable

import "strconv"

// HeaderSpec is one header cell as read from a header row: its normalized
// name and its declared column span (0 when absent).
type HeaderSpec struct {
	Name string
	Span int
}

// HeaderCell is a node of the header tree.
//
// RemainingSpan is what was left of the declared span after tree assembly.
// A cell with no Children is a leaf and maps to exactly one data column.
type HeaderCell struct {
	Name          string
	RemainingSpan int
	Children      []HeaderCell
}

// IsLeaf reports whether no header cell was attached under c.
func (c HeaderCell) IsLeaf() bool { return len(c.Children) == 0 }

// HeaderTree is the ordered forest of top-level header cells of one table.
type HeaderTree []HeaderCell

// headerNode is the arena form of a HeaderCell used while building.
type headerNode struct {
	name      string
	remaining int
	children  []int
}

// BuildHeaderTree assembles the header tree from header rows, top row first.
//
// Rows are processed from the last one up to the second. Each cell of row i
// attaches to the first cell of row i-1 that still has span left, which is
// then charged max(1, number of children of the attached cell). Cells that
// find no such parent stay unattached. The tree is every unattached cell, in
// row order.
func BuildHeaderTree(rows [][]HeaderSpec) HeaderTree {
	var (
		arena    []headerNode
		rowNodes = make([][]int, len(rows))
	)
	for i, row := range rows {
		rowNodes[i] = make([]int, 0, len(row))
		for _, spec := range row {
			span := spec.Span
			if span < 0 {
				span = 0
			}
			arena = append(arena, headerNode{name: spec.Name, remaining: span})
			rowNodes[i] = append(rowNodes[i], len(arena)-1)
		}
	}

	consumed := make([]bool, len(arena))

	for i := len(rowNodes) - 1; i >= 1; i-- {
		parents := rowNodes[i-1]
		for _, h := range rowNodes[i] {
			for _, p := range parents {
				if arena[p].remaining <= 0 {
					continue
				}
				cost := len(arena[h].children)
				if cost < 1 {
					cost = 1
				}
				arena[p].remaining -= cost
				if arena[p].remaining < 0 {
					arena[p].remaining = 0
				}
				arena[p].children = append(arena[p].children, h)
				consumed[h] = true
				break
			}
		}
	}

	var tree HeaderTree
	for _, row := range rowNodes {
		for _, idx := range row {
			if consumed[idx] {
				continue
			}
			tree = append(tree, materialize(arena, idx))
		}
	}
	return tree
}

func materialize(arena []headerNode, idx int) HeaderCell {
	n := arena[idx]
	c := HeaderCell{Name: n.name, RemainingSpan: n.remaining}
	if len(n.children) > 0 {
		c.Children = make([]HeaderCell, 0, len(n.children))
		for _, ch := range n.children {
			c.Children = append(c.Children, materialize(arena, ch))
		}
	}
	return c
}

// LeafCount returns the number of data columns the tree maps.
func (t HeaderTree) LeafCount() int {
	n := 0
	for _, c := range t {
		n += c.leafCount()
	}
	return n
}

func (c HeaderCell) leafCount() int {
	if c.IsLeaf() {
		return 1
	}
	n := 0
	for _, ch := range c.Children {
		n += ch.leafCount()
	}
	return n
}

// LeafPaths returns the key path of every leaf, in the order the Row Mapper
// consumes values, joined with sep. Sibling names are disambiguated the same
// way records are.
func (t HeaderTree) LeafPaths(sep string) []string {
	var out []string
	var walk func(prefix string, cells []HeaderCell)
	walk = func(prefix string, cells []HeaderCell) {
		keys := siblingKeys(cells)
		for i, c := range cells {
			path := keys[i]
			if prefix != "" {
				path = prefix + sep + path
			}
			if c.IsLeaf() {
				out = append(out, path)
				continue
			}
			walk(path, c.Children)
		}
	}
	walk("", t)
	return out
}

// siblingKeys returns the record key for each cell of one nesting level.
// A name already used at this level gets "_0", "_1", ... appended, taking the
// first suffix that is still free.
func siblingKeys(cells []HeaderCell) []string {
	used := make(map[string]bool, len(cells))
	taken := func(k string) bool { return used[k] }

	keys := make([]string, len(cells))
	for i, c := range cells {
		k := uniqueKey(c.Name, taken)
		used[k] = true
		keys[i] = k
	}
	return keys
}

// uniqueKey returns name if it is free, otherwise name_<n> for the smallest
// n >= 0 that is free.
func uniqueKey(name string, taken func(string) bool) string {
	if !taken(name) {
		return name
	}
	for n := 0; ; n++ {
		k := name + "_" + strconv.Itoa(n)
		if !taken(k) {
			return k
		}
	}
}
