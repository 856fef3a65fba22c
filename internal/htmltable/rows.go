package htmltable

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// hasHeaderSection reports whether table has its own <thead>.
func hasHeaderSection(table *goquery.Selection) bool {
	return table.ChildrenFiltered("thead").Length() > 0
}

// bodyRows returns the <tr> elements of the table's own <tbody> sections.
// Rows of nested tables are not included.
func bodyRows(table *goquery.Selection) *goquery.Selection {
	return table.ChildrenFiltered("tbody").ChildrenFiltered("tr")
}

// headerRows returns the rows that describe columns: every <thead> row when
// the table has a header section, otherwise only the first row.
func headerRows(table *goquery.Selection) *goquery.Selection {
	if hasHeaderSection(table) {
		return table.ChildrenFiltered("thead").ChildrenFiltered("tr")
	}
	return bodyRows(table).First()
}

// ExtractHeaderRows reads the header rows of table as normalized header specs.
//
// Header cells are the row's <th> elements. A header row without any <th>
// uses its <td> elements instead.
func ExtractHeaderRows(table *goquery.Selection, opts Options) [][]HeaderSpec {
	var out [][]HeaderSpec
	headerRows(table).Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("th")
		if cells.Length() == 0 {
			cells = tr.ChildrenFiltered("td")
		}

		row := make([]HeaderSpec, 0, cells.Length())
		cells.Each(func(_ int, cell *goquery.Selection) {
			span, _ := cell.Attr("colspan")
			row = append(row, HeaderSpec{
				Name: Normalize(cell.Text(), opts),
				Span: parseSpan(span),
			})
		})
		out = append(out, row)
	})
	return out
}

// ExtractRows reads the data rows of table.
//
// Only body rows are read. Without a header section the first body row is the
// header row and is skipped. Each value is the cell text trimmed of
// surrounding whitespace and otherwise left as is.
func ExtractRows(table *goquery.Selection) [][]string {
	rows := bodyRows(table)
	if !hasHeaderSection(table) && rows.Length() > 0 {
		rows = rows.Slice(1, rows.Length())
	}

	out := make([][]string, 0, rows.Length())
	rows.Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("th, td")
		row := make([]string, 0, cells.Length())
		cells.Each(func(_ int, cell *goquery.Selection) {
			row = append(row, strings.TrimSpace(cell.Text()))
		})
		out = append(out, row)
	})
	return out
}

// parseSpan reads a colspan attribute value. Leading digits are used and
// anything after them is ignored ("2px" is 2). No digits means 0.
func parseSpan(s string) int {
	s = strings.TrimSpace(s)
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		if n > maxSpan {
			return maxSpan
		}
	}
	return n
}

// maxSpan caps absurd colspan values; browsers clamp at 1000 as well.
const maxSpan = 1000
