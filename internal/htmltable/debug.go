package htmltable

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DebugPrintSelector prints the outer HTML, or the trimmed text when textOnly
// is set, of every element of doc matching selector. Each block is followed
// by a blank line.
func DebugPrintSelector(w io.Writer, doc *goquery.Document, selector string, textOnly bool) error {
	var werr error
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var block string
		if textOnly {
			block = strings.TrimSpace(s.Text())
		} else if out, err := goquery.OuterHtml(s); err == nil {
			block = out
		} else {
			block, _ = s.Html()
		}
		_, werr = fmt.Fprintf(w, "%s\n\n", block)
		return werr == nil
	})
	return werr
}

// PrintHeaderTree writes one line per header cell, indented by depth, with
// the span still unassigned after building:
//
//	score (span 0)
//	  math (span 0)
func PrintHeaderTree(w io.Writer, tree HeaderTree) error {
	var walk func(cells []HeaderCell, depth int) error
	walk = func(cells []HeaderCell, depth int) error {
		for _, c := range cells {
			name := c.Name
			if name == "" {
				name = `""`
			}
			if _, err := fmt.Fprintf(w, "%s%s (span %d)\n", strings.Repeat("  ", depth), name, c.RemainingSpan); err != nil {
				return err
			}
			if err := walk(c.Children, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(tree, 0)
}
