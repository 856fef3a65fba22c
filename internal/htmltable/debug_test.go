package htmltable

import (
	"bytes"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

// TestDebugPrintSelector_TextAndHTML prints both debug flavours.
func TestDebugPrintSelector_TextAndHTML(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<div class="x">  A  </div><div class="x"><b>B</b></div>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	var text bytes.Buffer
	if err := DebugPrintSelector(&text, doc, "div.x", true); err != nil {
		t.Fatalf("DebugPrintSelector: %v", err)
	}
	if text.String() != "A\n\nB\n\n" {
		t.Fatalf("got %q", text.String())
	}

	var html bytes.Buffer
	if err := DebugPrintSelector(&html, doc, "div.x", false); err != nil {
		t.Fatalf("DebugPrintSelector: %v", err)
	}
	if !strings.Contains(html.String(), `<div class="x"><b>B</b></div>`) {
		t.Fatalf("got %q", html.String())
	}
}

// TestPrintHeaderTree_Indents shows nesting and leftover span.
func TestPrintHeaderTree_Indents(t *testing.T) {
	t.Parallel()

	tree := BuildHeaderTree([][]HeaderSpec{
		{{Name: "a", Span: 3}},
		{{Name: "b"}, {Name: "c"}},
	})
	var buf bytes.Buffer
	if err := PrintHeaderTree(&buf, tree); err != nil {
		t.Fatalf("PrintHeaderTree: %v", err)
	}
	want := "a (span 1)\n  b (span 0)\n  c (span 0)\n"
	if buf.String() != want {
		t.Fatalf("got %q want %q", buf.String(), want)
	}
}
