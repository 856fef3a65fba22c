package htmltable

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrElementNotFound is returned when a table handle does not resolve to any
// element.
var ErrElementNotFound = errors.New("htmltable: element not found")

// Table is the parse result of one <table> element.
type Table struct {
	// Index is the position of the table among the parsed tables, 0-based.
	Index int

	// Tree is the header tree the rows were mapped with.
	Tree HeaderTree

	// Records holds one record per body row, in document order.
	Records []*Record
}

// Parser turns the tables of one HTML document into records.
//
// A Parser is not safe for concurrent use; parse different documents with
// different parsers.
type Parser struct {
	doc  *goquery.Document
	opts Options
}

// NewParser parses html and returns a Parser using opts for header keys.
func NewParser(html string, opts Options) (*Parser, error) {
	return NewParserFromReader(strings.NewReader(html), opts)
}

// NewParserFromReader parses the HTML read from r.
func NewParserFromReader(r io.Reader, opts Options) (*Parser, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return NewParserFromDocument(doc, opts), nil
}

// NewParserFromDocument wraps an already parsed document.
func NewParserFromDocument(doc *goquery.Document, opts Options) *Parser {
	return &Parser{doc: doc, opts: opts}
}

// Document returns the underlying document.
func (p *Parser) Document() *goquery.Document { return p.doc }

// Options returns the key options of the parser.
func (p *Parser) Options() Options { return p.opts }

// HeaderTree builds the header tree of the first element of table.
func (p *Parser) HeaderTree(table *goquery.Selection) (HeaderTree, error) {
	if table == nil || table.Length() == 0 {
		return nil, ErrElementNotFound
	}
	return BuildHeaderTree(ExtractHeaderRows(table.First(), p.opts)), nil
}

// ParseTable returns one record per body row of the first element of table.
func (p *Parser) ParseTable(table *goquery.Selection) ([]*Record, error) {
	t, err := p.parseTable(0, table)
	if err != nil {
		return nil, err
	}
	return t.Records, nil
}

func (p *Parser) parseTable(index int, table *goquery.Selection) (Table, error) {
	tree, err := p.HeaderTree(table)
	if err != nil {
		return Table{}, err
	}

	rows := ExtractRows(table.First())
	records := make([]*Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, MapRow(tree, row))
	}
	return Table{Index: index, Tree: tree, Records: records}, nil
}

// ParseAll parses every <table> of the document, in document order.
// A document without tables yields an empty result.
func (p *Parser) ParseAll() ([][]*Record, error) {
	return p.ParseSelector("table")
}

// ParseSelector parses every element matched by selector as a table.
// A selector without matches yields an empty result.
func (p *Parser) ParseSelector(selector string) ([][]*Record, error) {
	tables, err := p.ParseSelectorDetailed(selector)
	if err != nil {
		return nil, err
	}
	out := make([][]*Record, 0, len(tables))
	for _, t := range tables {
		out = append(out, t.Records)
	}
	return out, nil
}

// ParseAllDetailed is ParseAll keeping each table's index and header tree.
func (p *Parser) ParseAllDetailed() ([]Table, error) {
	return p.ParseSelectorDetailed("table")
}

// ParseSelectorDetailed is ParseSelector keeping each table's index and
// header tree.
func (p *Parser) ParseSelectorDetailed(selector string) ([]Table, error) {
	if strings.TrimSpace(selector) == "" {
		selector = "table"
	}

	var (
		out     []Table
		lastErr error
	)
	p.doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		t, err := p.parseTable(i, s)
		if err != nil {
			lastErr = err
			return false
		}
		out = append(out, t)
		return true
	})
	if lastErr != nil {
		return nil, lastErr
	}
	if out == nil {
		out = []Table{}
	}
	return out, nil
}

// ParseTableAt parses the index-th <table> of the document (0-based).
func (p *Parser) ParseTableAt(index int) ([]*Record, error) {
	tables := p.doc.Find("table")
	if index < 0 || index >= tables.Length() {
		return nil, fmt.Errorf("%w: table %d of %d", ErrElementNotFound, index, tables.Length())
	}
	return p.ParseTable(tables.Eq(index))
}

// ParseHTML parses every table of html with opts.
func ParseHTML(html string, opts Options) ([][]*Record, error) {
	p, err := NewParser(html, opts)
	if err != nil {
		return nil, err
	}
	return p.ParseAll()
}
