// Package htmltable converts HTML <table> elements into records.
//
// A table's header rows, with their colspan values, are assembled into a
// header tree. Each body row is then mapped onto the tree: nested header
// cells become nested records, duplicate sibling names get "_<n>" suffixes,
// and cells without a header column are kept under "unlabelled_<n>" keys.
//
// Mapping never fails on row shape. Rows with too few cells produce missing
// (nil) values and rows with too many cells produce unlabelled values; neither
// is an error. The only error the parser reports for a well-formed document is
// ErrElementNotFound, for a table handle that matches nothing.
//
// HTML parsing and CSS selection are done with goquery.
package htmltable
