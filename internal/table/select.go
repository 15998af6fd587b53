package table

import (
	"fmt"
	"strings"
)

// headerScanRows is how far down a table we look for its real header row.
// Ranking pages put one or two title rows above it.
const headerScanRows = 5

// TableNotFoundError means no table on a page looked like the one we need.
// It usually means the source changed its layout.
type TableNotFoundError struct {
	Page string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("no matching table found on %s", e.Page)
}

// Policy describes how to pick a table out of a page.
type Policy struct {
	// Groups must each be matched by at least one header cell.
	Groups [][]string
	// Fallback is used when no table satisfies Groups: any header cell
	// containing one of these keywords is enough.
	Fallback []string
}

// Select picks the table described by p. A table satisfying every group
// always beats one that only satisfies the fallback, whatever their order
// in the document. The returned table has its header row promoted.
func Select(tables []Table, p Policy, page string) (*Table, error) {
	for i := range tables {
		if t, ok := promote(&tables[i], func(row []string) bool { return matchesAll(row, p.Groups) }); ok {
			return t, nil
		}
	}
	if len(p.Fallback) > 0 {
		for i := range tables {
			if t, ok := promote(&tables[i], func(row []string) bool { return matchesAny(row, p.Fallback) }); ok {
				return t, nil
			}
		}
	}
	return nil, &TableNotFoundError{Page: page}
}

// promote scans the first rows of t for one accepted by isHeader and returns
// a copy using it as header. Rows above it are dropped.
func promote(t *Table, isHeader func([]string) bool) (*Table, bool) {
	if isHeader(t.Headers) {
		return t, true
	}
	for i := 0; i < len(t.Rows) && i < headerScanRows-1; i++ {
		if isHeader(t.Rows[i]) {
			return &Table{Index: t.Index, Headers: t.Rows[i], Rows: t.Rows[i+1:]}, true
		}
	}
	return nil, false
}

func matchesAll(row []string, groups [][]string) bool {
	if len(groups) == 0 {
		return false
	}
	for _, g := range groups {
		if !matchesAny(row, g) {
			return false
		}
	}
	return true
}

func matchesAny(row []string, keywords []string) bool {
	for _, cell := range row {
		for _, kw := range keywords {
			if containsFold(cell, kw) {
				return true
			}
		}
	}
	return false
}

// containsFold reports whether kw is a substring of s, ignoring ASCII case.
func containsFold(s, kw string) bool {
	if kw == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(kw))
}
