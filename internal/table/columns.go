package table

import (
	"fmt"
	"strings"
)

// Column declares how a canonical field is found in a header row.
type Column struct {
	Field    string
	Keywords []string // tried in order
	Required bool
}

// ColumnMap is evaluated in order; earlier fields claim columns first.
type ColumnMap []Column

// ColumnMissingError is returned when a required field has no matching header.
type ColumnMissingError struct {
	Field   string
	Headers []string
}

func (e *ColumnMissingError) Error() string {
	return fmt.Sprintf("required column %q not found in headers [%s]", e.Field, strings.Join(e.Headers, ", "))
}

// Columns maps canonical field names to column indexes.
type Columns map[string]int

// Has reports whether field was matched.
func (c Columns) Has(field string) bool {
	_, ok := c[field]
	return ok
}

// Get returns the cell for field in row i of t, or "" when the field is absent.
func (c Columns) Get(t *Table, i int, field string) string {
	col, ok := c[field]
	if !ok {
		return ""
	}
	return t.Cell(i, col)
}

// Resolve matches every field of m against headers. For each field the
// keywords are tried in order, and for each keyword the first column not
// already claimed by an earlier field wins.
func (m ColumnMap) Resolve(headers []string) (Columns, error) {
	cols := make(Columns, len(m))
	claimed := make(map[int]bool, len(headers))
	for _, f := range m {
		idx := -1
	search:
		for _, kw := range f.Keywords {
			for i, h := range headers {
				if !claimed[i] && containsFold(h, kw) {
					idx = i
					break search
				}
			}
		}
		if idx < 0 {
			if f.Required {
				return nil, &ColumnMissingError{Field: f.Field, Headers: headers}
			}
			continue
		}
		cols[f.Field] = idx
		claimed[idx] = true
	}
	return cols, nil
}
