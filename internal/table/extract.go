package table

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

// ErrNoData means a document parsed fine but carried no rows, as open-data
// endpoints do on non-trading days.
var ErrNoData = errors.New("document holds no data rows")

// maxColspan caps colspan expansion; some pages use colspan="100" on title rows.
const maxColspan = 32

// Table is a parsed <table> (or JSON array) as rows of cell text.
type Table struct {
	Index   int // position in the source document
	Headers []string
	Rows    [][]string
}

// Cell returns the text at row i, column col, or "" when the row is short.
func (t *Table) Cell(i, col int) string {
	if i < 0 || i >= len(t.Rows) || col < 0 || col >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][col]
}

// ExtractHTML returns every non-empty table in the document. The first row of
// each table is used as its header until Select promotes a better one.
func ExtractHTML(r io.Reader) ([]Table, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var tables []Table
	doc.Find("table").Each(func(i int, tbl *goquery.Selection) {
		var rows [][]string
		tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			// Layout pages nest tables; rows belong to their closest table only.
			if !tr.Closest("table").IsSelection(tbl) {
				return
			}
			if cells := rowCells(tr); len(cells) > 0 {
				rows = append(rows, cells)
			}
		})
		if len(rows) < 2 {
			return
		}
		tables = append(tables, Table{Index: i, Headers: rows[0], Rows: rows[1:]})
	})
	return tables, nil
}

func rowCells(tr *goquery.Selection) []string {
	var cells []string
	nonEmpty := false
	tr.ChildrenFiltered("th,td").Each(func(_ int, c *goquery.Selection) {
		text := cellText(c)
		if text != "" {
			nonEmpty = true
		}
		span := 1
		if v, ok := c.Attr("colspan"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 1 {
				span = min(n, maxColspan)
			}
		}
		for k := 0; k < span; k++ {
			cells = append(cells, text)
		}
	})
	if !nonEmpty {
		return nil
	}
	return cells
}

// cellText returns the text of a cell without the text of tables nested in it.
func cellText(c *goquery.Selection) string {
	if c.Find("table").Length() == 0 {
		return cleanText(c.Text())
	}
	return cleanText(c.Clone().Find("table").Remove().End().Text())
}

// FromJSON turns a JSON array of flat objects into a single table. Headers are
// the keys of the first object in document order; later objects are read by key.
// An empty array yields ErrNoData.
func FromJSON(data []byte) ([]Table, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("parse json: invalid document")
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, fmt.Errorf("parse json: expected array, got %s", root.Type)
	}
	items := root.Array()
	if len(items) == 0 {
		return nil, ErrNoData
	}
	if !items[0].IsObject() {
		return nil, fmt.Errorf("parse json: expected array of objects, got %s", items[0].Type)
	}

	var headers []string
	items[0].ForEach(func(key, _ gjson.Result) bool {
		headers = append(headers, key.String())
		return true
	})

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		if !item.IsObject() {
			continue
		}
		byKey := make(map[string]string, len(headers))
		item.ForEach(func(key, value gjson.Result) bool {
			byKey[key.String()] = cleanText(value.String())
			return true
		})
		row := make([]string, len(headers))
		for c, h := range headers {
			row[c] = byKey[h]
		}
		rows = append(rows, row)
	}
	return []Table{{Index: 0, Headers: headers, Rows: rows}}, nil
}

// cleanText collapses runs of whitespace (including NBSP and ideographic
// space) into single spaces.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
