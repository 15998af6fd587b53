// Package screener turns extracted tables into limit-up rows and broker rows,
// and matches top buyers against the watchlist.
package screener

import (
	"strings"

	"LimitUpWatch/internal/model"
	"LimitUpWatch/internal/table"
)

// Canonical listing fields.
const (
	FieldSymbol    = "symbol"
	FieldName      = "name"
	FieldClose     = "close"
	FieldPctChange = "pct_change"
	FieldChange    = "change"
	FieldVolume    = "volume"
)

// ListingPolicy picks the stock table off a ranking page.
var ListingPolicy = table.Policy{
	Groups:   [][]string{{"名稱", "Name"}, {"代號", "代碼", "股票", "Code"}},
	Fallback: []string{"代號", "代碼", "股票", "Code"},
}

// ListingColumns maps ranking-page and open-data headers to listing fields.
// pct_change must come before change so that "漲跌幅" is not taken as "漲跌".
var ListingColumns = table.ColumnMap{
	{Field: FieldSymbol, Keywords: []string{"代號", "代碼", "Code"}},
	{Field: FieldName, Keywords: []string{"名稱", "Name"}},
	{Field: FieldClose, Keywords: []string{"收盤", "成交價", "價格", "Closing", "Close"}},
	{Field: FieldPctChange, Keywords: []string{"漲跌幅", "漲幅", "幅", "%", "Percent"}},
	{Field: FieldChange, Keywords: []string{"漲跌", "Change"}},
	{Field: FieldVolume, Keywords: []string{"成交量", "成交股數", "張數", "量", "TradeVolume", "TradingShares", "Volume"}},
}

// Candidate is a normalized listing row before threshold filtering.
type Candidate struct {
	Symbol    string
	Name      string
	Close     *float64
	Volume    *float64
	PctChange *float64
}

// ParseListing selects the stock table from tables and normalizes its rows.
// page identifies the source in errors.
func ParseListing(tables []table.Table, page string) ([]Candidate, error) {
	t, err := table.Select(tables, ListingPolicy, page)
	if err != nil {
		return nil, err
	}
	cols, err := ListingColumns.Resolve(t.Headers)
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(t.Rows))
	for i := range t.Rows {
		c := Candidate{
			Symbol: cols.Get(t, i, FieldSymbol),
			Name:   cols.Get(t, i, FieldName),
			Close:  table.Ptr(table.ParseNumber(cols.Get(t, i, FieldClose))),
			Volume: table.Ptr(table.ParseNumber(cols.Get(t, i, FieldVolume))),
		}
		c.PctChange = table.Ptr(table.ParsePercent(cols.Get(t, i, FieldPctChange)))
		if c.PctChange == nil && c.Close != nil {
			if chg, ok := table.ParseNumber(cols.Get(t, i, FieldChange)); ok {
				c.PctChange = pctFromChange(*c.Close, chg)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// pctFromChange derives the percent change from close and the absolute change.
func pctFromChange(closePrice, change float64) *float64 {
	prev := closePrice - change
	if prev <= 0 {
		return nil
	}
	pct := change / prev * 100
	return &pct
}

// FilterLimitUps keeps candidates whose percent change is at least threshold
// and that carry a numeric stock code. Equal to threshold counts as limit-up.
func FilterLimitUps(cands []Candidate, market model.Market, tradeDate string, threshold float64) []model.LimitUpRow {
	var rows []model.LimitUpRow
	seen := make(map[string]bool, len(cands))
	for _, c := range cands {
		if c.PctChange == nil || *c.PctChange < threshold {
			continue
		}
		symbol, name := splitCodeName(c.Symbol, c.Name)
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true
		rows = append(rows, model.LimitUpRow{
			TradeDate: tradeDate,
			Symbol:    symbol,
			Name:      name,
			Market:    market,
			Close:     c.Close,
			Volume:    c.Volume,
			PctChange: *c.PctChange,
		})
	}
	return rows
}

// splitCodeName returns the digit code and the display name. Ranking pages
// often print code and name in one cell ("4939亞電"); the code is then taken
// from the name cell and stripped off the name.
func splitCodeName(symbol, name string) (string, string) {
	symbol = strings.TrimSpace(symbol)
	name = strings.TrimSpace(name)

	if code := digitsOf(symbol); code != "" {
		if name == "" || name == symbol {
			name = strings.TrimSpace(strings.TrimLeftFunc(symbol, isCodeRune))
		}
		return code, name
	}

	lead := leadingDigits(name)
	if lead == "" {
		return digitsOf(name), name
	}
	return lead, strings.TrimSpace(strings.TrimPrefix(name, lead))
}

func isCodeRune(r rune) bool {
	return r >= '0' && r <= '9'
}

func leadingDigits(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool { return !isCodeRune(r) })
	if end < 0 {
		return s
	}
	return s[:end]
}

// digitsOf returns every ASCII digit in s, in order.
func digitsOf(s string) string {
	return strings.Map(func(r rune) rune {
		if isCodeRune(r) {
			return r
		}
		return -1
	}, s)
}
