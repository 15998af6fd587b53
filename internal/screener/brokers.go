package screener

import (
	"regexp"
	"strings"

	"LimitUpWatch/internal/model"
	"LimitUpWatch/internal/table"
)

// Canonical broker-detail fields.
const (
	FieldBrokerName = "broker_name"
	FieldBuyVolume  = "buy_volume"
	FieldSellVolume = "sell_volume"
	FieldNetVolume  = "net_volume"
	FieldBuyRatio   = "buy_ratio"
)

// BrokerPolicy picks the broker table off a broker-detail page.
var BrokerPolicy = table.Policy{
	Groups:   [][]string{{"券商", "分點", "營業部", "Broker"}, {"買進", "買入", "Buy"}},
	Fallback: []string{"券商", "分點", "營業部", "Broker"},
}

// BrokerColumns maps broker-detail headers to broker fields. Pages that show
// buyers and sellers side by side repeat the headers; the left block wins.
var BrokerColumns = table.ColumnMap{
	{Field: FieldBrokerName, Keywords: []string{"券商", "分點", "營業部", "Broker"}, Required: true},
	{Field: FieldBuyVolume, Keywords: []string{"買進", "買入", "Buy"}, Required: true},
	{Field: FieldSellVolume, Keywords: []string{"賣出", "Sell"}},
	{Field: FieldNetVolume, Keywords: []string{"買賣超", "買超", "差額", "淨", "Net"}},
	{Field: FieldBuyRatio, Keywords: []string{"比率", "比重", "%", "Ratio"}},
}

// brokerCodePrefix matches a branch code printed ahead of the name, e.g.
// "9268 凱基台北" or "920F凱基-站前".
var brokerCodePrefix = regexp.MustCompile(`^([0-9][0-9A-Za-z]{3})\s*(\S.*)$`)

// ParseBrokers selects the broker table from tables and normalizes its rows.
// Rows without a broker name are dropped; missing volumes count as zero.
func ParseBrokers(tables []table.Table, page string) ([]model.BrokerRow, error) {
	t, err := table.Select(tables, BrokerPolicy, page)
	if err != nil {
		return nil, err
	}
	cols, err := BrokerColumns.Resolve(t.Headers)
	if err != nil {
		return nil, err
	}

	var rows []model.BrokerRow
	for i := range t.Rows {
		name, code := splitBroker(cols.Get(t, i, FieldBrokerName))
		if name == "" {
			continue
		}
		buy, buyOK := table.ParseNumber(cols.Get(t, i, FieldBuyVolume))
		sell, sellOK := table.ParseNumber(cols.Get(t, i, FieldSellVolume))
		if !buyOK && !sellOK {
			// repeated header or footer row
			continue
		}
		net, netOK := table.ParseNumber(cols.Get(t, i, FieldNetVolume))
		if !netOK {
			net = buy - sell
		}
		rows = append(rows, model.BrokerRow{
			BrokerName: name,
			BrokerCode: code,
			BuyVolume:  buy,
			SellVolume: sell,
			NetVolume:  net,
			BuyRatio:   table.Ptr(table.ParseRatio(cols.Get(t, i, FieldBuyRatio))),
		})
	}
	return rows, nil
}

func splitBroker(cell string) (name, code string) {
	cell = strings.TrimSpace(cell)
	if m := brokerCodePrefix.FindStringSubmatch(cell); m != nil {
		return strings.TrimSpace(m[2]), m[1]
	}
	return cell, ""
}

// TopBuyer returns the row with the largest buy volume. Ties keep the
// earlier row. ok is false when rows is empty.
func TopBuyer(rows []model.BrokerRow) (model.BrokerRow, bool) {
	if len(rows) == 0 {
		return model.BrokerRow{}, false
	}
	top := rows[0]
	for _, r := range rows[1:] {
		if r.BuyVolume > top.BuyVolume {
			top = r
		}
	}
	return top, true
}
