package collector

import (
	"context"
	"fmt"
	"sync"

	"LimitUpWatch/internal/config"
	"LimitUpWatch/internal/model"
	"LimitUpWatch/internal/table"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Listings    map[model.Market][]table.Table
	ListingErrs map[model.Market]error
	Brokers     map[string][]table.Table // by symbol
	BrokerErrs  map[string]error

	mu          sync.Mutex
	BrokerCalls []string
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchListing(_ context.Context, src config.ListingSource) ([]table.Table, error) {
	if err := m.ListingErrs[src.Market]; err != nil {
		return nil, err
	}
	tables, ok := m.Listings[src.Market]
	if !ok {
		return nil, fmt.Errorf("mock: no listing for %s", src.Market)
	}
	return tables, nil
}

func (m *MockFetcher) FetchBrokerDetail(_ context.Context, symbol, _ string) ([]table.Table, error) {
	m.mu.Lock()
	m.BrokerCalls = append(m.BrokerCalls, symbol)
	m.mu.Unlock()

	if err := m.BrokerErrs[symbol]; err != nil {
		return nil, err
	}
	return m.Brokers[symbol], nil
}

// StockTable builds a ranking table with the columns the live pages use.
// Each row is code, name, close, pct change, volume.
func StockTable(rows ...[]string) table.Table {
	return table.Table{
		Headers: []string{"股票代號", "股票名稱", "收盤", "漲跌幅", "成交量"},
		Rows:    rows,
	}
}

// BrokerTable builds a broker-detail table. Each row is broker, buy, sell,
// ratio.
func BrokerTable(rows ...[]string) table.Table {
	return table.Table{
		Headers: []string{"券商名稱", "買進", "賣出", "比重"},
		Rows:    rows,
	}
}
