package model

import "time"

// SourceStatus is the outcome of one limit-up listing fetch.
type SourceStatus string

const (
	SourceOK      SourceStatus = "ok"
	SourceEmpty   SourceStatus = "empty"   // page parsed, no stock met the threshold
	SourceSkipped SourceStatus = "skipped" // transport or format failure
)

// SourceOutcome records what happened to one market source.
type SourceOutcome struct {
	Market Market
	Status SourceStatus
	Count  int
	Err    error
}

// StockStatus is the outcome of one broker-detail lookup.
type StockStatus string

const (
	StockHit     StockStatus = "hit"
	StockMiss    StockStatus = "miss"
	StockNoData  StockStatus = "no_data" // page parsed but held no broker rows
	StockSkipped StockStatus = "skipped" // transport or format failure
)

// StockOutcome records what happened to one limit-up stock.
type StockOutcome struct {
	Symbol   string
	Status   StockStatus
	TopBuyer string
	Err      error
}

// RunSummary is everything one pipeline run produced.
type RunSummary struct {
	RunID      string
	TradeDate  string
	StartedAt  time.Time
	FinishedAt time.Time
	LimitUps   []LimitUpRow
	Hits       []BrokerHit
	Sources    []SourceOutcome
	Stocks     []StockOutcome
	Emailed    bool
}

// CountStocks returns how many stock lookups ended with the given status.
func (s *RunSummary) CountStocks(status StockStatus) int {
	n := 0
	for _, o := range s.Stocks {
		if o.Status == status {
			n++
		}
	}
	return n
}
