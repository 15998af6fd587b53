package collector

import (
	"context"

	"LimitUpWatch/internal/config"
	"LimitUpWatch/internal/table"
)

// Fetcher defines the interface for fetching listing and broker pages.
// Implementations return the raw tables; picking and normalizing them is
// left to the screener.
type Fetcher interface {
	FetchListing(ctx context.Context, src config.ListingSource) ([]table.Table, error)
	FetchBrokerDetail(ctx context.Context, symbol, tradeDate string) ([]table.Table, error)
	Name() string
}
