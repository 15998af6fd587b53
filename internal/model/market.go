package model

import "strings"

// Market identifies the exchange a listing came from.
type Market string

const (
	MarketTWSE Market = "TWSE" // listed (上市)
	MarketTPEX Market = "TPEX" // over-the-counter (上櫃)
)

// ParseMarket accepts the exchange code in any case.
func ParseMarket(s string) (Market, bool) {
	switch Market(strings.ToUpper(strings.TrimSpace(s))) {
	case MarketTWSE:
		return MarketTWSE, true
	case MarketTPEX:
		return MarketTPEX, true
	}
	return "", false
}

// LimitUpRow is one stock that closed at or above the limit-up threshold.
type LimitUpRow struct {
	TradeDate string
	Symbol    string
	Name      string
	Market    Market
	Close     *float64
	Volume    *float64
	PctChange float64 // percentage units, 9.8 means 9.8%
}
