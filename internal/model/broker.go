package model

import (
	"strconv"
	"strings"
)

// BrokerRow is one line of a per-stock broker breakdown.
type BrokerRow struct {
	BrokerName string
	BrokerCode string
	BuyVolume  float64
	SellVolume float64
	NetVolume  float64
	BuyRatio   *float64 // 0 ~ 1
}

// TargetBroker is a watchlist entry from brokers.yaml.
type TargetBroker struct {
	Name     string `yaml:"name"`
	Code     string `yaml:"code"`
	MaxRatio string `yaml:"max_ratio"`
}

// Ratio returns the parsed ratio ceiling. ok is false when none is set or
// the value cannot be parsed.
func (t TargetBroker) Ratio() (float64, bool) {
	s := strings.TrimSpace(t.MaxRatio)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// BrokerHit joins a limit-up stock with its matched top buyer.
type BrokerHit struct {
	TradeDate  string
	Symbol     string
	Name       string
	Market     Market
	Close      *float64
	Volume     *float64
	PctChange  float64
	BrokerName string
	BrokerCode string
	BuyVolume  float64
}
