// Package models provides domain models shared by the provider side and the
// signal engine.
package models

import (
	"time"
)

// Exchange represents a stock exchange segment.
type Exchange string

const (
	NSE Exchange = "NSE"
	BSE Exchange = "BSE"
	NFO Exchange = "NFO" // F&O
)

// MarketStatus represents the current market status.
type MarketStatus string

const (
	MarketOpen    MarketStatus = "OPEN"
	MarketPreOpen MarketStatus = "PRE_OPEN"
	MarketClosed  MarketStatus = "CLOSED"
)

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Open      float64   `json:"open" yaml:"open"`
	High      float64   `json:"high" yaml:"high"`
	Low       float64   `json:"low" yaml:"low"`
	Close     float64   `json:"close" yaml:"close"`
	Volume    int64     `json:"volume" yaml:"volume"`
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// DayOHLCV is the previous session's summary used for breakout checks.
type DayOHLCV struct {
	Date   time.Time `json:"date" yaml:"date"`
	Open   float64   `json:"open" yaml:"open"`
	High   float64   `json:"high" yaml:"high"`
	Low    float64   `json:"low" yaml:"low"`
	Close  float64   `json:"close" yaml:"close"`
	Volume int64     `json:"volume" yaml:"volume"`
}

// IsZero reports whether no previous-day data was supplied.
func (d DayOHLCV) IsZero() bool {
	return d.High == 0 && d.Low == 0 && d.Close == 0
}

// Instrument identifies a tradeable underlying.
type Instrument struct {
	Symbol   string   `json:"symbol" yaml:"symbol"`
	Exchange Exchange `json:"exchange" yaml:"exchange"`
	IsIndex  bool     `json:"is_index" yaml:"is_index"`
	LotSize  int      `json:"lot_size" yaml:"lot_size"`
}
