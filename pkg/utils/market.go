package utils

import (
	"time"

	"fno-signals/internal/models"
)

// IndiaLocation is the timezone for Indian markets.
var IndiaLocation *time.Location

func init() {
	var err error
	IndiaLocation, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback to UTC+5:30
		IndiaLocation = time.FixedZone("IST", 5*60*60+30*60)
	}
}

const (
	preOpenMinute = 9 * 60     // 09:00
	openMinute    = 9*60 + 15  // 09:15
	closeMinute   = 15*60 + 30 // 15:30
)

// MarketStatusAt returns the NSE session status at t. Exchange holidays are
// not modelled.
func MarketStatusAt(t time.Time) models.MarketStatus {
	now := t.In(IndiaLocation)

	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return models.MarketClosed
	}

	minutes := now.Hour()*60 + now.Minute()
	switch {
	case minutes >= preOpenMinute && minutes < openMinute:
		return models.MarketPreOpen
	case minutes >= openMinute && minutes < closeMinute:
		return models.MarketOpen
	}
	return models.MarketClosed
}

// GetMarketStatus returns the current market status.
func GetMarketStatus() models.MarketStatus {
	return MarketStatusAt(time.Now())
}

// IsMarketOpenAt reports whether the cash and F&O session is live at t.
func IsMarketOpenAt(t time.Time) bool {
	return MarketStatusAt(t) == models.MarketOpen
}

// IsMarketOpen returns true if the market is currently open.
func IsMarketOpen() bool {
	return IsMarketOpenAt(time.Now())
}

// NextMarketOpen returns the first session open strictly after t.
func NextMarketOpen(t time.Time) time.Time {
	now := t.In(IndiaLocation)
	next := time.Date(now.Year(), now.Month(), now.Day(), 9, 15, 0, 0, IndiaLocation)
	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// SessionOpen returns the open of the trading day containing t.
func SessionOpen(t time.Time) time.Time {
	now := t.In(IndiaLocation)
	return time.Date(now.Year(), now.Month(), now.Day(), 9, 15, 0, 0, IndiaLocation)
}

// SessionClose returns the close of the trading day containing t.
func SessionClose(t time.Time) time.Time {
	now := t.In(IndiaLocation)
	return time.Date(now.Year(), now.Month(), now.Day(), 15, 30, 0, 0, IndiaLocation)
}

// TradingDate returns the YYYY-MM-DD date of t in exchange time.
func TradingDate(t time.Time) string {
	return t.In(IndiaLocation).Format("2006-01-02")
}
