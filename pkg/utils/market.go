package utils

import (
	"time"
)

// MarketStatus is the trading phase of the US equity market.
type MarketStatus string

const (
	MarketPreMarket  MarketStatus = "PRE_MARKET"
	MarketOpen       MarketStatus = "OPEN"
	MarketAfterHours MarketStatus = "AFTER_HOURS"
	MarketClosed     MarketStatus = "CLOSED"
)

// NewYorkLocation is the timezone of the NYSE and Nasdaq sessions.
var NewYorkLocation *time.Location

func init() {
	var err error
	NewYorkLocation, err = time.LoadLocation("America/New_York")
	if err != nil {
		// Fallback to EST; daylight saving is lost without tzdata
		NewYorkLocation = time.FixedZone("EST", -5*60*60)
	}
}

// Session boundaries in minutes after midnight, New York time.
const (
	preMarketStart  = 4 * 60
	regularOpen     = 9*60 + 30
	regularClose    = 16 * 60
	afterHoursClose = 20 * 60
)

// MarketStatusAt returns the market phase at t. Exchange holidays are not
// modeled.
func MarketStatusAt(t time.Time) MarketStatus {
	now := t.In(NewYorkLocation)
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return MarketClosed
	}

	minutes := now.Hour()*60 + now.Minute()
	switch {
	case minutes >= preMarketStart && minutes < regularOpen:
		return MarketPreMarket
	case minutes >= regularOpen && minutes < regularClose:
		return MarketOpen
	case minutes >= regularClose && minutes < afterHoursClose:
		return MarketAfterHours
	default:
		return MarketClosed
	}
}

// GetMarketStatus returns the current market status.
func GetMarketStatus() MarketStatus {
	return MarketStatusAt(time.Now())
}

// NextMarketOpen returns the first regular-session open strictly after t.
func NextMarketOpen(t time.Time) time.Time {
	now := t.In(NewYorkLocation)
	next := time.Date(now.Year(), now.Month(), now.Day(), 9, 30, 0, 0, NewYorkLocation)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
