// Package models provides domain models for the market-minds assistant.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Candle represents OHLCV data for one trading session.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// Period is a price history lookback window.
type Period string

const (
	Period1D  Period = "1d"
	Period5D  Period = "5d"
	Period1M  Period = "1mo"
	Period3M  Period = "3mo"
	Period6M  Period = "6mo"
	Period1Y  Period = "1y"
	Period2Y  Period = "2y"
	Period5Y  Period = "5y"
	Period10Y Period = "10y"
	PeriodYTD Period = "ytd"
	PeriodMax Period = "max"
)

// DefaultPeriod is used when a caller does not name a period.
const DefaultPeriod = Period1M

// Periods lists every accepted period in ascending length (ytd excepted).
var Periods = []Period{
	Period1D, Period5D, Period1M, Period3M, Period6M,
	Period1Y, Period2Y, Period5Y, Period10Y, PeriodYTD, PeriodMax,
}

// Valid reports whether p is one of the accepted periods.
func (p Period) Valid() bool {
	for _, v := range Periods {
		if p == v {
			return true
		}
	}
	return false
}

// ParsePeriod normalizes s into a Period. An empty string yields DefaultPeriod.
func ParsePeriod(s string) (Period, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultPeriod, nil
	}
	p := Period(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown period %q", s)
	}
	return p, nil
}

// Start returns the first calendar day covered by p when measured back from now.
// Max reaches back to a fixed early date.
func (p Period) Start(now time.Time) time.Time {
	switch p {
	case Period1D:
		return now.AddDate(0, 0, -1)
	case Period5D:
		return now.AddDate(0, 0, -7)
	case Period1M:
		return now.AddDate(0, -1, 0)
	case Period3M:
		return now.AddDate(0, -3, 0)
	case Period6M:
		return now.AddDate(0, -6, 0)
	case Period1Y:
		return now.AddDate(-1, 0, 0)
	case Period2Y:
		return now.AddDate(-2, 0, 0)
	case Period5Y:
		return now.AddDate(-5, 0, 0)
	case Period10Y:
		return now.AddDate(-10, 0, 0)
	case PeriodYTD:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	default:
		return time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
}

// Sessions returns the number of trading sessions p is limited to, or 0 when
// the window is bounded only by its start date.
func (p Period) Sessions() int {
	switch p {
	case Period1D:
		return 1
	case Period5D:
		return 5
	default:
		return 0
	}
}

// StockInfo holds scalar metadata about a listed company. Fields the
// provider cannot supply stay nil.
type StockInfo struct {
	CurrentPrice      *float64 `json:"currentPrice"`
	MarketCap         *float64 `json:"marketCap"`
	TrailingPE        *float64 `json:"trailingPE"`
	ForwardPE         *float64 `json:"forwardPE"`
	Beta              *float64 `json:"beta"`
	DividendYield     *float64 `json:"dividendYield"`
	ProfitMargins     *float64 `json:"profitMargins"`
	RevenueGrowth     *float64 `json:"revenueGrowth"`
	RecommendationKey *string  `json:"recommendationKey"`
	TargetMeanPrice   *float64 `json:"targetMeanPrice"`
}

// Document is a news article stored with its embedding.
type Document struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
