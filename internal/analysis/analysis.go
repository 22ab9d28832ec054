// Package analysis derives summary statistics and period returns from price
// history. Technical indicators live in the indicators subpackage.
package analysis

import (
	"math"

	"github.com/shopspring/decimal"

	"marketminds/internal/analysis/indicators"
	apperrors "marketminds/internal/errors"
	"marketminds/internal/models"
)

// Return windows in trading sessions.
const (
	WeekSessions    = 5
	MonthSessions   = 21
	QuarterSessions = 63
)

const dateLayout = "2006-01-02"

// PriceMetrics describes price movement over a window.
type PriceMetrics struct {
	CurrentPrice       float64 `json:"current_price"`
	PriceChange        float64 `json:"price_change"`
	PriceChangePercent float64 `json:"price_change_percent"`
	High               float64 `json:"high"`
	Low                float64 `json:"low"`
}

// DateRange is the calendar span of a window.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Returns holds trailing percentage returns.
type Returns struct {
	Week    float64 `json:"1w"`
	Month   float64 `json:"1mo"`
	Quarter float64 `json:"3mo"`
}

// Summary is the condensed view of a price history window.
type Summary struct {
	PriceMetrics PriceMetrics `json:"price_metrics"`
	Volume       int64        `json:"volume"`
	Volatility   float64      `json:"volatility"`
	DateRange    DateRange    `json:"date_range"`
	Returns      Returns      `json:"returns"`
}

// Summarize computes the Summary of an ascending, non-empty window.
func Summarize(candles []models.Candle) (*Summary, error) {
	if len(candles) == 0 {
		return nil, apperrors.ErrInsufficientData
	}

	first, lastCandle := candles[0], candles[len(candles)-1]

	high, low := candles[0].High, candles[0].Low
	var volume float64
	for _, c := range candles {
		high = math.Max(high, c.High)
		low = math.Min(low, c.Low)
		volume += float64(c.Volume)
	}

	change := lastCandle.Close - first.Close
	changePct := 0.0
	if first.Close != 0 {
		changePct = change / first.Close * 100
	}

	return &Summary{
		PriceMetrics: PriceMetrics{
			CurrentPrice:       Round2(lastCandle.Close),
			PriceChange:        Round2(change),
			PriceChangePercent: Round2(changePct),
			High:               Round2(high),
			Low:                Round2(low),
		},
		Volume:     int64(volume / float64(len(candles))),
		Volatility: Round2(indicators.Volatility(candles)),
		DateRange: DateRange{
			Start: first.Timestamp.Format(dateLayout),
			End:   lastCandle.Timestamp.Format(dateLayout),
		},
		Returns: Returns{
			Week:    Round2(PeriodReturn(candles, WeekSessions)),
			Month:   Round2(PeriodReturn(candles, MonthSessions)),
			Quarter: Round2(PeriodReturn(candles, QuarterSessions)),
		},
	}, nil
}

// PeriodReturn is the percentage change from the close days sessions before
// the end (or the first close, whichever is nearer) to the last close. Any
// failure, such as an empty window or a zero base, yields 0.
func PeriodReturn(candles []models.Candle, days int) float64 {
	if len(candles) == 0 || days < 0 {
		return 0
	}
	idx := len(candles) - 1 - days
	if idx < 0 {
		idx = 0
	}
	base := candles[idx].Close
	if base == 0 {
		return 0
	}
	r := (candles[len(candles)-1].Close - base) / base * 100
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// Round2 rounds v half away from zero to two decimal places. Non-finite
// values pass through unchanged.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
