// Package market provides price history and company metadata for stock symbols.
package market

import (
	"context"
	"strings"
	"time"

	"marketminds/internal/models"
)

// Provider is the market data source used by the tools.
// An empty history with a nil error means the symbol is unknown.
type Provider interface {
	History(ctx context.Context, symbol string, period models.Period) ([]models.Candle, error)
	Info(ctx context.Context, symbol string) (models.StockInfo, error)
}

// Timeframe is the bar size requested from providers and used as the cache key.
const Timeframe = "1Day"

// NormalizeSymbol upper-cases and trims a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// fetchStart returns the first date to request for period. Session-limited
// periods reach further back so weekends and holidays still yield bars.
func fetchStart(period models.Period, now time.Time) time.Time {
	if n := period.Sessions(); n > 0 {
		return now.AddDate(0, 0, -(2*n + 7))
	}
	return period.Start(now)
}

// trimToPeriod keeps the last sessions bars for session-limited periods.
func trimToPeriod(candles []models.Candle, period models.Period) []models.Candle {
	if n := period.Sessions(); n > 0 && len(candles) > n {
		return candles[len(candles)-n:]
	}
	return candles
}
