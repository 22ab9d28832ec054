package market

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"marketminds/internal/models"
	"marketminds/internal/store"
)

// Cache is the persistence the cached provider needs.
type Cache interface {
	store.CandleStore
	GetLastSync(dataType string) time.Time
	SetLastSync(dataType string, t time.Time) error
}

// CachedProvider serves price history from the local cache while it is
// fresher than ttl, and falls back to stale cached bars when the upstream
// fetch fails.
type CachedProvider struct {
	next   Provider
	cache  Cache
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

var _ Provider = (*CachedProvider)(nil)

// NewCachedProvider wraps next with a cache.
func NewCachedProvider(next Provider, cache Cache, ttl time.Duration, logger zerolog.Logger) *CachedProvider {
	return &CachedProvider{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

func syncKey(symbol string, period models.Period) string {
	return "history:" + symbol + ":" + string(period)
}

// History implements Provider.
func (c *CachedProvider) History(ctx context.Context, symbol string, period models.Period) ([]models.Candle, error) {
	now := c.now()
	key := syncKey(symbol, period)

	cached, err := c.cache.GetCandles(ctx, symbol, Timeframe, fetchStart(period, now), now)
	if err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to read cached candles")
		cached = nil
	}
	cached = trimToPeriod(cached, period)

	// Check freshness - if data is fresh enough, use cache
	if last := c.cache.GetLastSync(key); !last.IsZero() && now.Sub(last) < c.ttl && len(cached) > 0 {
		return cached, nil
	}

	candles, err := c.next.History(ctx, symbol, period)
	if err != nil {
		// If fetch fails but we have cached data, use it
		if len(cached) > 0 {
			c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Serving stale cached candles")
			return cached, nil
		}
		return nil, err
	}
	if len(candles) == 0 {
		return candles, nil
	}

	// Save to cache; a failed write only costs a refetch
	if err := c.cache.SaveCandles(ctx, symbol, Timeframe, candles); err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache candles")
		return candles, nil
	}
	if err := c.cache.SetLastSync(key, now); err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to record sync time")
	}
	return candles, nil
}

// Info implements Provider. Metadata is not cached.
func (c *CachedProvider) Info(ctx context.Context, symbol string) (models.StockInfo, error) {
	return c.next.Info(ctx, symbol)
}
