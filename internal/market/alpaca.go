package market

import (
	"context"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	apperrors "marketminds/internal/errors"
	"marketminds/internal/logging"
	"marketminds/internal/models"
)

// AlpacaConfig configures the Alpaca market data client.
type AlpacaConfig struct {
	KeyID     string
	SecretKey string
	Feed      string
	RateLimit float64 // requests per second
}

// AlpacaProvider implements Provider on the Alpaca market data API.
type AlpacaProvider struct {
	client  *marketdata.Client
	feed    marketdata.Feed
	limiter *rate.Limiter
	logger  zerolog.Logger
	now     func() time.Time
}

var _ Provider = (*AlpacaProvider)(nil)

// NewAlpacaProvider returns a new Alpaca provider. Empty credentials fall back
// to the APCA_API_KEY_ID and APCA_API_SECRET_KEY environment variables.
func NewAlpacaProvider(cfg AlpacaConfig, logger zerolog.Logger) *AlpacaProvider {
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 3
	}
	burst := int(limit)
	if burst < 1 {
		burst = 1
	}
	return &AlpacaProvider{
		client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    cfg.KeyID,
			APISecret: cfg.SecretKey,
			Feed:      marketdata.Feed(cfg.Feed),
		}),
		feed:    marketdata.Feed(cfg.Feed),
		limiter: rate.NewLimiter(rate.Limit(limit), burst),
		logger:  logging.WithOperation(logger, "alpaca"),
		now:     time.Now,
	}
}

// History returns daily bars covering period, oldest first.
func (p *AlpacaProvider) History(ctx context.Context, symbol string, period models.Period) ([]models.Candle, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	bars, err := p.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Start:      fetchStart(period, p.now()),
		Adjustment: marketdata.Split,
		Feed:       p.feed,
	})
	logging.LogAPICall(p.logger, "GET", "bars/"+symbol, time.Since(start), err)
	if err != nil {
		return nil, apperrors.NewDataError("history", symbol, "fetching daily bars", err)
	}

	candles := make([]models.Candle, 0, len(bars))
	for _, b := range bars {
		candles = append(candles, models.Candle{
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    int64(b.Volume),
		})
	}
	return trimToPeriod(candles, period), nil
}

// Info returns company metadata. The market data API only supplies the
// latest trade price, so the remaining fields stay nil.
func (p *AlpacaProvider) Info(ctx context.Context, symbol string) (models.StockInfo, error) {
	var info models.StockInfo
	if err := p.limiter.Wait(ctx); err != nil {
		return info, err
	}

	start := time.Now()
	trade, err := p.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{Feed: p.feed})
	logging.LogAPICall(p.logger, "GET", "trades/latest/"+symbol, time.Since(start), err)
	if err != nil {
		return info, apperrors.NewDataError("info", symbol, "fetching latest trade", err)
	}
	if trade != nil {
		price := trade.Price
		info.CurrentPrice = &price
	}
	return info, nil
}
