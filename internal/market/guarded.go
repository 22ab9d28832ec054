package market

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	apperrors "marketminds/internal/errors"
	"marketminds/internal/models"
	"marketminds/internal/resilience"
)

// GuardedProvider stops calling an upstream provider that keeps failing.
// While the circuit is open calls fail fast with resilience.ErrCircuitOpen,
// which lets a CachedProvider in front of it serve stale bars at once.
type GuardedProvider struct {
	next    Provider
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
}

var _ Provider = (*GuardedProvider)(nil)

// NewGuardedProvider wraps next with breaker.
func NewGuardedProvider(next Provider, breaker *resilience.CircuitBreaker, logger zerolog.Logger) *GuardedProvider {
	return &GuardedProvider{next: next, breaker: breaker, logger: logger}
}

// History implements Provider.
func (g *GuardedProvider) History(ctx context.Context, symbol string, period models.Period) ([]models.Candle, error) {
	candles, err := resilience.Execute(g.breaker, ctx, func(ctx context.Context) ([]models.Candle, error) {
		return g.next.History(ctx, symbol, period)
	})
	g.logRejected(err, symbol)
	return candles, err
}

// Info implements Provider.
func (g *GuardedProvider) Info(ctx context.Context, symbol string) (models.StockInfo, error) {
	info, err := resilience.Execute(g.breaker, ctx, func(ctx context.Context) (models.StockInfo, error) {
		return g.next.Info(ctx, symbol)
	})
	g.logRejected(err, symbol)
	return info, err
}

func (g *GuardedProvider) logRejected(err error, symbol string) {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		g.logger.Warn().Str("breaker", g.breaker.Name()).Str("symbol", symbol).Msg("Market data circuit open, request rejected")
	}
}

// IsUpstreamFailure reports whether err says the provider itself is unwell.
// Bad symbols, bad input and cancelled requests are the caller's problem.
func IsUpstreamFailure(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := apperrors.AsFinanceError(err); ok {
		return false
	}
	return !errors.Is(err, apperrors.ErrInputValidation) &&
		!errors.Is(err, context.Canceled)
}
