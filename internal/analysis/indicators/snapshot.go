package indicators

import (
	"context"
	"math"

	"marketminds/internal/models"
)

// Result is the latest-sample technical picture of a price window.
type Result struct {
	Trend       Trend    `json:"trend"`
	RSI         *float64 `json:"rsi"`
	Support     float64  `json:"support"`
	Resistance  float64  `json:"resistance"`
	VolumeTrend string   `json:"volume_trend"`
	Momentum    string   `json:"momentum"`
}

// Calculator derives a Result from a price window.
type Calculator struct {
	engine *Engine
}

// NewCalculator registers the moving averages, RSI and volume change on a
// fresh engine.
func NewCalculator() *Calculator {
	e := NewEngine(4)
	e.RegisterIndicator(NewSMA(ShortSMAPeriod))
	e.RegisterIndicator(NewSMA(LongSMAPeriod))
	e.RegisterIndicator(NewRSI(RSIPeriod))
	e.RegisterIndicator(NewVolumeChange())
	return &Calculator{engine: e}
}

// Compute returns the indicator snapshot of candles, which must be ascending
// and non-empty.
func (c *Calculator) Compute(ctx context.Context, candles []models.Candle) (*Result, error) {
	if len(candles) == 0 {
		return nil, ErrInsufficientData
	}

	values, err := c.engine.CalculateAll(ctx, candles)
	if err != nil {
		return nil, err
	}

	levels, err := SupportResistance(candles)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Trend:       TrendFromSMAs(values[NewSMA(ShortSMAPeriod).Name()], values[NewSMA(LongSMAPeriod).Name()]),
		Support:     levels.Support,
		Resistance:  levels.Resistance,
		VolumeTrend: VolumeTrend(values[NewVolumeChange().Name()]),
		Momentum:    MomentumDirection(candles),
	}
	if rsi := last(values[NewRSI(RSIPeriod).Name()]); !math.IsNaN(rsi) {
		result.RSI = &rsi
	}
	return result, nil
}
