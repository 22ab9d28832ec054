package indicators

import (
	"fmt"
	"math"

	"marketminds/internal/models"
)

// Direction labels for momentum.
const (
	MomentumPositive = "positive"
	MomentumNegative = "negative"
)

// RSIPeriod is the default RSI window.
const RSIPeriod = 14

// MomentumLag is the sample distance used for the momentum signal.
const MomentumLag = 5

// RSI calculates the Relative Strength Index from simple rolling means of
// gains and losses.
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator.
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string {
	return fmt.Sprintf("RSI_%d", r.period)
}

func (r *RSI) Period() int {
	return r.period
}

// Calculate returns one value per candle. The first period entries are NaN.
// A window with no gains and no losses is NaN; a window with gains and no
// losses is 100.
func (r *RSI) Calculate(candles []models.Candle) ([]float64, error) {
	if r.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) == 0 {
		return nil, ErrInsufficientData
	}

	n := len(candles)
	result := make([]float64, n)
	closes := ClosePrices(candles)

	gains := make([]float64, n)
	losses := make([]float64, n)

	// Calculate gains and losses
	for i := 1; i < n; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	for i := 0; i < n; i++ {
		if i < r.period {
			result[i] = math.NaN()
			continue
		}
		avgGain := mean(gains[i-r.period+1 : i+1])
		avgLoss := mean(losses[i-r.period+1 : i+1])
		result[i] = rsiValue(avgGain, avgLoss)
	}

	return result, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	switch {
	case avgLoss == 0 && avgGain == 0:
		return math.NaN()
	case avgLoss == 0:
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// MomentumDirection is positive iff the mean MomentumLag-sample percentage
// change of closes is positive.
func MomentumDirection(candles []models.Candle) string {
	if MeanFinite(PctChange(ClosePrices(candles), MomentumLag)) > 0 {
		return MomentumPositive
	}
	return MomentumNegative
}
