package indicators

import (
	"fmt"
	"math"

	"marketminds/internal/models"
)

// Trend is the direction implied by the short and long moving averages.
type Trend string

const (
	TrendBullish      Trend = "bullish"
	TrendBearish      Trend = "bearish"
	TrendUndetermined Trend = "undetermined"
)

// Moving average windows used for the trend signal.
const (
	ShortSMAPeriod = 20
	LongSMAPeriod  = 50
)

// SMA calculates Simple Moving Average.
type SMA struct {
	period int
}

// NewSMA creates a new SMA indicator.
func NewSMA(period int) *SMA {
	return &SMA{period: period}
}

func (s *SMA) Name() string {
	return fmt.Sprintf("SMA_%d", s.period)
}

func (s *SMA) Period() int {
	return s.period
}

// Calculate returns one value per candle. Entries before the first full
// window are NaN.
func (s *SMA) Calculate(candles []models.Candle) ([]float64, error) {
	if s.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < s.period {
		return nil, ErrInsufficientData
	}

	result := make([]float64, len(candles))
	closes := ClosePrices(candles)

	for i := 0; i < s.period-1; i++ {
		result[i] = math.NaN()
	}
	for i := s.period - 1; i < len(candles); i++ {
		result[i] = mean(closes[i-s.period+1 : i+1])
	}

	return result, nil
}

// TrendFromSMAs compares the latest short and long averages. Missing or NaN
// averages yield TrendUndetermined.
func TrendFromSMAs(short, long []float64) Trend {
	s, l := last(short), last(long)
	if math.IsNaN(s) || math.IsNaN(l) {
		return TrendUndetermined
	}
	if s > l {
		return TrendBullish
	}
	return TrendBearish
}
