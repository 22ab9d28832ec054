package indicators

import (
	"math"

	apperrors "marketminds/internal/errors"
	"marketminds/internal/models"
)

var (
	// ErrInsufficientData is returned when there's not enough data for calculation.
	ErrInsufficientData = apperrors.ErrInsufficientData
	// ErrInvalidPeriod is returned when the period is invalid.
	ErrInvalidPeriod = apperrors.ErrInvalidPeriod
)

// isFinite reports whether v is neither NaN nor infinite.
func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// sum calculates the sum of a slice of float64.
func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// mean calculates the arithmetic mean of a slice of float64.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

// MeanFinite averages the finite values of a series, skipping NaN and
// infinities. It returns NaN when no finite value exists.
func MeanFinite(values []float64) float64 {
	var total float64
	n := 0
	for _, v := range values {
		if isFinite(v) {
			total += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return total / float64(n)
}

// SampleStdDev calculates the sample (n-1) standard deviation of the finite
// values of a series. It returns NaN for fewer than two finite values.
func SampleStdDev(values []float64) float64 {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if isFinite(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) < 2 {
		return math.NaN()
	}
	m := mean(finite)
	var variance float64
	for _, v := range finite {
		diff := v - m
		variance += diff * diff
	}
	variance /= float64(len(finite) - 1)
	return math.Sqrt(variance)
}

// PctChange returns the fractional change of each value against the value
// lag samples earlier. The first lag entries are NaN, as is any change
// measured from a zero base.
func PctChange(values []float64, lag int) []float64 {
	result := make([]float64, len(values))
	for i := range values {
		if i < lag || values[i-lag] == 0 {
			result[i] = math.NaN()
			continue
		}
		result[i] = (values[i] - values[i-lag]) / values[i-lag]
	}
	return result
}

// ClosePrices extracts close prices from candles.
func ClosePrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Close
	}
	return prices
}

// Volumes extracts volumes from candles as float64.
func Volumes(candles []models.Candle) []float64 {
	vols := make([]float64, len(candles))
	for i, c := range candles {
		vols[i] = float64(c.Volume)
	}
	return vols
}

// highPrices extracts high prices from candles.
func highPrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.High
	}
	return prices
}

// lowPrices extracts low prices from candles.
func lowPrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Low
	}
	return prices
}

// highest returns the highest value in a slice.
func highest(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	h := values[0]
	for _, v := range values[1:] {
		if v > h {
			h = v
		}
	}
	return h
}

// lowest returns the lowest value in a slice.
func lowest(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	l := values[0]
	for _, v := range values[1:] {
		if v < l {
			l = v
		}
	}
	return l
}

// last returns the final element of values, or NaN for an empty slice.
func last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}
