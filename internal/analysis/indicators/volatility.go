package indicators

import (
	"math"

	"marketminds/internal/models"
)

// Volatility is the sample standard deviation of close-to-close percentage
// changes, expressed in percent. Windows with fewer than two changes yield 0.
func Volatility(candles []models.Candle) float64 {
	sd := SampleStdDev(PctChange(ClosePrices(candles), 1))
	if math.IsNaN(sd) {
		return 0
	}
	return sd * 100
}
