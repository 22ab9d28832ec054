package indicators

import (
	"marketminds/internal/models"
)

// Levels holds the support and resistance of a price window.
type Levels struct {
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
}

// SupportResistance returns the lowest low and the highest high of the window.
func SupportResistance(candles []models.Candle) (Levels, error) {
	if len(candles) == 0 {
		return Levels{}, ErrInsufficientData
	}
	return Levels{
		Support:    lowest(lowPrices(candles)),
		Resistance: highest(highPrices(candles)),
	}, nil
}
