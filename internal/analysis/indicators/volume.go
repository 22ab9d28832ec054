package indicators

import (
	"marketminds/internal/models"
)

// Volume trend labels.
const (
	VolumeIncreasing = "increasing"
	VolumeDecreasing = "decreasing"
)

// VolumeChange calculates the period-over-period fractional volume change.
type VolumeChange struct{}

// NewVolumeChange creates a new VolumeChange indicator.
func NewVolumeChange() *VolumeChange {
	return &VolumeChange{}
}

func (v *VolumeChange) Name() string {
	return "VOLUME_CHANGE"
}

func (v *VolumeChange) Period() int {
	return 1
}

func (v *VolumeChange) Calculate(candles []models.Candle) ([]float64, error) {
	if len(candles) == 0 {
		return nil, ErrInsufficientData
	}
	return PctChange(Volumes(candles), 1), nil
}

// VolumeTrend is increasing iff the mean volume change is positive. Changes
// measured from a zero-volume session are skipped.
func VolumeTrend(changes []float64) string {
	if MeanFinite(changes) > 0 {
		return VolumeIncreasing
	}
	return VolumeDecreasing
}
