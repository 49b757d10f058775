package indicators

import (
	"fmt"

	"fno-signals/internal/models"
)

// VolumeRatio compares each bar's volume with the average of the preceding
// period bars.
type VolumeRatio struct {
	period int
}

// NewVolumeRatio creates a new volume ratio indicator.
func NewVolumeRatio(period int) *VolumeRatio {
	return &VolumeRatio{period: period}
}

func (v *VolumeRatio) Name() string {
	return fmt.Sprintf("VolumeRatio_%d", v.period)
}

func (v *VolumeRatio) Period() int {
	return v.period + 1
}

func (v *VolumeRatio) Calculate(candles []models.Candle) ([]float64, error) {
	if v.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < v.Period() {
		return nil, ErrInsufficientData
	}

	vols := make([]float64, len(candles))
	for i, c := range candles {
		vols[i] = float64(c.Volume)
	}

	result := make([]float64, len(candles))
	for i := v.period; i < len(candles); i++ {
		avg := Mean(vols[i-v.period : i])
		if avg > 0 {
			result[i] = vols[i] / avg
		}
	}
	return result, nil
}
