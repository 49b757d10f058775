package indicators

import (
	"fmt"

	"fno-signals/internal/models"
)

// ATR is the Average True Range with Wilder smoothing.
type ATR struct {
	period int
}

// NewATR creates a new ATR indicator.
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string {
	return fmt.Sprintf("ATR_%d", a.period)
}

func (a *ATR) Period() int {
	return a.period
}

func (a *ATR) Calculate(candles []models.Candle) ([]float64, error) {
	if a.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < a.period+1 {
		return nil, ErrInsufficientData
	}

	n := len(candles)
	tr := make([]float64, n)
	tr[0] = candles[0].High - candles[0].Low
	for i := 1; i < n; i++ {
		tr[i] = trueRange(candles[i], candles[i-1])
	}

	result := make([]float64, n)
	result[a.period-1] = Mean(tr[:a.period])
	p := float64(a.period)
	for i := a.period; i < n; i++ {
		result[i] = (result[i-1]*(p-1) + tr[i]) / p
	}
	return result, nil
}

// SuperTrend is the ATR band trend follower. Direction is +1 when price
// rides the lower band and -1 when it sits under the upper band.
type SuperTrend struct {
	atrPeriod  int
	multiplier float64
}

// NewSuperTrend creates a new SuperTrend indicator.
func NewSuperTrend(atrPeriod int, multiplier float64) *SuperTrend {
	return &SuperTrend{atrPeriod: atrPeriod, multiplier: multiplier}
}

func (s *SuperTrend) Name() string {
	return fmt.Sprintf("SuperTrend_%d_%.1f", s.atrPeriod, s.multiplier)
}

func (s *SuperTrend) Period() int {
	return s.atrPeriod + 1
}

// Calculate returns the "supertrend" and "direction" series.
func (s *SuperTrend) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if s.atrPeriod <= 0 || s.multiplier <= 0 {
		return nil, ErrInvalidPeriod
	}
	atr, err := NewATR(s.atrPeriod).Calculate(candles)
	if err != nil {
		return nil, err
	}

	n := len(candles)
	line := make([]float64, n)
	direction := make([]float64, n)
	upper := make([]float64, n)
	lower := make([]float64, n)

	first := s.atrPeriod - 1
	for i := first; i < n; i++ {
		mid := (candles[i].High + candles[i].Low) / 2
		upper[i] = mid + s.multiplier*atr[i]
		lower[i] = mid - s.multiplier*atr[i]

		if i == first {
			line[i] = upper[i]
			direction[i] = -1
			continue
		}

		// Bands only tighten while price stays on their side.
		if lower[i] < lower[i-1] && candles[i-1].Close > lower[i-1] {
			lower[i] = lower[i-1]
		}
		if upper[i] > upper[i-1] && candles[i-1].Close < upper[i-1] {
			upper[i] = upper[i-1]
		}

		if direction[i-1] < 0 {
			if candles[i].Close > upper[i] {
				line[i], direction[i] = lower[i], 1
			} else {
				line[i], direction[i] = upper[i], -1
			}
		} else {
			if candles[i].Close < lower[i] {
				line[i], direction[i] = upper[i], -1
			} else {
				line[i], direction[i] = lower[i], 1
			}
		}
	}

	return map[string][]float64{
		"supertrend": line,
		"direction":  direction,
	}, nil
}
