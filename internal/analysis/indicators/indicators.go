// Package indicators provides the price and volume calculations the
// technical detectors read. Every indicator returns a series aligned with
// the input candles; positions before the warm-up period are zero.
package indicators

import (
	"errors"
	"math"

	"fno-signals/internal/models"
)

var (
	// ErrInsufficientData is returned when there's not enough data for calculation.
	ErrInsufficientData = errors.New("insufficient data for calculation")
	// ErrInvalidPeriod is returned when the period is invalid.
	ErrInvalidPeriod = errors.New("invalid period")
)

// Indicator is a single-series indicator.
type Indicator interface {
	Name() string
	Calculate(candles []models.Candle) ([]float64, error)
	Period() int
}

// MultiValueIndicator is an indicator producing several named series.
type MultiValueIndicator interface {
	Name() string
	Calculate(candles []models.Candle) (map[string][]float64, error)
	Period() int
}

// Sum returns the sum of values.
func Sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// StdDev returns the population standard deviation.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := Mean(values)
	var variance float64
	for _, v := range values {
		diff := v - m
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(values)))
}

// Last returns the final n values of a series, or nil if it is shorter.
func Last(series []float64, n int) []float64 {
	if n <= 0 || len(series) < n {
		return nil
	}
	return series[len(series)-n:]
}

func trueRange(current, previous models.Candle) float64 {
	return math.Max(current.High-current.Low,
		math.Max(math.Abs(current.High-previous.Close), math.Abs(current.Low-previous.Close)))
}

func closePrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Close
	}
	return prices
}
