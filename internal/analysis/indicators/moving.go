package indicators

import (
	"fmt"

	"fno-signals/internal/models"
)

// SMA is a simple moving average of closes.
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

func (s *SMA) Calculate(candles []models.Candle) ([]float64, error) {
	if s.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < s.period {
		return nil, ErrInsufficientData
	}
	closes := closePrices(candles)
	result := make([]float64, len(candles))
	for i := s.period - 1; i < len(candles); i++ {
		result[i] = Mean(closes[i-s.period+1 : i+1])
	}
	return result, nil
}

// EMA is an exponential moving average of closes seeded with the SMA.
type EMA struct {
	period int
}

// NewEMA creates a new EMA indicator.
func NewEMA(period int) *EMA {
	return &EMA{period: period}
}

func (e *EMA) Name() string {
	return fmt.Sprintf("EMA_%d", e.period)
}

func (e *EMA) Period() int {
	return e.period
}

func (e *EMA) Calculate(candles []models.Candle) ([]float64, error) {
	if e.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < e.period {
		return nil, ErrInsufficientData
	}
	return EMAValues(closePrices(candles), e.period), nil
}

// EMAValues computes an EMA over raw values. It returns nil when the values
// do not cover one period.
func EMAValues(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	result := make([]float64, len(values))
	k := 2.0 / float64(period+1)
	result[period-1] = Mean(values[:period])
	for i := period; i < len(values); i++ {
		result[i] = (values[i]-result[i-1])*k + result[i-1]
	}
	return result
}

// MACD is the fast/slow EMA spread with its signal line.
type MACD struct {
	fast, slow, signal int
}

// NewMACD creates a MACD indicator, conventionally (12, 26, 9).
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{fast: fast, slow: slow, signal: signal}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD_%d_%d_%d", m.fast, m.slow, m.signal)
}

// Period is the number of candles before the histogram is defined.
func (m *MACD) Period() int {
	return m.slow + m.signal - 1
}

// Calculate returns the "macd", "signal" and "histogram" series.
func (m *MACD) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if m.fast <= 0 || m.slow <= 0 || m.signal <= 0 || m.fast >= m.slow {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < m.Period() {
		return nil, ErrInsufficientData
	}

	n := len(candles)
	closes := closePrices(candles)
	fastEMA := EMAValues(closes, m.fast)
	slowEMA := EMAValues(closes, m.slow)

	start := m.slow - 1
	line := make([]float64, n)
	for i := start; i < n; i++ {
		line[i] = fastEMA[i] - slowEMA[i]
	}

	signal := make([]float64, n)
	for i, v := range EMAValues(line[start:], m.signal) {
		signal[start+i] = v
	}

	histogram := make([]float64, n)
	for i := m.Period() - 1; i < n; i++ {
		histogram[i] = line[i] - signal[i]
	}

	return map[string][]float64{
		"macd":      line,
		"signal":    signal,
		"histogram": histogram,
	}, nil
}
