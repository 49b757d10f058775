package indicators

import (
	"fmt"

	"fno-signals/internal/models"
)

// RSI is the Relative Strength Index with Wilder smoothing.
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

func (r *RSI) Calculate(candles []models.Candle) ([]float64, error) {
	if r.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < r.period+1 {
		return nil, ErrInsufficientData
	}

	n := len(candles)
	closes := closePrices(candles)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		if change := closes[i] - closes[i-1]; change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	result := make([]float64, n)
	avgGain := Mean(gains[1 : r.period+1])
	avgLoss := Mean(losses[1 : r.period+1])
	result[r.period] = rsiValue(avgGain, avgLoss)

	p := float64(r.period)
	for i := r.period + 1; i < n; i++ {
		avgGain = (avgGain*(p-1) + gains[i]) / p
		avgLoss = (avgLoss*(p-1) + losses[i]) / p
		result[i] = rsiValue(avgGain, avgLoss)
	}
	return result, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}
