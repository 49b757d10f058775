package indicators

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fno-signals/internal/models"
)

var genStart = time.Date(2024, 1, 1, 9, 15, 0, 0, time.UTC)

// candleGen generates a candle with High >= max(Open, Close) and
// Low <= min(Open, Close).
func candleGen() gopter.Gen {
	return gen.Struct(reflect.TypeOf(models.Candle{}), map[string]gopter.Gen{
		"Open":   gen.Float64Range(100.0, 1000.0),
		"High":   gen.Float64Range(100.0, 1000.0),
		"Low":    gen.Float64Range(100.0, 1000.0),
		"Close":  gen.Float64Range(100.0, 1000.0),
		"Volume": gen.Int64Range(1000, 10000000),
	}).Map(func(c models.Candle) models.Candle {
		c.High = math.Max(c.High, math.Max(c.Open, c.Close))
		c.Low = math.Min(c.Low, math.Min(c.Open, c.Close))
		if c.High <= c.Low {
			c.High = c.Low + 1.0
		}
		return c
	})
}

func candleSliceGen(n int) gopter.Gen {
	return gen.SliceOfN(n, candleGen()).Map(func(candles []models.Candle) []models.Candle {
		for i := range candles {
			candles[i].Timestamp = genStart.Add(time.Duration(i) * 5 * time.Minute)
		}
		return candles
	})
}

func closesToCandles(closes ...float64) []models.Candle {
	candles := make([]models.Candle, len(closes))
	for i, c := range closes {
		candles[i] = models.Candle{
			Timestamp: genStart.Add(time.Duration(i) * time.Minute),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		}
	}
	return candles
}

func TestProperty_RSIWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("RSI values are within [0, 100]", prop.ForAll(
		func(candles []models.Candle) bool {
			rsi := NewRSI(14)
			values, err := rsi.Calculate(candles)
			if err != nil {
				return false
			}
			for i := rsi.Period(); i < len(values); i++ {
				if values[i] < 0 || values[i] > 100 {
					return false
				}
			}
			return true
		},
		candleSliceGen(40),
	))

	properties.TestingRun(t)
}

func TestProperty_ATRIsNonNegative(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("ATR values are non-negative", prop.ForAll(
		func(candles []models.Candle) bool {
			atr := NewATR(14)
			values, err := atr.Calculate(candles)
			if err != nil {
				return false
			}
			for i := atr.Period() - 1; i < len(values); i++ {
				if values[i] < 0 {
					return false
				}
			}
			return true
		},
		candleSliceGen(30),
	))

	properties.TestingRun(t)
}

func TestProperty_SuperTrendDirection(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("SuperTrend direction is always +1 or -1 after warm-up", prop.ForAll(
		func(candles []models.Candle) bool {
			st := NewSuperTrend(10, 3)
			out, err := st.Calculate(candles)
			if err != nil {
				return false
			}
			for i := 9; i < len(candles); i++ {
				d := out["direction"][i]
				if d != 1 && d != -1 {
					return false
				}
			}
			return true
		},
		candleSliceGen(30),
	))

	properties.TestingRun(t)
}

func TestProperty_SMAIsAverageOfCloses(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("last SMA equals the mean of the last closes", prop.ForAll(
		func(candles []models.Candle) bool {
			values, err := NewSMA(5).Calculate(candles)
			if err != nil {
				return false
			}
			want := Mean(Last(closePrices(candles), 5))
			return math.Abs(values[len(values)-1]-want) < 1e-9
		},
		candleSliceGen(12),
	))

	properties.TestingRun(t)
}

func TestRSI_RisingSeriesIsHundred(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	values, err := NewRSI(14).Calculate(closesToCandles(closes...))
	require.NoError(t, err)
	assert.Equal(t, 100.0, values[len(values)-1])
}

func TestRSI_InsufficientData(t *testing.T) {
	_, err := NewRSI(14).Calculate(closesToCandles(1, 2, 3))
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = NewRSI(0).Calculate(closesToCandles(1, 2, 3))
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestEMAValues_SeededWithSMA(t *testing.T) {
	values := EMAValues([]float64{1, 2, 3, 4}, 3)
	require.Len(t, values, 4)
	assert.Equal(t, 2.0, values[2])
	assert.InDelta(t, 3.0, values[3], 1e-9)
	assert.Nil(t, EMAValues([]float64{1}, 3))
}

func TestMACD_Series(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5
	}
	m := NewMACD(12, 26, 9)
	out, err := m.Calculate(closesToCandles(closes...))
	require.NoError(t, err)
	last := len(closes) - 1
	assert.Greater(t, out["macd"][last], 0.0)
	assert.InDelta(t, out["macd"][last]-out["signal"][last], out["histogram"][last], 1e-9)

	_, err = NewMACD(26, 12, 9).Calculate(closesToCandles(closes...))
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestVolumeRatio(t *testing.T) {
	candles := closesToCandles(10, 10, 10, 10)
	candles[3].Volume = 3000
	values, err := NewVolumeRatio(3).Calculate(candles)
	require.NoError(t, err)
	assert.Equal(t, 3.0, values[3])
}

func TestStdDev(t *testing.T) {
	assert.Equal(t, 0.0, StdDev(nil))
	assert.InDelta(t, 2.0, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
	assert.Equal(t, 20000.0, Mean([]float64{50000, 5000, 5000}))
}
