package store

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"fno-signals/internal/models"
)

var symbolSeq atomic.Int64

func uniqueSymbol(base string) string {
	return fmt.Sprintf("%s_%d", base, symbolSeq.Add(1))
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "signals.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Property: saving bars and reading them back over their own time range
// returns the same bars in order.
func TestProperty_CandleRoundTripConsistency(t *testing.T) {
	store := newTestStore(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	symbols := []string{"NIFTY", "BANKNIFTY", "RELIANCE", "TCS", "INFY", "SBIN"}
	timeframeGen := gen.OneConstOf("1min", "5min", "15min", "1day")

	properties.Property("save then retrieve produces equivalent bars", prop.ForAll(
		func(symbolIdx int, timeframe string, count int, basePrice float64, baseVolume int64) bool {
			ctx := context.Background()
			symbol := uniqueSymbol(symbols[symbolIdx%len(symbols)])

			candles := generateTestCandles(count, basePrice, baseVolume)
			if err := store.SaveCandles(ctx, symbol, timeframe, candles); err != nil {
				t.Logf("Failed to save candles: %v", err)
				return false
			}

			from := candles[0].Timestamp.Add(-time.Second)
			to := candles[len(candles)-1].Timestamp.Add(time.Second)
			retrieved, err := store.GetCandles(ctx, symbol, timeframe, from, to)
			if err != nil {
				t.Logf("Failed to get candles: %v", err)
				return false
			}
			if len(retrieved) != len(candles) {
				t.Logf("Count mismatch: expected %d, got %d", len(candles), len(retrieved))
				return false
			}
			for i, orig := range candles {
				if !candlesEqual(orig, retrieved[i]) {
					t.Logf("Candle mismatch at index %d: original=%+v, retrieved=%+v", i, orig, retrieved[i])
					return false
				}
			}
			return true
		},
		gen.IntRange(0, len(symbols)-1),
		timeframeGen,
		gen.IntRange(1, 20),
		gen.Float64Range(100.0, 25000.0),
		gen.Int64Range(1000, 1000000),
	))

	properties.Property("saving an empty slice succeeds", prop.ForAll(
		func(timeframe string) bool {
			return store.SaveCandles(context.Background(), uniqueSymbol("EMPTY"), timeframe, []models.Candle{}) == nil
		},
		timeframeGen,
	))

	properties.TestingRun(t)
}

// Property: a chain capture read back by expiry carries the same strikes
// and the same effective PCR.
func TestProperty_ChainSnapshotRoundTrip(t *testing.T) {
	store := newTestStore(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("save then retrieve keeps strikes and PCR", prop.ForAll(
		func(strikes int, baseOI int64, skew float64) bool {
			ctx := context.Background()
			snap := generateTestChain(uniqueSymbol("NIFTY"), strikes, baseOI, skew)
			if err := store.SaveChainSnapshot(ctx, snap); err != nil {
				t.Logf("Failed to save chain: %v", err)
				return false
			}

			got, err := store.GetChainSnapshots(ctx, snap.Symbol, snap.Expiry,
				snap.CapturedAt.Add(-time.Minute), snap.CapturedAt.Add(time.Minute))
			if err != nil || len(got) != 1 {
				t.Logf("Unexpected read: %v, %d rows", err, len(got))
				return false
			}
			back := got[0]
			if len(back.Strikes) != len(snap.Strikes) {
				return false
			}
			for i := range snap.Strikes {
				if back.Strikes[i] != snap.Strikes[i] {
					return false
				}
			}
			return floatEqual(back.EffectivePCR(), snap.EffectivePCR(), 1e-9) &&
				back.CapturedAt.Equal(snap.CapturedAt) &&
				back.ExpiryKey() == snap.ExpiryKey()
		},
		gen.IntRange(1, 30),
		gen.Int64Range(1000, 5000000),
		gen.Float64Range(0.2, 3.0),
	))

	properties.TestingRun(t)
}

// generateTestCandles creates candles with valid OHLC relationships.
func generateTestCandles(count int, basePrice float64, baseVolume int64) []models.Candle {
	candles := make([]models.Candle, count)
	baseTime := time.Date(2024, 1, 1, 9, 15, 0, 0, time.UTC)

	for i := 0; i < count; i++ {
		variation := float64(i%10) * 0.01 * basePrice
		open := basePrice + variation
		lastClose := basePrice + variation*0.5

		high := math.Max(open, lastClose) * 1.01
		low := math.Min(open, lastClose) * 0.99

		candles[i] = models.Candle{
			Timestamp: baseTime.Add(time.Duration(i) * time.Minute),
			Open:      roundToDecimal(open, 2),
			High:      roundToDecimal(high, 2),
			Low:       roundToDecimal(low, 2),
			Close:     roundToDecimal(lastClose, 2),
			Volume:    baseVolume + int64(i*1000),
		}
	}

	return candles
}

// generateTestChain builds a ladder of strikes 50 points apart around 18000
// with put OI scaled by skew.
func generateTestChain(symbol string, strikes int, baseOI int64, skew float64) *models.ChainSnapshot {
	snap := &models.ChainSnapshot{
		Symbol:     symbol,
		Expiry:     time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC),
		CapturedAt: time.Date(2024, 1, 18, 10, 30, 0, 0, time.UTC),
		SpotPrice:  18000,
		ATMStrike:  18000,
	}
	for i := 0; i < strikes; i++ {
		callOI := baseOI + int64(i)*100
		snap.Strikes = append(snap.Strikes, models.StrikeRow{
			Strike:     17500 + float64(i)*50,
			CallOI:     callOI,
			PutOI:      int64(float64(callOI) * skew),
			PrevCallOI: callOI / 2,
			PrevPutOI:  callOI / 3,
		})
	}
	return snap
}

func roundToDecimal(val float64, places int) float64 {
	multiplier := math.Pow(10, float64(places))
	return math.Round(val*multiplier) / multiplier
}

// candlesEqual compares two candles for equality with floating point tolerance.
func candlesEqual(a, b models.Candle) bool {
	const tolerance = 0.01

	if !a.Timestamp.Equal(b.Timestamp) {
		return false
	}
	return floatEqual(a.Open, b.Open, tolerance) &&
		floatEqual(a.High, b.High, tolerance) &&
		floatEqual(a.Low, b.Low, tolerance) &&
		floatEqual(a.Close, b.Close, tolerance) &&
		a.Volume == b.Volume
}

func floatEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}
