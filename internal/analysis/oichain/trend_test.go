package oichain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fno-signals/internal/analysis"
	apperrors "fno-signals/internal/errors"
	"fno-signals/internal/models"
)

// totalsState fills the history with one single-strike snapshot per pair
// of call and put totals, five minutes apart.
func totalsState(calls, puts []int64) *analysis.InstrumentState {
	st := stateWith()
	for i := range calls {
		st.History.Append(models.ChainSnapshot{
			Symbol:     "NIFTY",
			Expiry:     expiry,
			CapturedAt: captureStart.Add(time.Duration(i) * 5 * time.Minute),
			SpotPrice:  18000,
			Strikes:    []models.StrikeRow{{Strike: 18000, CallOI: calls[i], PutOI: puts[i]}},
		})
	}
	return st
}

func flat(n int, v int64) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestMostlyDirection(t *testing.T) {
	assert.Equal(t, DirRising, MostlyDirection([]float64{1, 2, 3, 4}))
	assert.Equal(t, DirRising, MostlyDirection([]float64{1, 2, 1.5, 3, 4}))
	assert.Equal(t, DirFlat, MostlyDirection([]float64{1, 2, 1.5, 3, 2.5, 4}))
	assert.Equal(t, DirFalling, MostlyDirection([]float64{4, 3, 3, 1}))
	assert.Equal(t, DirFlat, MostlyDirection([]float64{1, 1, 1}))
	assert.Equal(t, DirFlat, MostlyDirection([]float64{1}))
}

func TestIntradayTrend_Patterns(t *testing.T) {
	tests := []struct {
		name      string
		calls     []int64
		puts      []int64
		sentiment analysis.Sentiment
		pattern   string
	}{
		{
			name:      "call writing",
			calls:     []int64{100000, 105000, 110000, 115000, 120000, 130000},
			puts:      flat(6, 100000),
			sentiment: analysis.Bearish,
			pattern:   PatternCallWriting,
		},
		{
			name:      "put writing",
			calls:     flat(6, 100000),
			puts:      []int64{100000, 104000, 108000, 112000, 116000, 120000},
			sentiment: analysis.Bullish,
			pattern:   PatternPutWriting,
		},
		{
			name:      "unwinding",
			calls:     []int64{130000, 124000, 118000, 112000, 106000, 100000},
			puts:      []int64{130000, 124000, 118000, 112000, 106000, 100000},
			sentiment: analysis.Neutral,
			pattern:   PatternUnwinding,
		},
		{
			name:      "call surge without a PCR move",
			calls:     []int64{100000, 100800, 101600, 102400, 103200, 104000},
			puts:      flat(6, 100000),
			sentiment: analysis.Bearish,
			pattern:   PatternCallSurge,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := totalsState(tt.calls, tt.puts)
			fired, err := DetectIntradayTrend(st, profile())
			require.NoError(t, err)
			assert.True(t, fired)
			sig := only(t, st, tt.sentiment, analysis.TypeOIIntradayTrend).(IntradayTrendSignal)
			assert.Equal(t, tt.pattern, sig.Pattern)
			assert.Equal(t, 6, sig.Snapshots)
		})
	}
}

func TestIntradayTrend_UnwindingFlagsBreakoutRisk(t *testing.T) {
	st := totalsState([]int64{130000, 120000, 110000, 100000, 90000}, []int64{90000, 85000, 80000, 75000, 70000})
	_, err := DetectIntradayTrend(st, profile())
	require.NoError(t, err)
	sig := only(t, st, analysis.Neutral, analysis.TypeOIIntradayTrend).(IntradayTrendSignal)
	assert.True(t, sig.BreakoutRisk)
}

func TestIntradayTrend_WindowKeepsLatest(t *testing.T) {
	calls := []int64{500000, 100000, 105000, 110000, 115000, 120000, 130000}
	st := totalsState(calls, flat(len(calls), 100000))
	_, err := DetectIntradayTrend(st, profile())
	require.NoError(t, err)
	sig := only(t, st, analysis.Bearish, analysis.TypeOIIntradayTrend).(IntradayTrendSignal)
	assert.Equal(t, 100000.0, sig.CallOI.First)
}

func TestIntradayTrend_NeedsSnapshots(t *testing.T) {
	st := totalsState(flat(4, 100000), flat(4, 100000))
	_, err := DetectIntradayTrend(st, profile())
	assert.True(t, apperrors.IsUnavailable(err))
}

// levelState builds S/R history where resistance[i] carries the call
// maximum and support[i] the put maximum on a 17800-18400 ladder.
func levelState(resistance, support []float64) *analysis.InstrumentState {
	st := stateWith()
	for i := range resistance {
		var rows []models.StrikeRow
		for s := 17800.0; s <= 18400; s += 100 {
			r := models.StrikeRow{Strike: s, CallOI: 1000, PutOI: 1000}
			if s == resistance[i] {
				r.CallOI = 50000
			}
			if s == support[i] {
				r.PutOI = 50000
			}
			rows = append(rows, r)
		}
		st.History.Append(models.ChainSnapshot{
			Symbol:     "NIFTY",
			Expiry:     expiry,
			CapturedAt: captureStart.Add(time.Duration(i) * 5 * time.Minute),
			SpotPrice:  18050,
			Strikes:    rows,
		})
	}
	return st
}

func TestSRShift_Narratives(t *testing.T) {
	tests := []struct {
		name       string
		resistance []float64
		support    []float64
		sentiment  analysis.Sentiment
		narrative  string
	}{
		{"both up", []float64{18100, 18200, 18200, 18300}, []float64{17900, 17900, 18000, 18000}, analysis.Bullish, NarrativeBothUp},
		{"both down", []float64{18300, 18200, 18200, 18100}, []float64{18000, 18000, 17900, 17900}, analysis.Bearish, NarrativeBothDown},
		{"squeeze", []float64{18300, 18200, 18200, 18100}, []float64{17900, 18000, 18000, 18000}, analysis.Neutral, NarrativeSqueeze},
		{"expansion", []float64{18100, 18200, 18200, 18300}, []float64{18000, 17900, 17900, 17800}, analysis.Neutral, NarrativeExpansion},
		{"one sided up", []float64{18200, 18200, 18200, 18200}, []float64{17900, 18000, 18000, 18100}, analysis.Bullish, NarrativeOneSidedUp},
		{"one sided down", []float64{18200, 18200, 18200, 18200}, []float64{18000, 17900, 17900, 17800}, analysis.Bearish, NarrativeOneSidedDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := levelState(tt.resistance, tt.support)
			fired, err := DetectSRShift(st, profile())
			require.NoError(t, err)
			assert.True(t, fired)
			sig := only(t, st, tt.sentiment, analysis.TypeOISRShift).(SRShiftSignal)
			assert.Equal(t, tt.narrative, sig.Narrative)
			assert.Equal(t, 100.0, sig.StrikeStep)
		})
	}
}

func TestLevelShift_FlatStepsDoNotDilute(t *testing.T) {
	ls := levelShift([]float64{18100, 18100, 18100, 18300}, 100, 1, 0.6)
	assert.Equal(t, 1.0, ls.Consistency)
	assert.Equal(t, 200.0, ls.Shift)
	assert.Equal(t, 2.0, ls.Steps)

	ls = levelShift([]float64{18100, 18300, 18200, 18200, 18400}, 100, 1, 0.6)
	assert.InDelta(t, 2.0/3.0, ls.Consistency, 1e-9)
	assert.Equal(t, 300.0, ls.Shift)

	ls = levelShift([]float64{18200, 18200, 18200}, 100, 1, 0.6)
	assert.Zero(t, ls.Shift)
	assert.Zero(t, ls.Consistency)
}

func TestSRShift_InconsistentMovesIgnored(t *testing.T) {
	st := levelState(
		[]float64{18000, 18400, 18300, 18200, 18100},
		[]float64{17900, 17900, 17900, 17900, 17900},
	)
	fired, err := DetectSRShift(st, profile())
	require.NoError(t, err)
	assert.False(t, fired)
	assert.True(t, st.Bucket.IsEmpty())
}

func TestSRShift_NeedsSnapshots(t *testing.T) {
	st := levelState([]float64{18100, 18200, 18300}, []float64{17900, 18000, 18100})
	_, err := DetectSRShift(st, profile())
	assert.True(t, apperrors.IsUnavailable(err))
}
