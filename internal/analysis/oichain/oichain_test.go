package oichain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fno-signals/internal/analysis"
	apperrors "fno-signals/internal/errors"
	"fno-signals/internal/models"
)

var (
	expiry        = time.Date(2024, 3, 28, 0, 0, 0, 0, time.UTC)
	captureStart  = time.Date(2024, 3, 4, 9, 20, 0, 0, time.UTC)
	intradayStock = analysis.ProfileKey{Mode: analysis.Intraday, Class: analysis.Stock}
)

func profile() Profile {
	return DefaultProfiles()[intradayStock]
}

func chain(spot float64, rows ...models.StrikeRow) *models.ChainSnapshot {
	return &models.ChainSnapshot{
		Symbol:     "NIFTY",
		Expiry:     expiry,
		CapturedAt: captureStart,
		SpotPrice:  spot,
		Strikes:    rows,
	}
}

func stateWith(chains ...*models.ChainSnapshot) *analysis.InstrumentState {
	st := analysis.NewInstrumentState("NIFTY", analysis.Index, analysis.Intraday, analysis.DefaultHistoryConfig())
	st.OptionsEnabled = true
	st.Options = &analysis.OptionsContext{Expiries: chains}
	return st
}

func only(t *testing.T, st *analysis.InstrumentState, sentiment analysis.Sentiment, analysisType string) analysis.Payload {
	t.Helper()
	sigs := st.Bucket.Get(sentiment, analysisType)
	require.Len(t, sigs, 1)
	return sigs[0].Payload
}

func TestRatio(t *testing.T) {
	r, ok := NewRatio(120000, 20000)
	require.True(t, ok)
	assert.True(t, r.IsFinite())
	assert.Equal(t, 6.0, r.Value)
	assert.True(t, r.AtLeast(3))

	r, ok = NewRatio(5, 0)
	require.True(t, ok)
	assert.Equal(t, Unbounded, r.Kind)
	assert.True(t, r.AtLeast(1e12))
	assert.Equal(t, "unbounded", r.String())

	r, ok = NewRatio(5, -3)
	require.True(t, ok)
	assert.False(t, r.IsFinite())

	_, ok = NewRatio(0, 10)
	assert.False(t, ok)

	out, err := json.Marshal(Ratio{Kind: Unbounded})
	require.NoError(t, err)
	assert.Equal(t, `"unbounded"`, string(out))
}

func TestDefaultProfilesAreValid(t *testing.T) {
	for _, key := range analysis.AllProfileKeys() {
		p, ok := DefaultProfiles()[key]
		require.True(t, ok, key.String())
		assert.NoError(t, p.Validate(), key.String())
	}
}

func TestSupportResistance_ResistanceBreach(t *testing.T) {
	c := chain(18250,
		models.StrikeRow{Strike: 18200, CallOI: 50000},
		models.StrikeRow{Strike: 18300, CallOI: 5000},
		models.StrikeRow{Strike: 18400, CallOI: 5000},
	)
	p := profile()
	p.DominanceFactor = 2.5

	st := stateWith(c)
	fired, err := DetectSupportResistance(st, p)
	require.NoError(t, err)
	assert.True(t, fired)

	sig := only(t, st, analysis.Bullish, analysis.TypeOISupportResistance).(BreachSignal)
	assert.Equal(t, "RESISTANCE", sig.Kind)
	assert.Equal(t, 18200.0, sig.Level.Strike)
	assert.Equal(t, 20000.0, sig.Level.SideMean)
	assert.InDelta(t, 0.27, sig.DistancePct, 0.005)
	assert.False(t, st.Bucket.Has(analysis.Neutral, analysis.TypeOIRange))
}

func TestSupportResistance_WeakLevelSkipped(t *testing.T) {
	c := chain(18250,
		models.StrikeRow{Strike: 18200, CallOI: 50000},
		models.StrikeRow{Strike: 18300, CallOI: 5000},
		models.StrikeRow{Strike: 18400, CallOI: 5000},
	)
	p := profile()
	p.DominanceFactor = 2.6

	st := stateWith(c)
	fired, err := DetectSupportResistance(st, p)
	require.NoError(t, err)
	assert.False(t, fired)
	assert.True(t, st.Bucket.IsEmpty())
}

func TestSupportResistance_RangeAndSupportBreach(t *testing.T) {
	rows := []models.StrikeRow{
		{Strike: 17900, PutOI: 60000, CallOI: 2000},
		{Strike: 18000, PutOI: 5000, CallOI: 4000},
		{Strike: 18100, PutOI: 5000, CallOI: 5000},
		{Strike: 18200, PutOI: 2000, CallOI: 60000},
	}

	st := stateWith(chain(18050, rows...))
	fired, err := DetectSupportResistance(st, profile())
	require.NoError(t, err)
	assert.True(t, fired)
	rng := only(t, st, analysis.Neutral, analysis.TypeOIRange).(RangeSignal)
	require.NotNil(t, rng.Support)
	require.NotNil(t, rng.Resistance)
	assert.Equal(t, 17900.0, rng.Support.Strike)
	assert.Equal(t, 18200.0, rng.Resistance.Strike)

	st = stateWith(chain(17850, rows...))
	_, err = DetectSupportResistance(st, profile())
	require.NoError(t, err)
	sig := only(t, st, analysis.Bearish, analysis.TypeOISupportResistance).(BreachSignal)
	assert.Equal(t, "SUPPORT", sig.Kind)
	assert.Less(t, sig.DistancePct, 0.0)
}

func TestSnapshotDetectors_NoChainIsUnavailable(t *testing.T) {
	st := stateWith()
	for _, d := range Detectors()[:4] {
		_, err := d.Run(st, profile())
		assert.True(t, apperrors.IsUnavailable(err), d.Name)
	}

	st = stateWith(chain(18000))
	_, err := DetectWalls(st, profile())
	assert.True(t, apperrors.IsUnavailable(err))
}

// buildupChain has three call strikes each adding callAdd and one put
// strike adding putAdd, all within the band around 18000.
func buildupChain(callAdd, putAdd int64) *models.ChainSnapshot {
	return chain(18000,
		models.StrikeRow{Strike: 17900, PrevCallOI: 100000, CallOI: 100000 + callAdd, PrevPutOI: 100000, PutOI: 100000 + putAdd},
		models.StrikeRow{Strike: 18000, PrevCallOI: 100000, CallOI: 100000 + callAdd, PrevPutOI: 100000, PutOI: 100000},
		models.StrikeRow{Strike: 18100, PrevCallOI: 100000, CallOI: 100000 + callAdd, PrevPutOI: 100000, PutOI: 100000},
	)
}

func TestBuildup_HeavyCallWriting(t *testing.T) {
	st := stateWith(buildupChain(40000, 20000))
	fired, err := DetectBuildup(st, profile())
	require.NoError(t, err)
	assert.True(t, fired)

	sig := only(t, st, analysis.Bearish, analysis.TypeOIHeavyWriting).(BuildupSignal)
	assert.Equal(t, "CALL", sig.Side)
	assert.Equal(t, int64(120000), sig.CallChange)
	assert.Equal(t, int64(20000), sig.PutChange)
	assert.Equal(t, 6.0, sig.Ratio.Value)
	assert.Equal(t, 3, sig.QualifyingCalls)
}

func TestBuildup_UnboundedRatio(t *testing.T) {
	st := stateWith(buildupChain(40000, -10000))
	_, err := DetectBuildup(st, profile())
	require.NoError(t, err)
	sig := only(t, st, analysis.Bearish, analysis.TypeOIHeavyWriting).(BuildupSignal)
	assert.Equal(t, Unbounded, sig.Ratio.Kind)
}

func TestBuildup_DominantWriting(t *testing.T) {
	// Ratio 2 clears the dominant threshold but not the heavy one.
	st := stateWith(buildupChain(20000, 30000))
	_, err := DetectBuildup(st, profile())
	require.NoError(t, err)
	sig := only(t, st, analysis.Bearish, analysis.TypeOIDominantWriting).(BuildupSignal)
	assert.Equal(t, "DOMINANT", sig.Strength)
	assert.InDelta(t, 2.0, sig.Ratio.Value, 1e-9)
	assert.False(t, st.Bucket.Has(analysis.Bearish, analysis.TypeOIHeavyWriting))
}

func TestBuildup_HeavyNeedsQualifyingStrikes(t *testing.T) {
	p := profile()
	p.MinQualifyingStrikes = 4
	st := stateWith(buildupChain(40000, 20000))
	_, err := DetectBuildup(st, p)
	require.NoError(t, err)
	assert.False(t, st.Bucket.Has(analysis.Bearish, analysis.TypeOIHeavyWriting))
	assert.True(t, st.Bucket.Has(analysis.Bearish, analysis.TypeOIDominantWriting))
}

func TestBuildup_TotalChangeGate(t *testing.T) {
	p := profile()
	p.MinTotalChangePct = 50
	st := stateWith(buildupChain(40000, 20000))
	fired, err := DetectBuildup(st, p)
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestBuildup_PutWriting(t *testing.T) {
	c := chain(18000,
		models.StrikeRow{Strike: 17900, PrevCallOI: 100000, CallOI: 105000, PrevPutOI: 100000, PutOI: 150000},
		models.StrikeRow{Strike: 18000, PrevCallOI: 100000, CallOI: 100000, PrevPutOI: 100000, PutOI: 150000},
		models.StrikeRow{Strike: 18100, PrevCallOI: 100000, CallOI: 100000, PrevPutOI: 0, PutOI: 50000},
	)
	st := stateWith(c)
	_, err := DetectBuildup(st, profile())
	require.NoError(t, err)
	sig := only(t, st, analysis.Bullish, analysis.TypeOIHeavyWriting).(BuildupSignal)
	assert.Equal(t, "PUT", sig.Side)
	assert.Equal(t, 3, sig.QualifyingPuts)
}

// wallChain puts a call outlier at 18100 and a put outlier at 17800 on a
// seven strike ladder.
func wallChain(spot float64, withPutWall bool) *models.ChainSnapshot {
	var rows []models.StrikeRow
	for s := 17700.0; s <= 18300; s += 100 {
		r := models.StrikeRow{Strike: s, CallOI: 10000, PutOI: 10000}
		if s == 18100 {
			r.CallOI = 100000
		}
		if withPutWall && s == 17800 {
			r.PutOI = 100000
		}
		rows = append(rows, r)
	}
	return chain(spot, rows...)
}

func TestWalls_LoneCallWall(t *testing.T) {
	st := stateWith(wallChain(18000, false))
	fired, err := DetectWalls(st, profile())
	require.NoError(t, err)
	assert.True(t, fired)
	sig := only(t, st, analysis.Bearish, analysis.TypeOIWall).(WallSignal)
	require.NotNil(t, sig.CallWall)
	assert.Nil(t, sig.PutWall)
	assert.Equal(t, 18100.0, sig.CallWall.Strike)
}

func TestWalls_EqualDistanceIsBalanced(t *testing.T) {
	st := stateWith(wallChain(17950, true))
	fired, err := DetectWalls(st, profile())
	require.NoError(t, err)
	assert.False(t, fired)
	assert.True(t, st.Bucket.IsEmpty())
}

func TestWalls_AsymmetryJustAboveThreshold(t *testing.T) {
	// Call wall 119 away, put wall 181 away: ratio 1.52 against 1.5.
	st := stateWith(wallChain(17981, true))
	fired, err := DetectWalls(st, profile())
	require.NoError(t, err)
	assert.True(t, fired)
	sig := only(t, st, analysis.Bearish, analysis.TypeOIWall).(WallSignal)
	assert.Equal(t, "CALL", sig.Nearer)
	require.NotNil(t, sig.Asymmetry)
	assert.InDelta(t, 181.0/119.0, sig.Asymmetry.Value, 1e-9)

	// Mirror: put wall nearer is bullish.
	st = stateWith(wallChain(17910, true))
	_, err = DetectWalls(st, profile())
	require.NoError(t, err)
	assert.True(t, st.Bucket.Has(analysis.Bullish, analysis.TypeOIWall))
}

func TestWalls_OutsideWindowIgnored(t *testing.T) {
	p := profile()
	p.WallMaxDistancePct = 0.1
	st := stateWith(wallChain(18000, false))
	fired, err := DetectWalls(st, p)
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestWeightedCenter(t *testing.T) {
	center, added, ok := WeightedCenter([]float64{18000, 18200, 18400}, []int64{100, 300, -500})
	require.True(t, ok)
	assert.Equal(t, 18150.0, center)
	assert.Equal(t, int64(400), added)

	_, _, ok = WeightedCenter([]float64{18000}, []int64{-10})
	assert.False(t, ok)
}

func TestShift_Patterns(t *testing.T) {
	tests := []struct {
		name      string
		rows      []models.StrikeRow
		sentiment analysis.Sentiment
		pattern   string
	}{
		{
			name: "calls written below spot",
			rows: []models.StrikeRow{
				{Strike: 17700, PrevPutOI: 1000, PutOI: 6000},
				{Strike: 17800, PrevCallOI: 1000, CallOI: 51000},
			},
			sentiment: analysis.Bearish,
			pattern:   PatternCallsBelowSpot,
		},
		{
			name: "puts written above spot",
			rows: []models.StrikeRow{
				{Strike: 18300, PrevPutOI: 1000, PutOI: 41000},
				{Strike: 18400, PrevCallOI: 1000, CallOI: 21000},
			},
			sentiment: analysis.Bullish,
			pattern:   PatternPutsAboveSpot,
		},
		{
			name: "call pressure near price",
			rows: []models.StrikeRow{
				{Strike: 18000, PrevCallOI: 1000, CallOI: 51000, PrevPutOI: 1000, PutOI: 11000},
			},
			sentiment: analysis.Bearish,
			pattern:   PatternCallPressure,
		},
		{
			name: "put pressure near price",
			rows: []models.StrikeRow{
				{Strike: 18000, PrevCallOI: 1000, CallOI: 6000, PrevPutOI: 1000, PutOI: 31000},
			},
			sentiment: analysis.Bullish,
			pattern:   PatternPutPressure,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := stateWith(chain(18000, tt.rows...))
			fired, err := DetectShift(st, profile())
			require.NoError(t, err)
			assert.True(t, fired)
			sig := only(t, st, tt.sentiment, analysis.TypeOIShift).(ShiftSignal)
			assert.Equal(t, tt.pattern, sig.Pattern)
		})
	}
}

func TestShift_BalancedIsSilent(t *testing.T) {
	st := stateWith(chain(18000,
		models.StrikeRow{Strike: 18000, PrevCallOI: 1000, CallOI: 11000, PrevPutOI: 1000, PutOI: 12000},
	))
	fired, err := DetectShift(st, profile())
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestSnapshotDetectors_ScanBothExpiries(t *testing.T) {
	p := profile()
	p.Expiries = 2
	near := buildupChain(40000, 20000)
	next := buildupChain(40000, 20000)
	next.Expiry = expiry.AddDate(0, 1, 0)

	st := stateWith(near, next)
	_, err := DetectBuildup(st, p)
	require.NoError(t, err)
	sigs := st.Bucket.Get(analysis.Bearish, analysis.TypeOIHeavyWriting)
	require.Len(t, sigs, 2)
	assert.Equal(t, "2024-03-28", sigs[0].Payload.(BuildupSignal).Expiry)
	assert.Equal(t, "2024-04-28", sigs[1].Payload.(BuildupSignal).Expiry)
	assert.Equal(t, 1, st.Bucket.TrendCount())
}
