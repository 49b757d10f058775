package feed

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "fno-signals/internal/errors"
	"fno-signals/internal/store"
)

func TestLoadFile(t *testing.T) {
	b, err := LoadFile(filepath.Join("testdata", "nifty.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "NIFTY", b.Instrument.Symbol)
	assert.True(t, b.Instrument.IsIndex)
	assert.Equal(t, "NSE", string(b.Instrument.Exchange))
	require.Len(t, b.Bars, 2)
	assert.True(t, b.Bars[0].Timestamp.Before(b.Bars[1].Timestamp), "bars are sorted")
	require.Len(t, b.Chains, 2)
	assert.Equal(t, "NIFTY", b.Chains[0].Symbol)
	assert.Equal(t, "2024-01-25", b.Chains[0].ExpiryKey())
	assert.Len(t, b.Chains[0].Strikes, 4)
	require.Len(t, b.Futures, 1)
	assert.Equal(t, "NIFTY", b.Futures[0].Symbol)
	require.NotNil(t, b.PrevDay)
	assert.Equal(t, 18080.0, b.PrevDay.High)
	assert.Equal(t, time.Date(2024, 1, 18, 9, 20, 0, 0, time.UTC), b.LastCapture().UTC())
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "instrument: {symbol: NIFTY}\nbarz: []\n"},
		{"missing symbol", "bars:\n  - {timestamp: 2024-01-18T09:15:00Z, open: 1, high: 2, low: 1, close: 2}\n"},
		{"no data", "instrument: {symbol: NIFTY}\n"},
		{"inverted bar", "instrument: {symbol: NIFTY}\nbars:\n  - {timestamp: 2024-01-18T09:15:00Z, open: 1, high: 1, low: 2, close: 2}\n"},
		{"mismatched chain symbol", `
instrument: {symbol: NIFTY}
chains:
  - {symbol: BANKNIFTY, expiry: 2024-01-25, captured_at: 2024-01-18T09:20:00Z, strikes: [{strike: 18000, call_oi: 1, put_oi: 1}]}
`},
		{"duplicate strike", `
instrument: {symbol: NIFTY}
chains:
  - expiry: 2024-01-25
    captured_at: 2024-01-18T09:20:00Z
    strikes:
      - {strike: 18000, call_oi: 1, put_oi: 1}
      - {strike: 18000, call_oi: 2, put_oi: 2}
`},
		{"negative oi", `
instrument: {symbol: NIFTY}
chains:
  - {expiry: 2024-01-25, captured_at: 2024-01-18T09:20:00Z, strikes: [{strike: 18000, call_oi: -1, put_oi: 1}]}
`},
		{"futures without ltp", "instrument: {symbol: NIFTY}\nfutures:\n  - {captured_at: 2024-01-18T09:20:00Z}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestParse_EmptyBatchIsNotFound(t *testing.T) {
	_, err := Parse([]byte("instrument: {symbol: INFY}\n"))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrDataNotFound))
}

func TestBatch_Store(t *testing.T) {
	ds, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "feed.db"))
	require.NoError(t, err)
	defer ds.Close()
	ctx := context.Background()

	b, err := LoadFile(filepath.Join("testdata", "nifty.yaml"))
	require.NoError(t, err)

	sum, err := b.Store(ctx, ds)
	require.NoError(t, err)
	assert.Equal(t, Summary{Symbol: "NIFTY", Bars: 2, Chains: 2, Futures: 1}, sum)
	assert.Equal(t, "NIFTY: 2 bars, 2 chain snapshots, 1 futures snapshots", sum.String())

	symbols, err := ds.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"NIFTY"}, symbols)

	asOf := time.Date(2024, 1, 18, 9, 30, 0, 0, time.UTC)
	expiries, err := ds.LatestExpiries(ctx, "NIFTY", asOf)
	require.NoError(t, err)
	assert.Len(t, expiries, 2)

	bars, err := ds.GetCandles(ctx, "NIFTY", DefaultTimeframe, asOf.Add(-time.Hour), asOf)
	require.NoError(t, err)
	assert.Len(t, bars, 2)

	days, err := ds.GetCandles(ctx, "NIFTY", DailyTimeframe, asOf.AddDate(0, 0, -5), asOf)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, 18010.0, days[0].Close)

	fut, err := ds.LatestFutures(ctx, "NIFTY", asOf)
	require.NoError(t, err)
	require.NotNil(t, fut)
	assert.Equal(t, 18120.0, fut.LTP)

	assert.True(t, ds.GetLastSync(store.SyncKey(store.FeedChain, "NIFTY")).Equal(asOf.Add(-10*time.Minute)))
}
