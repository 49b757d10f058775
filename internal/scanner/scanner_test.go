package scanner

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fno-signals/internal/analysis"
	"fno-signals/internal/analysis/detect"
	"fno-signals/internal/analysis/scoring"
	"fno-signals/internal/config"
	apperrors "fno-signals/internal/errors"
	"fno-signals/internal/models"
	"fno-signals/internal/store"
)

// 2024-01-18 is a Thursday; 09:20 UTC is 14:50 IST.
var capturedAt = time.Date(2024, 1, 18, 9, 20, 0, 0, time.UTC)

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	ds, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "scan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })
	return ds
}

func chainAt(symbol string, expiry, at time.Time, spot float64, callScale int64) *models.ChainSnapshot {
	snap := &models.ChainSnapshot{Symbol: symbol, Expiry: expiry, CapturedAt: at, SpotPrice: spot, ATMStrike: 18050}
	for i, strike := range []float64{17950, 18000, 18050, 18100, 18150} {
		snap.Strikes = append(snap.Strikes, models.StrikeRow{
			Strike:     strike,
			CallOI:     callScale * int64(60000+i*20000),
			PutOI:      int64(150000 - i*20000),
			PrevCallOI: callScale * int64(58000+i*18000),
			PrevPutOI:  int64(140000 - i*20000),
		})
	}
	return snap
}

// seed stores an index with two expiries, three captures on the near one,
// bars, the previous day and a futures capture showing long buildup.
func seed(t *testing.T, ds store.DataStore, symbol string, isIndex bool) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, ds.SaveInstrument(ctx, models.Instrument{Symbol: symbol, IsIndex: isIndex}))

	near := time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC)
	next := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := capturedAt.Add(time.Duration(i-2) * 15 * time.Minute)
		require.NoError(t, ds.SaveChainSnapshot(ctx, chainAt(symbol, near, at, 18040+float64(i)*5, 1)))
	}
	require.NoError(t, ds.SaveChainSnapshot(ctx, chainAt(symbol, next, capturedAt, 18050, 1)))

	var bars []models.Candle
	for i := 0; i < 40; i++ {
		c := 18000 + float64(i)
		bars = append(bars, models.Candle{
			Timestamp: capturedAt.Add(-time.Duration(40-i) * 5 * time.Minute),
			Open:      c - 2, High: c + 5, Low: c - 5, Close: c, Volume: 100000,
		})
	}
	require.NoError(t, ds.SaveCandles(ctx, symbol, "5min", bars))
	require.NoError(t, ds.SaveCandles(ctx, symbol, "1day", []models.Candle{{
		Timestamp: time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC),
		Open:      17950, High: 18080, Low: 17890, Close: 18010, Volume: 1000000,
	}}))
	require.NoError(t, ds.SaveFuturesSnapshot(ctx, &models.FuturesSnapshot{
		Symbol: symbol, Expiry: near, CapturedAt: capturedAt,
		LTP: 18120, PrevClose: 18000, OI: 11000000, PrevOI: 10000000, SpotPrice: 18050,
	}))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Thresholds = config.DefaultThresholds()
	return cfg
}

func TestStateBuilder_Build(t *testing.T) {
	ds := newStore(t)
	seed(t, ds, "NIFTY", true)
	b := NewStateBuilder(ds, DefaultBuilderConfig(analysis.DefaultHistoryConfig()), zerolog.Nop())

	st, err := b.Build(context.Background(), Job{Symbol: "NIFTY", Class: analysis.Index, Mode: analysis.Intraday, AsOf: capturedAt})
	require.NoError(t, err)

	assert.Len(t, st.Bars, 40)
	assert.Equal(t, 18080.0, st.PrevDay.High)
	require.NoError(t, st.Validate())
	require.Len(t, st.Options.Expiries, 2)
	assert.Equal(t, "2024-01-25", st.CurrentChain().ExpiryKey())
	assert.Equal(t, "2024-02-01", st.NextChain().ExpiryKey())
	assert.True(t, st.CurrentChain().CapturedAt.Equal(capturedAt))
	assert.Equal(t, 3, st.History.Len())
	assert.Len(t, st.Options.MaxPainHistory, 3)
	assert.Contains(t, st.Options.ATMByDate, "2024-01-18")
	require.NotNil(t, st.Futures)
	assert.Equal(t, 18120.0, st.Futures.LTP)
	assert.Equal(t, 18050.0, st.Spot())
}

func TestStateBuilder_AsOfHidesLaterCaptures(t *testing.T) {
	ds := newStore(t)
	seed(t, ds, "NIFTY", true)
	b := NewStateBuilder(ds, DefaultBuilderConfig(analysis.DefaultHistoryConfig()), zerolog.Nop())

	st, err := b.Build(context.Background(), Job{Symbol: "NIFTY", Class: analysis.Index, Mode: analysis.Intraday, AsOf: capturedAt.Add(-10 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, 2, st.History.Len())
	assert.Len(t, st.Options.Expiries, 1)
	assert.Nil(t, st.Futures)
}

func TestStateBuilder_UnknownSymbolIsEmptyNotError(t *testing.T) {
	ds := newStore(t)
	b := NewStateBuilder(ds, DefaultBuilderConfig(analysis.DefaultHistoryConfig()), zerolog.Nop())

	st, err := b.Build(context.Background(), Job{Symbol: "NOPE", Class: analysis.Stock, Mode: analysis.Positional, AsOf: capturedAt})
	require.NoError(t, err)
	require.NoError(t, st.Validate())
	assert.Empty(t, st.Bars)
	assert.NotNil(t, st.Options.Expiries)
	assert.Empty(t, st.Options.Expiries)
	assert.True(t, st.PrevDay.IsZero())
}

func TestScanner_ScanJournalsEveryCycle(t *testing.T) {
	ds := newStore(t)
	seed(t, ds, "NIFTY", true)
	seed(t, ds, "RELIANCE", false)
	cfg := testConfig(t)

	orch, err := NewOrchestrator(cfg, zerolog.Nop(), nil)
	require.NoError(t, err)
	builder := NewStateBuilder(ds, DefaultBuilderConfig(cfg.Engine.History), zerolog.Nop())
	sc := New(orch, builder, 2, analysis.PriorityLow, zerolog.Nop(),
		WithJournal(ds), WithFreshness(store.NewFreshnessTracker(ds, store.DefaultFreshnessConfig())))

	jobs := []Job{
		{Symbol: "NIFTY", Class: analysis.Index, Mode: analysis.Intraday, AsOf: capturedAt},
		{Symbol: "RELIANCE", Class: analysis.Stock, Mode: analysis.Intraday, AsOf: capturedAt},
		{Symbol: "EMPTY", Class: analysis.Stock, Mode: analysis.Intraday, AsOf: capturedAt},
	}
	outcomes := sc.Scan(context.Background(), jobs)
	require.Len(t, outcomes, 3)

	for i, o := range outcomes {
		assert.Equal(t, jobs[i].Symbol, o.Job.Symbol, "outcomes keep job order")
		require.NoError(t, o.Err)
		require.NotNil(t, o.Score)
		assert.NotEmpty(t, o.State.CycleID)
	}
	assert.True(t, outcomes[0].State.Bucket.Has(analysis.Bullish, analysis.TypeFuturesBuildup))
	assert.True(t, outcomes[2].State.Bucket.IsEmpty())
	assert.Equal(t, analysis.PriorityNone, outcomes[2].Score.Priority)
	assert.False(t, outcomes[2].Notify)
	assert.Equal(t, uint64(3), sc.Stats().TasksDone)

	entries, err := ds.GetJournal(context.Background(), store.JournalFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

type failingBuilder struct{ calls atomic.Int32 }

func (f *failingBuilder) Build(ctx context.Context, job Job) (*analysis.InstrumentState, error) {
	f.calls.Add(1)
	return nil, apperrors.NewDataError("bars", job.Symbol, "load failed", errors.New("disk gone"))
}

func TestScanner_BuildAndProfileErrorsStayPerJob(t *testing.T) {
	orch, err := NewOrchestrator(testConfig(t), zerolog.Nop(), nil)
	require.NoError(t, err)
	fb := &failingBuilder{}
	sc := New(orch, fb, 1, analysis.PriorityLow, zerolog.Nop())

	outcomes := sc.Scan(context.Background(), []Job{
		{Symbol: "A", Class: analysis.Stock, Mode: analysis.Intraday, AsOf: capturedAt},
		{Symbol: "B", Class: analysis.Stock, Mode: "SWING", AsOf: capturedAt},
	})
	require.Len(t, outcomes, 2)
	assert.ErrorContains(t, outcomes[0].Err, "disk gone")
	require.Error(t, outcomes[1].Err)
	assert.True(t, apperrors.IsConfig(outcomes[1].Err))
	assert.Equal(t, int32(1), fb.calls.Load(), "jobs with a bad profile never build state")
}

func TestScanner_CancelledContext(t *testing.T) {
	orch, err := NewOrchestrator(testConfig(t), zerolog.Nop(), nil)
	require.NoError(t, err)
	sc := New(orch, &failingBuilder{}, 1, analysis.PriorityLow, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcomes := sc.Scan(ctx, []Job{{Symbol: "A", Class: analysis.Stock, Mode: analysis.Intraday, AsOf: capturedAt}})
	require.Len(t, outcomes, 1)
	assert.Error(t, outcomes[0].Err)
}

func TestWorkerPool_RunsEveryTask(t *testing.T) {
	pool := newWorkerPool(4)
	pool.start()

	var counter atomic.Int64
	for i := 0; i < 100; i++ {
		require.True(t, pool.submit(context.Background(), func() { counter.Add(1) }))
	}
	pool.stop()

	assert.Equal(t, int64(100), counter.Load())
	stats := pool.stats()
	assert.Equal(t, uint64(100), stats.TasksTotal)
	assert.Equal(t, uint64(100), stats.TasksDone)
	assert.False(t, pool.submit(context.Background(), func() {}), "stopped pool rejects work")
}

type emptyBuilder struct{}

func (emptyBuilder) Build(ctx context.Context, job Job) (*analysis.InstrumentState, error) {
	return analysis.NewInstrumentState(job.Symbol, job.Class, job.Mode, analysis.DefaultHistoryConfig()), nil
}

// countingResolver fails its first failFirst calls.
type countingResolver struct {
	calls     map[analysis.ProfileKey]int
	failFirst int
}

func (c *countingResolver) resolve(key analysis.ProfileKey) (struct{}, error) {
	c.calls[key]++
	if c.failFirst > 0 {
		c.failFirst--
		return struct{}{}, errors.New("profile table missing")
	}
	return struct{}{}, nil
}

func TestScanner_ResetsProfileOncePerKey(t *testing.T) {
	cfg := testConfig(t)
	engine, err := scoring.NewEngine(cfg.Scoring)
	require.NoError(t, err)
	cr := &countingResolver{calls: make(map[analysis.ProfileKey]int), failFirst: 1}
	set := detect.NewSet[struct{}]("counting", cr.resolve, zerolog.Nop())
	sc := New(detect.NewOrchestrator(engine, zerolog.Nop(), set), emptyBuilder{}, 1, analysis.PriorityLow, zerolog.Nop())

	stock := analysis.ProfileKey{Mode: analysis.Intraday, Class: analysis.Stock}
	index := analysis.ProfileKey{Mode: analysis.Intraday, Class: analysis.Index}
	jobs := []Job{
		{Symbol: "A", Class: analysis.Stock, Mode: analysis.Intraday, AsOf: capturedAt},
		{Symbol: "B", Class: analysis.Stock, Mode: analysis.Intraday, AsOf: capturedAt},
	}

	first := sc.Scan(context.Background(), jobs)
	for _, o := range first {
		assert.ErrorContains(t, o.Err, "profile table missing")
	}
	assert.Equal(t, 1, cr.calls[stock], "one reset per key and scan")

	for i := 0; i < 3; i++ {
		for _, o := range sc.Scan(context.Background(), jobs) {
			require.NoError(t, o.Err)
		}
	}
	assert.Equal(t, 2, cr.calls[stock], "a failed reset is retried once, then cached")

	sc.Scan(context.Background(), append(jobs, Job{Symbol: "NIFTY", Class: analysis.Index, Mode: analysis.Intraday, AsOf: capturedAt}))
	assert.Equal(t, 2, cr.calls[stock])
	assert.Equal(t, 1, cr.calls[index], "a new mode and class is reset on first use")
}

func TestScanner_BuildLogsThroughJobLogger(t *testing.T) {
	ds := newStore(t)
	seed(t, ds, "NIFTY", true)
	cfg := testConfig(t)
	orch, err := NewOrchestrator(cfg, zerolog.Nop(), nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	builder := NewStateBuilder(ds, DefaultBuilderConfig(cfg.Engine.History), zerolog.Nop())
	sc := New(orch, builder, 1, analysis.PriorityLow, logger)

	outcomes := sc.Scan(context.Background(), []Job{{Symbol: "NIFTY", Class: analysis.Index, Mode: analysis.Intraday, AsOf: capturedAt}})
	require.NoError(t, outcomes[0].Err)

	var built string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "Instrument state built") {
			built = line
		}
	}
	require.NotEmpty(t, built, "builder logs through the scanner's job logger")
	assert.Contains(t, built, `"symbol":"NIFTY"`)
	assert.Contains(t, built, `"operation":"scan"`)
}
