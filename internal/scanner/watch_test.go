package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fno-signals/internal/analysis"
	"fno-signals/internal/config"
	"fno-signals/internal/models"
)

func newWatcher(t *testing.T, watch config.WatchConfig) (*Watcher, *Scanner) {
	t.Helper()
	ds := newStore(t)
	seed(t, ds, "NIFTY", true)
	seed(t, ds, "RELIANCE", false)
	require.NoError(t, ds.SaveInstrument(context.Background(), models.Instrument{Symbol: "FINNIFTY"}))

	cfg := testConfig(t)
	orch, err := NewOrchestrator(cfg, zerolog.Nop(), nil)
	require.NoError(t, err)
	sc := New(orch, NewStateBuilder(ds, DefaultBuilderConfig(cfg.Engine.History), zerolog.Nop()), 2, analysis.PriorityLow, zerolog.Nop())
	return NewWatcher(sc, ds, watch, analysis.Intraday, zerolog.Nop()), sc
}

func TestWatcher_JobsClassifyIndices(t *testing.T) {
	w, _ := newWatcher(t, config.WatchConfig{Schedule: "@every 1m", Indices: []string{"finnifty"}})

	jobs, err := w.Jobs(context.Background(), capturedAt)
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	classes := map[string]analysis.InstrumentClass{}
	for _, j := range jobs {
		classes[j.Symbol] = j.Class
		assert.Equal(t, analysis.Intraday, j.Mode)
		assert.True(t, j.AsOf.Equal(capturedAt))
	}
	assert.Equal(t, analysis.Index, classes["NIFTY"], "stored as index")
	assert.Equal(t, analysis.Index, classes["FINNIFTY"], "listed under watch.indices")
	assert.Equal(t, analysis.Stock, classes["RELIANCE"])
}

func TestWatcher_RunOnceRespectsMarketHours(t *testing.T) {
	w, _ := newWatcher(t, config.WatchConfig{Schedule: "@every 1m", MarketHoursOnly: true})

	// Saturday
	w.WithClock(func() time.Time { return time.Date(2024, 1, 20, 6, 0, 0, 0, time.UTC) })
	outcomes, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Nil(t, outcomes)
	assert.Equal(t, 0, w.Runs())

	w.WithClock(func() time.Time { return capturedAt })
	outcomes, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, 1, w.Runs())
}

func TestWatcher_StartRejectsBadSchedule(t *testing.T) {
	w, _ := newWatcher(t, config.WatchConfig{Schedule: "every now and then"})
	assert.Error(t, w.Start(context.Background()))
}

func TestWatcher_ScheduledScanReportsOutcomes(t *testing.T) {
	w, _ := newWatcher(t, config.WatchConfig{Schedule: "@every 1s"})
	w.WithClock(func() time.Time { return capturedAt })

	got := make(chan []Outcome, 1)
	w.OnScan(func(o []Outcome) {
		select {
		case got <- o:
		default:
		}
	})
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	select {
	case outcomes := <-got:
		assert.Len(t, outcomes, 3)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for scheduled scan")
	}
}
