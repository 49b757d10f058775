package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"fno-signals/internal/analysis"
	apperrors "fno-signals/internal/errors"
	"fno-signals/internal/logging"
	"fno-signals/internal/models"
	"fno-signals/internal/store"
	"fno-signals/pkg/utils"
)

// BarSource selects the bar series loaded for a mode.
type BarSource struct {
	Timeframe string
	Lookback  time.Duration
}

// BuilderConfig controls how much data the builder loads.
type BuilderConfig struct {
	History    analysis.HistoryConfig
	Intraday   BarSource
	Positional BarSource
	// MaxExpiries is how many expiries are loaded, nearest first.
	MaxExpiries int
	Retry       utils.RetryConfig
}

// DefaultBuilderConfig returns five-minute bars for intraday and daily bars
// for positional runs.
func DefaultBuilderConfig(history analysis.HistoryConfig) BuilderConfig {
	retry := utils.DefaultRetryConfig()
	retry.Retryable = func(err error) bool {
		return !apperrors.Is(err, context.Canceled) && !apperrors.Is(err, context.DeadlineExceeded)
	}
	return BuilderConfig{
		History:     history,
		Intraday:    BarSource{Timeframe: "5min", Lookback: 5 * 24 * time.Hour},
		Positional:  BarSource{Timeframe: "1day", Lookback: 400 * 24 * time.Hour},
		MaxExpiries: 2,
		Retry:       retry,
	}
}

// StateBuilder assembles an InstrumentState from stored snapshots as of a
// point in time. History is rebuilt from the store on every call, so a
// cycle only depends on what was ingested.
type StateBuilder struct {
	store  store.DataStore
	config BuilderConfig
	logger zerolog.Logger
}

// NewStateBuilder creates a builder over ds.
func NewStateBuilder(ds store.DataStore, cfg BuilderConfig, logger zerolog.Logger) *StateBuilder {
	return &StateBuilder{store: ds, config: cfg, logger: logger}
}

// Build loads bars, the previous day, the option chains with their history
// and the latest futures capture for one instrument.
func (b *StateBuilder) Build(ctx context.Context, job Job) (*analysis.InstrumentState, error) {
	st := analysis.NewInstrumentState(job.Symbol, job.Class, job.Mode, b.config.History)
	asOf := job.AsOf

	src := b.config.Intraday
	if job.Mode == analysis.Positional {
		src = b.config.Positional
	}
	bars, err := utils.RetryWithResult(ctx, b.config.Retry, func() ([]models.Candle, error) {
		return b.store.GetCandles(ctx, job.Symbol, src.Timeframe, asOf.Add(-src.Lookback), asOf)
	})
	if err != nil {
		return nil, apperrors.NewDataError("bars", job.Symbol, "load failed", err)
	}
	st.Bars = bars

	prev, err := b.prevDay(ctx, job.Symbol, asOf)
	if err != nil {
		return nil, err
	}
	st.PrevDay = prev

	st.OptionsEnabled = true
	st.Options, err = b.options(ctx, st, asOf)
	if err != nil {
		return nil, err
	}

	fut, err := utils.RetryWithResult(ctx, b.config.Retry, func() (*models.FuturesSnapshot, error) {
		return b.store.LatestFutures(ctx, job.Symbol, asOf)
	})
	if err != nil {
		return nil, apperrors.NewDataError("futures", job.Symbol, "load failed", err)
	}
	st.Futures = fut

	sl := logging.FromContext(ctx, logging.WithSymbol(b.logger, job.Symbol))
	sl.Debug().
		Int("bars", len(st.Bars)).
		Int("expiries", len(st.Options.Expiries)).
		Int("history", st.History.Len()).
		Bool("futures", st.Futures != nil).
		Msg("Instrument state built")
	return st, nil
}

// prevDay returns the last daily bar that closed before the session of asOf.
func (b *StateBuilder) prevDay(ctx context.Context, symbol string, asOf time.Time) (models.DayOHLCV, error) {
	open := utils.SessionOpen(asOf)
	days, err := utils.RetryWithResult(ctx, b.config.Retry, func() ([]models.Candle, error) {
		return b.store.GetCandles(ctx, symbol, "1day", open.AddDate(0, 0, -10), open.Add(-time.Second))
	})
	if err != nil {
		return models.DayOHLCV{}, apperrors.NewDataError("prev_day", symbol, "load failed", err)
	}
	if len(days) == 0 {
		return models.DayOHLCV{}, nil
	}
	d := days[len(days)-1]
	return models.DayOHLCV{
		Date:   d.Timestamp,
		Open:   d.Open,
		High:   d.High,
		Low:    d.Low,
		Close:  d.Close,
		Volume: d.Volume,
	}, nil
}

// historyFrom is the earliest capture kept in the history buffer.
func (b *StateBuilder) historyFrom(mode analysis.Mode, asOf time.Time) time.Time {
	if mode == analysis.Positional {
		return asOf.Add(-b.config.History.PositionalWindow)
	}
	return utils.SessionOpen(asOf)
}

func (b *StateBuilder) options(ctx context.Context, st *analysis.InstrumentState, asOf time.Time) (*analysis.OptionsContext, error) {
	opts := &analysis.OptionsContext{
		Expiries:  []*models.ChainSnapshot{},
		ATMByDate: make(map[string]models.StrikeRow),
	}

	expiries, err := utils.RetryWithResult(ctx, b.config.Retry, func() ([]time.Time, error) {
		return b.store.LatestExpiries(ctx, st.Symbol, asOf)
	})
	if err != nil {
		return nil, apperrors.NewDataError("chain", st.Symbol, "listing expiries failed", err)
	}
	if len(expiries) > b.config.MaxExpiries {
		expiries = expiries[:b.config.MaxExpiries]
	}

	for i, expiry := range expiries {
		from := asOf.Add(-b.config.History.PositionalWindow)
		if i == 0 {
			from = b.historyFrom(st.Mode, asOf)
		}
		snaps, err := utils.RetryWithResult(ctx, b.config.Retry, func() ([]models.ChainSnapshot, error) {
			return b.store.GetChainSnapshots(ctx, st.Symbol, expiry, from, asOf)
		})
		if err != nil {
			return nil, apperrors.NewDataError("chain", st.Symbol, fmt.Sprintf("load failed for %s", expiry.Format("2006-01-02")), err)
		}
		if len(snaps) == 0 {
			continue
		}
		latest := snaps[len(snaps)-1]
		opts.Expiries = append(opts.Expiries, &latest)

		if i != 0 {
			continue
		}
		for _, snap := range snaps {
			st.History.Append(snap)
			if mp := snap.EffectiveMaxPain(); mp > 0 {
				opts.MaxPainHistory = append(opts.MaxPainHistory, mp)
			}
			if row, ok := snap.ATMRow(); ok {
				opts.ATMByDate[utils.TradingDate(snap.CapturedAt)] = row
			}
		}
	}
	return opts, nil
}
