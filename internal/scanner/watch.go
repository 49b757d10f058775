package scanner

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"fno-signals/internal/analysis"
	"fno-signals/internal/config"
	apperrors "fno-signals/internal/errors"
	"fno-signals/internal/store"
	"fno-signals/pkg/utils"
)

// Watcher scans every stored instrument on a cron schedule.
type Watcher struct {
	cron    *cron.Cron
	scanner *Scanner
	store   store.DataStore
	cfg     config.WatchConfig
	mode    analysis.Mode
	indices map[string]bool
	logger  zerolog.Logger
	now     func() time.Time
	onScan  func([]Outcome)

	mu      sync.Mutex
	running bool
	runs    int
}

// NewWatcher creates a watcher. The schedule accepts an optional seconds
// field.
func NewWatcher(sc *Scanner, ds store.DataStore, cfg config.WatchConfig, mode analysis.Mode, logger zerolog.Logger) *Watcher {
	indices := make(map[string]bool, len(cfg.Indices))
	for _, sym := range cfg.Indices {
		indices[strings.ToUpper(sym)] = true
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Watcher{
		cron:    cron.New(cron.WithParser(parser), cron.WithLocation(utils.IndiaLocation)),
		scanner: sc,
		store:   ds,
		cfg:     cfg,
		mode:    mode,
		indices: indices,
		logger:  logger.With().Str("component", "watcher").Logger(),
		now:     time.Now,
	}
}

// WithClock replaces the watcher's clock.
func (w *Watcher) WithClock(now func() time.Time) *Watcher {
	w.now = now
	return w
}

// OnScan registers a callback receiving every scheduled scan's outcomes.
func (w *Watcher) OnScan(fn func([]Outcome)) *Watcher {
	w.onScan = fn
	return w
}

// Start schedules the scan and starts the cron runner.
func (w *Watcher) Start(ctx context.Context) error {
	_, err := w.cron.AddFunc(w.cfg.Schedule, func() {
		outcomes, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("Scheduled scan failed")
			return
		}
		if outcomes != nil && w.onScan != nil {
			w.onScan(outcomes)
		}
	})
	if err != nil {
		return apperrors.Wrapf(err, "failed to schedule scan %q", w.cfg.Schedule)
	}

	w.logger.Info().Str("schedule", w.cfg.Schedule).Str("mode", string(w.mode)).Msg("Starting watcher")
	w.cron.Start()
	return nil
}

// Stop stops the cron runner and waits for a running scan to finish.
func (w *Watcher) Stop() {
	w.logger.Info().Msg("Stopping watcher")
	<-w.cron.Stop().Done()
	w.logger.Info().Int("runs", w.Runs()).Msg("Watcher stopped")
}

// Runs returns how many scans have completed.
func (w *Watcher) Runs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs
}

// RunOnce scans every stored symbol as of now. It returns nil outcomes when
// the market is closed and the watcher is limited to market hours, or when
// the previous scan is still running.
func (w *Watcher) RunOnce(ctx context.Context) ([]Outcome, error) {
	now := w.now()
	if w.cfg.MarketHoursOnly && !utils.IsMarketOpenAt(now) {
		w.logger.Debug().Time("at", now).Msg("Market closed, skipping scan")
		return nil, nil
	}

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		w.logger.Warn().Msg("Previous scan still running, skipping")
		return nil, nil
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.runs++
		w.mu.Unlock()
	}()

	jobs, err := w.Jobs(ctx, now)
	if err != nil {
		return nil, err
	}
	return w.scanner.Scan(ctx, jobs), nil
}

// Jobs builds one job per stored symbol. A symbol is an index when the
// store says so or when it is listed under watch.indices.
func (w *Watcher) Jobs(ctx context.Context, at time.Time) ([]Job, error) {
	symbols, err := w.store.Symbols(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "listing symbols")
	}

	jobs := make([]Job, 0, len(symbols))
	for _, sym := range symbols {
		isIndex := w.indices[strings.ToUpper(sym)]
		if !isIndex {
			inst, err := w.store.GetInstrument(ctx, sym)
			if err != nil {
				return nil, apperrors.Wrapf(err, "loading instrument %s", sym)
			}
			isIndex = inst != nil && inst.IsIndex
		}
		jobs = append(jobs, Job{
			Symbol: sym,
			Class:  analysis.ClassFor(isIndex),
			Mode:   w.mode,
			AsOf:   at,
		})
	}
	return jobs, nil
}
