package scanner

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fno-signals/internal/analysis"
	"fno-signals/internal/analysis/detect"
	apperrors "fno-signals/internal/errors"
	"fno-signals/internal/logging"
	"fno-signals/internal/store"
)

// Job is one instrument to analyse.
type Job struct {
	Symbol string
	Class  analysis.InstrumentClass
	Mode   analysis.Mode
	AsOf   time.Time
}

// Outcome is the result of one job. Err is set when the state could not be
// built or the cycle hit a configuration error; detector failures are on
// State.Failures instead.
type Outcome struct {
	Job    Job
	State  *analysis.InstrumentState
	Notify bool
	Score  *analysis.ScoreResult
	Err    error
}

// Builder produces the state for a job.
type Builder interface {
	Build(ctx context.Context, job Job) (*analysis.InstrumentState, error)
}

// Scanner runs jobs on a fixed worker pool. Each worker owns the state of
// the job it runs for the whole cycle.
type Scanner struct {
	orch        *detect.Orchestrator
	builder     Builder
	journal     store.DataStore
	freshness   *store.FreshnessTracker
	workers     int
	minPriority analysis.Priority
	logger      zerolog.Logger

	// mu serialises scans; ready holds the profile keys already reset.
	mu        sync.Mutex
	ready     map[analysis.ProfileKey]bool
	lastStats PoolStats
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithJournal writes every scored cycle to ds.
func WithJournal(ds store.DataStore) Option {
	return func(s *Scanner) { s.journal = ds }
}

// WithFreshness warns about stale feeds before each job.
func WithFreshness(ft *store.FreshnessTracker) Option {
	return func(s *Scanner) { s.freshness = ft }
}

// New creates a scanner.
func New(orch *detect.Orchestrator, builder Builder, workers int, minPriority analysis.Priority, logger zerolog.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		orch:        orch,
		builder:     builder,
		workers:     workers,
		minPriority: minPriority,
		logger:      logging.WithOperation(logger, "scan"),
		ready:       make(map[analysis.ProfileKey]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan runs every job and returns one outcome per job in job order. Profiles
// for a (mode, class) not seen by an earlier scan are resolved before any
// worker starts; a resolution failure fails only the jobs that need that
// profile and is retried on the next scan.
func (s *Scanner) Scan(ctx context.Context, jobs []Job) []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcomes := make([]Outcome, len(jobs))
	resetErrs := s.resetProfiles(jobs)

	pool := newWorkerPool(s.workers)
	pool.start()

	for i := range jobs {
		i := i
		outcomes[i].Job = jobs[i]
		key := analysis.ProfileKey{Mode: jobs[i].Mode, Class: jobs[i].Class}
		if err := resetErrs[key]; err != nil {
			outcomes[i].Err = err
			continue
		}
		if !pool.submit(ctx, func() { s.runJob(ctx, &outcomes[i]) }) {
			outcomes[i].Err = apperrors.Wrapf(ctx.Err(), "%s: scan cancelled", jobs[i].Symbol)
		}
	}
	pool.stop()
	s.lastStats = pool.stats()

	s.logger.Info().
		Int("jobs", len(jobs)).
		Uint64("ran", s.lastStats.TasksDone).
		Int("notify", countNotify(outcomes)).
		Msg("Scan finished")
	return outcomes
}

// Stats returns the pool statistics of the last scan.
func (s *Scanner) Stats() PoolStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStats
}

func (s *Scanner) resetProfiles(jobs []Job) map[analysis.ProfileKey]error {
	errs := make(map[analysis.ProfileKey]error)
	keys := make([]analysis.ProfileKey, 0, 4)
	for _, j := range jobs {
		key := analysis.ProfileKey{Mode: j.Mode, Class: j.Class}
		if _, seen := errs[key]; seen || s.ready[key] {
			continue
		}
		errs[key] = nil
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	for _, key := range keys {
		if err := s.orch.ResetAll(key.Mode, key.Class); err != nil {
			s.logger.Error().Err(err).Str("profile", key.String()).Msg("Profile reset failed")
			errs[key] = err
			continue
		}
		s.ready[key] = true
	}
	return errs
}

func (s *Scanner) runJob(ctx context.Context, out *Outcome) {
	job := out.Job
	logger := logging.WithSymbol(s.logger, job.Symbol)
	ctx = logging.WithLogger(ctx, logger)

	if s.freshness != nil {
		for _, f := range s.freshness.Stale(job.Symbol) {
			logger.Warn().Str("feed", string(f.Feed)).Dur("age", f.Age).Msg(store.FormatFreshness(f))
		}
	}

	st, err := s.builder.Build(ctx, job)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build instrument state")
		out.Err = err
		return
	}
	out.State = st

	notify, res, err := s.orch.RunCycle(st, job.Mode, job.Class, s.minPriority)
	if err != nil {
		logger.Error().Err(err).Msg("Cycle aborted")
		out.Err = err
		return
	}
	out.Notify, out.Score = notify, res

	if s.journal == nil {
		return
	}
	entry, err := store.NewJournalEntry(st, notify)
	if err == nil {
		err = s.journal.JournalDecision(ctx, entry)
	}
	if err != nil {
		logger.Warn().Err(err).Str("cycle_id", st.CycleID).Msg("Failed to journal cycle")
	}
}

func countNotify(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Notify {
			n++
		}
	}
	return n
}
