package detect

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fno-signals/internal/analysis"
	apperrors "fno-signals/internal/errors"
	"fno-signals/internal/logging"
)

// Scorer turns a finished bucket into a decision.
type Scorer interface {
	ShouldNotify(b *analysis.Bucket, minPriority analysis.Priority) (bool, *analysis.ScoreResult)
}

// Recorder receives cycle metrics. A nil Recorder is allowed.
type Recorder interface {
	ObserveCycle(mode analysis.Mode, d time.Duration, res *analysis.ScoreResult)
	DetectorFailed(set, detector string)
	SignalRecorded(analysisType string, sentiment analysis.Sentiment, n int)
}

// Orchestrator drives one instrument through every detector set for the
// active mode, then scores the bucket.
type Orchestrator struct {
	sets     []Runner
	scorer   Scorer
	recorder Recorder
	logger   zerolog.Logger
	now      func() time.Time
	newID    func() string
}

// NewOrchestrator creates an orchestrator. Sets run in the given order.
func NewOrchestrator(scorer Scorer, logger zerolog.Logger, sets ...Runner) *Orchestrator {
	return &Orchestrator{
		sets:   sets,
		scorer: scorer,
		logger: logging.WithOperation(logger, "orchestrator"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// WithRecorder attaches a metrics recorder.
func (o *Orchestrator) WithRecorder(r Recorder) *Orchestrator {
	o.recorder = r
	return o
}

// WithClock overrides the cycle clock.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Sets returns the registered detector sets.
func (o *Orchestrator) Sets() []Runner {
	out := make([]Runner, len(o.sets))
	copy(out, o.sets)
	return out
}

// ResetAll makes every set resolve its profile for the mode and class.
// Call it once per mode transition, before cycles run.
func (o *Orchestrator) ResetAll(mode analysis.Mode, class analysis.InstrumentClass) error {
	for _, s := range o.sets {
		if err := s.Reset(mode, class); err != nil {
			return err
		}
	}
	o.logger.Debug().Str("mode", string(mode)).Str("class", string(class)).Int("sets", len(o.sets)).Msg("Detector profiles reset")
	return nil
}

// RunCycle runs the matching group of every set on the state, scores the
// bucket, stores the result on the state and returns whether the result
// clears minPriority. The result is returned even when notification is
// suppressed. Only configuration errors are returned as errors.
func (o *Orchestrator) RunCycle(st *analysis.InstrumentState, mode analysis.Mode, class analysis.InstrumentClass, minPriority analysis.Priority) (bool, *analysis.ScoreResult, error) {
	start := o.now()

	group, err := For(mode, class)
	if err != nil {
		return false, nil, err
	}
	if err := st.Validate(); err != nil {
		return false, nil, err
	}

	st.Mode = mode
	st.Class = class
	st.BeginCycle(start, o.newID())
	logger := logging.WithCycle(logging.WithSymbol(o.logger, st.Symbol), st.CycleID)

	for _, s := range o.sets {
		res := s.RunGroup(st, group)
		if res.Fatal != nil {
			return false, nil, apperrors.Wrapf(res.Fatal, "%s: %s", st.Symbol, s.Name())
		}
		st.Failures = append(st.Failures, res.Failures...)
		logger.Debug().Str("detector_set", s.Name()).Int("ran", res.Ran).Bool("fired", res.Fired).Int("failures", len(res.Failures)).Msg("Detector group finished")
	}

	for _, sentiment := range analysis.Sentiments {
		for _, e := range st.Bucket.Entries(sentiment) {
			for _, sig := range e.Signals {
				logging.LogSignal(logger, string(sentiment), e.Type, sig.Payload.Summary())
			}
		}
	}

	notify, result := o.scorer.ShouldNotify(st.Bucket, minPriority)
	st.Score = result

	o.record(st, mode, result, o.now().Sub(start))
	logging.LogDecision(logger, st.Symbol, result.Priority.String(), string(result.Alignment), result.TotalScore, result.ConfidencePct, notify)

	return notify, result, nil
}

func (o *Orchestrator) record(st *analysis.InstrumentState, mode analysis.Mode, res *analysis.ScoreResult, d time.Duration) {
	if o.recorder == nil {
		return
	}
	for _, f := range st.Failures {
		o.recorder.DetectorFailed(f.Set, f.Detector)
	}
	for _, sentiment := range analysis.Sentiments {
		for _, e := range st.Bucket.Entries(sentiment) {
			o.recorder.SignalRecorded(e.Type, sentiment, len(e.Signals))
		}
	}
	o.recorder.ObserveCycle(mode, d, res)
}
