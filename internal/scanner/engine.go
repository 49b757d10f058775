// Package scanner runs signal cycles for many instruments: it builds each
// instrument's state from the store, runs the detector orchestrator on a
// fixed worker pool and journals the scored result.
package scanner

import (
	"github.com/rs/zerolog"

	"fno-signals/internal/analysis/detect"
	"fno-signals/internal/analysis/futures"
	"fno-signals/internal/analysis/oichain"
	"fno-signals/internal/analysis/pcr"
	"fno-signals/internal/analysis/scoring"
	"fno-signals/internal/analysis/technical"
	"fno-signals/internal/config"
	apperrors "fno-signals/internal/errors"
)

// NewOrchestrator wires the scoring engine and every detector family from
// the loaded configuration. Registration order is the order signals are
// recorded in.
func NewOrchestrator(cfg *config.Config, logger zerolog.Logger, rec detect.Recorder) (*detect.Orchestrator, error) {
	engine, err := scoring.NewEngine(cfg.Scoring)
	if err != nil {
		return nil, apperrors.Wrap(err, "building scorer")
	}

	th := cfg.Thresholds
	orch := detect.NewOrchestrator(engine, logger,
		technical.NewSet(th.Technical, logger),
		oichain.NewSet(th.OIChain, logger),
		pcr.NewSet(th.PCR, logger),
		futures.NewSet(th.Futures, logger),
	)
	if rec != nil {
		orch.WithRecorder(rec)
	}
	return orch, nil
}
