package detect

import (
	"fmt"

	"github.com/rs/zerolog"

	"fno-signals/internal/analysis"
	apperrors "fno-signals/internal/errors"
	"fno-signals/internal/logging"
)

// Func is a detector body. It reads the state and the active profile, writes
// zero or more signals through the state, and reports whether it recorded
// anything. An error means the detector failed, not that it found nothing.
type Func[P any] func(st *analysis.InstrumentState, p P) (bool, error)

// Detector is one registered detector.
type Detector[P any] struct {
	Name string
	Caps Capability
	Run  Func[P]
}

// Resolver produces the immutable profile for a mode and class.
type Resolver[P any] func(key analysis.ProfileKey) (P, error)

// GroupResult is the outcome of running one group of a set.
type GroupResult struct {
	Fired    bool
	Ran      int
	Failures []analysis.DetectorFailure
	// Fatal carries a configuration error that ended the group early.
	Fatal error
}

// Runner is what the orchestrator needs from a detector set.
type Runner interface {
	Name() string
	Reset(mode analysis.Mode, class analysis.InstrumentClass) error
	RunGroup(st *analysis.InstrumentState, group Capability) GroupResult
}

// Set groups a family's detectors by capability. The four group lists are
// built once in NewSet and keep registration order.
type Set[P any] struct {
	name     string
	resolve  Resolver[P]
	groups   map[Capability][]Detector[P]
	profiles map[analysis.ProfileKey]P
	logger   zerolog.Logger
}

// NewSet builds a detector set from its registration table.
func NewSet[P any](name string, resolve Resolver[P], logger zerolog.Logger, detectors ...Detector[P]) *Set[P] {
	s := &Set[P]{
		name:     name,
		resolve:  resolve,
		groups:   make(map[Capability][]Detector[P], len(Groups)),
		profiles: make(map[analysis.ProfileKey]P, len(Groups)),
		logger:   logging.WithDetectorSet(logger, name),
	}
	for _, d := range detectors {
		for _, g := range Groups {
			if d.Caps.Has(g) {
				s.groups[g] = append(s.groups[g], d)
			}
		}
	}
	return s
}

// Name returns the set name.
func (s *Set[P]) Name() string {
	return s.name
}

// Reset resolves and caches the profile for a mode and class. It must not
// run concurrently with RunGroup.
func (s *Set[P]) Reset(mode analysis.Mode, class analysis.InstrumentClass) error {
	key := analysis.ProfileKey{Mode: mode, Class: class}
	if !key.Valid() {
		return apperrors.NewConfigError("profile", key, "unknown mode or instrument class")
	}
	p, err := s.resolve(key)
	if err != nil {
		return apperrors.Wrapf(err, "resolving %s profile %s", s.name, key)
	}
	s.profiles[key] = p
	return nil
}

// Profile returns the cached profile for a key.
func (s *Set[P]) Profile(key analysis.ProfileKey) (P, bool) {
	p, ok := s.profiles[key]
	return p, ok
}

// Detectors returns the detector names of a group in run order.
func (s *Set[P]) Detectors(group Capability) []string {
	names := make([]string, 0, len(s.groups[group]))
	for _, d := range s.groups[group] {
		names = append(names, d.Name)
	}
	return names
}

// RunGroup runs every detector of the group in registration order.
func (s *Set[P]) RunGroup(st *analysis.InstrumentState, group Capability) GroupResult {
	var res GroupResult

	key, ok := group.Key()
	if !ok {
		res.Fatal = apperrors.NewConfigError("group", group, "not a single capability group")
		return res
	}
	profile, ok := s.profiles[key]
	if !ok {
		res.Fatal = apperrors.NewConfigError("profile", key, fmt.Sprintf("%s was not reset for this mode", s.name))
		return res
	}

	for _, d := range s.groups[group] {
		res.Ran++
		fired, err := s.runOne(d, st, profile)
		switch {
		case err == nil:
			res.Fired = res.Fired || fired
		case apperrors.IsUnavailable(err):
			dl := logging.WithDetector(s.logger, s.name, d.Name)
			dl.Debug().Str("symbol", st.Symbol).Err(err).Msg("No data for detector")
		case apperrors.IsConfig(err):
			res.Fatal = err
			return res
		default:
			res.Failures = append(res.Failures, analysis.DetectorFailure{Set: s.name, Detector: d.Name, Err: err})
			logging.LogDetectorFailure(s.logger.With().Str("symbol", st.Symbol).Logger(), s.name, d.Name, err)
		}
	}
	return res
}

// runOne isolates a single detector, turning a panic or a signal without
// payload into an error.
func (s *Set[P]) runOne(d Detector[P], st *analysis.InstrumentState, p P) (fired bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			fired = false
			err = apperrors.NewDetectorError(s.name, d.Name, fmt.Errorf("panic: %v", r))
		}
	}()
	dropped := st.Bucket.Dropped()
	fired, err = d.Run(st, p)
	if err != nil {
		if apperrors.IsUnavailable(err) || apperrors.IsConfig(err) {
			return false, err
		}
		return false, apperrors.NewDetectorError(s.name, d.Name, err)
	}
	if n := st.Bucket.Dropped() - dropped; n > 0 {
		return false, apperrors.NewDetectorError(s.name, d.Name, fmt.Errorf("recorded %d signal(s) without payload", n))
	}
	return fired, nil
}

// StaticResolver resolves profiles from a fixed table.
func StaticResolver[P any](table map[analysis.ProfileKey]P) Resolver[P] {
	return func(key analysis.ProfileKey) (P, error) {
		p, ok := table[key]
		if !ok {
			var zero P
			return zero, apperrors.NewConfigError("profile", key, "no threshold profile configured")
		}
		return p, nil
	}
}
