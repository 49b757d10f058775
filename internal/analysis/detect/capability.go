// Package detect provides capability-tagged detector registration and the
// orchestrator that drives one instrument through every detector set.
package detect

import (
	"strings"

	"fno-signals/internal/analysis"
	apperrors "fno-signals/internal/errors"
)

// Capability tags the operating modes and instrument classes a detector
// applies to. A detector may carry several flags.
type Capability uint8

const (
	Intraday Capability = 1 << iota
	Positional
	IndexIntraday
	IndexPositional
)

// All tags a detector for every group.
const All = Intraday | Positional | IndexIntraday | IndexPositional

// IntradayOnly tags a detector for the stock and index intraday groups.
const IntradayOnly = Intraday | IndexIntraday

// PositionalOnly tags a detector for the stock and index positional groups.
const PositionalOnly = Positional | IndexPositional

// Groups lists the four single-flag groups in a fixed order.
var Groups = []Capability{Intraday, Positional, IndexIntraday, IndexPositional}

// For selects the group for a mode and instrument class.
func For(mode analysis.Mode, class analysis.InstrumentClass) (Capability, error) {
	key := analysis.ProfileKey{Mode: mode, Class: class}
	if !key.Valid() {
		return 0, apperrors.NewConfigError("mode/class", key, "unknown mode or instrument class")
	}
	switch {
	case mode == analysis.Intraday && class == analysis.Stock:
		return Intraday, nil
	case mode == analysis.Positional && class == analysis.Stock:
		return Positional, nil
	case mode == analysis.Intraday:
		return IndexIntraday, nil
	default:
		return IndexPositional, nil
	}
}

// Key returns the profile key a single-flag group runs under.
func (c Capability) Key() (analysis.ProfileKey, bool) {
	switch c {
	case Intraday:
		return analysis.ProfileKey{Mode: analysis.Intraday, Class: analysis.Stock}, true
	case Positional:
		return analysis.ProfileKey{Mode: analysis.Positional, Class: analysis.Stock}, true
	case IndexIntraday:
		return analysis.ProfileKey{Mode: analysis.Intraday, Class: analysis.Index}, true
	case IndexPositional:
		return analysis.ProfileKey{Mode: analysis.Positional, Class: analysis.Index}, true
	}
	return analysis.ProfileKey{}, false
}

// Has reports whether c carries every flag of g.
func (c Capability) Has(g Capability) bool {
	return g != 0 && c&g == g
}

func (c Capability) String() string {
	if c == 0 {
		return "NONE"
	}
	var parts []string
	names := map[Capability]string{
		Intraday:        "INTRADAY",
		Positional:      "POSITIONAL",
		IndexIntraday:   "INDEX_INTRADAY",
		IndexPositional: "INDEX_POSITIONAL",
	}
	for _, g := range Groups {
		if c.Has(g) {
			parts = append(parts, names[g])
		}
	}
	return strings.Join(parts, "|")
}
