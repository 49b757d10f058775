// Package pcr holds the put/call ratio and max-pain detectors.
package pcr

import (
	"fno-signals/internal/analysis"
	apperrors "fno-signals/internal/errors"
)

// Profile is the immutable threshold set of the PCR and max-pain detectors.
type Profile struct {
	// Contrarian zones: PCR at or below ExtremeLow is bullish, at or above
	// ExtremeHigh bearish.
	ExtremeLow  float64 `mapstructure:"extreme_low" json:"extreme_low"`
	ExtremeHigh float64 `mapstructure:"extreme_high" json:"extreme_high"`

	// Directional bias between the extremes.
	BiasLow  float64 `mapstructure:"bias_low" json:"bias_low"`
	BiasHigh float64 `mapstructure:"bias_high" json:"bias_high"`

	TrendPoints   int     `mapstructure:"trend_points" json:"trend_points"`
	TrendMinPct   float64 `mapstructure:"trend_min_pct" json:"trend_min_pct"`
	DivergenceGap float64 `mapstructure:"divergence_gap" json:"divergence_gap"`

	// Max-pain deviation from spot, in percent of spot.
	MaxPainStrongPct   float64 `mapstructure:"max_pain_strong_pct" json:"max_pain_strong_pct"`
	MaxPainModeratePct float64 `mapstructure:"max_pain_moderate_pct" json:"max_pain_moderate_pct"`
	MaxPainShiftPct    float64 `mapstructure:"max_pain_shift_pct" json:"max_pain_shift_pct"`
}

// Validate validates the profile.
func (p Profile) Validate() error {
	switch {
	case p.ExtremeLow <= 0 || p.ExtremeLow >= p.BiasLow:
		return apperrors.NewConfigError("pcr.extreme_low", p.ExtremeLow, "need 0 < extreme_low < bias_low")
	case p.BiasLow >= p.BiasHigh:
		return apperrors.NewConfigError("pcr.bias_low", p.BiasLow, "need bias_low < bias_high")
	case p.BiasHigh >= p.ExtremeHigh:
		return apperrors.NewConfigError("pcr.bias_high", p.BiasHigh, "need bias_high < extreme_high")
	case p.TrendPoints < 2:
		return apperrors.NewConfigError("pcr.trend_points", p.TrendPoints, "need at least two points")
	case p.TrendMinPct <= 0:
		return apperrors.NewConfigError("pcr.trend_min_pct", p.TrendMinPct, "must be positive")
	case p.DivergenceGap <= 0:
		return apperrors.NewConfigError("pcr.divergence_gap", p.DivergenceGap, "must be positive")
	case p.MaxPainModeratePct <= 0 || p.MaxPainModeratePct >= p.MaxPainStrongPct:
		return apperrors.NewConfigError("pcr.max_pain_moderate_pct", p.MaxPainModeratePct, "need 0 < moderate < strong")
	case p.MaxPainShiftPct < 0:
		return apperrors.NewConfigError("pcr.max_pain_shift_pct", p.MaxPainShiftPct, "must be non-negative")
	}
	return nil
}

// DefaultProfiles returns the built-in profile for every (mode, class).
func DefaultProfiles() map[analysis.ProfileKey]Profile {
	intraday := Profile{
		ExtremeLow:         0.5,
		ExtremeHigh:        1.5,
		BiasLow:            0.8,
		BiasHigh:           1.2,
		TrendPoints:        3,
		TrendMinPct:        10,
		DivergenceGap:      0.3,
		MaxPainStrongPct:   2.0,
		MaxPainModeratePct: 1.0,
		MaxPainShiftPct:    0.25,
	}
	positional := intraday
	positional.MaxPainStrongPct = 3.0
	positional.MaxPainModeratePct = 1.5
	positional.MaxPainShiftPct = 0.5

	// Index PCR runs in a tighter band than single stocks.
	indexIntraday := intraday
	indexIntraday.ExtremeLow = 0.6
	indexIntraday.ExtremeHigh = 1.4
	indexIntraday.MaxPainStrongPct = 1.0
	indexIntraday.MaxPainModeratePct = 0.5
	indexIntraday.MaxPainShiftPct = 0.15

	indexPositional := positional
	indexPositional.ExtremeLow = 0.6
	indexPositional.ExtremeHigh = 1.4
	indexPositional.MaxPainStrongPct = 1.5
	indexPositional.MaxPainModeratePct = 0.75

	return map[analysis.ProfileKey]Profile{
		{Mode: analysis.Intraday, Class: analysis.Stock}:   intraday,
		{Mode: analysis.Positional, Class: analysis.Stock}: positional,
		{Mode: analysis.Intraday, Class: analysis.Index}:   indexIntraday,
		{Mode: analysis.Positional, Class: analysis.Index}: indexPositional,
	}
}
