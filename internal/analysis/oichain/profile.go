// Package oichain holds the per-strike open interest detectors: level
// breaches, buildup, walls, position migration and the intraday history
// trends.
package oichain

import (
	"fno-signals/internal/analysis"
	apperrors "fno-signals/internal/errors"
)

// Profile is the immutable threshold set of the OI chain detectors.
type Profile struct {
	// Expiries is how many nearest expiries the snapshot detectors scan.
	Expiries int `mapstructure:"expiries" json:"expiries"`

	// Support/resistance breach.
	DominanceFactor float64 `mapstructure:"dominance_factor" json:"dominance_factor"`

	// Buildup.
	MinTotalChangePct    float64 `mapstructure:"min_total_change_pct" json:"min_total_change_pct"`
	BuildupBandPct       float64 `mapstructure:"buildup_band_pct" json:"buildup_band_pct"`
	MinStrikeChangePct   float64 `mapstructure:"min_strike_change_pct" json:"min_strike_change_pct"`
	HeavyRatio           float64 `mapstructure:"heavy_ratio" json:"heavy_ratio"`
	DominantRatio        float64 `mapstructure:"dominant_ratio" json:"dominant_ratio"`
	MinQualifyingStrikes int     `mapstructure:"min_qualifying_strikes" json:"min_qualifying_strikes"`

	// Walls.
	WallSigma          float64 `mapstructure:"wall_sigma" json:"wall_sigma"`
	WallMaxDistancePct float64 `mapstructure:"wall_max_distance_pct" json:"wall_max_distance_pct"`
	WallAsymmetry      float64 `mapstructure:"wall_asymmetry" json:"wall_asymmetry"`

	// Position migration.
	ShiftBandPct   float64 `mapstructure:"shift_band_pct" json:"shift_band_pct"`
	ShiftImbalance float64 `mapstructure:"shift_imbalance" json:"shift_imbalance"`

	// Intraday OI/PCR trend.
	TrendMinSnapshots int     `mapstructure:"trend_min_snapshots" json:"trend_min_snapshots"`
	TrendWindow       int     `mapstructure:"trend_window" json:"trend_window"`
	TrendOIMinPct     float64 `mapstructure:"trend_oi_min_pct" json:"trend_oi_min_pct"`
	TrendPCRMinPct    float64 `mapstructure:"trend_pcr_min_pct" json:"trend_pcr_min_pct"`

	// Intraday support/resistance shift.
	SRMinSnapshots  int     `mapstructure:"sr_min_snapshots" json:"sr_min_snapshots"`
	SRMinShiftSteps float64 `mapstructure:"sr_min_shift_steps" json:"sr_min_shift_steps"`
	SRConsistency   float64 `mapstructure:"sr_consistency" json:"sr_consistency"`
}

// Validate validates the profile.
func (p Profile) Validate() error {
	switch {
	case p.Expiries < 1:
		return apperrors.NewConfigError("oichain.expiries", p.Expiries, "must be at least 1")
	case p.DominanceFactor <= 1:
		return apperrors.NewConfigError("oichain.dominance_factor", p.DominanceFactor, "must be above 1")
	case p.MinTotalChangePct < 0 || p.MinStrikeChangePct < 0:
		return apperrors.NewConfigError("oichain.min_total_change_pct", p.MinTotalChangePct, "change gates must be non-negative")
	case p.BuildupBandPct <= 0:
		return apperrors.NewConfigError("oichain.buildup_band_pct", p.BuildupBandPct, "must be positive")
	case p.DominantRatio <= 1 || p.HeavyRatio < p.DominantRatio:
		return apperrors.NewConfigError("oichain.heavy_ratio", p.HeavyRatio, "need 1 < dominant_ratio <= heavy_ratio")
	case p.MinQualifyingStrikes < 1:
		return apperrors.NewConfigError("oichain.min_qualifying_strikes", p.MinQualifyingStrikes, "must be at least 1")
	case p.WallSigma <= 0 || p.WallMaxDistancePct <= 0:
		return apperrors.NewConfigError("oichain.wall_sigma", p.WallSigma, "sigma and distance window must be positive")
	case p.WallAsymmetry <= 1:
		return apperrors.NewConfigError("oichain.wall_asymmetry", p.WallAsymmetry, "must be above 1")
	case p.ShiftBandPct < 0 || p.ShiftImbalance <= 1:
		return apperrors.NewConfigError("oichain.shift_imbalance", p.ShiftImbalance, "band must be non-negative and imbalance above 1")
	case p.TrendMinSnapshots < 2 || p.TrendWindow < p.TrendMinSnapshots:
		return apperrors.NewConfigError("oichain.trend_window", p.TrendWindow, "need 2 <= trend_min_snapshots <= trend_window")
	case p.SRMinSnapshots < 2 || p.SRMinShiftSteps <= 0:
		return apperrors.NewConfigError("oichain.sr_min_snapshots", p.SRMinSnapshots, "need at least 2 snapshots and a positive shift")
	case p.SRConsistency <= 0 || p.SRConsistency > 1:
		return apperrors.NewConfigError("oichain.sr_consistency", p.SRConsistency, "must be in (0, 1]")
	}
	return nil
}

// DefaultProfiles returns the built-in profile for every (mode, class).
func DefaultProfiles() map[analysis.ProfileKey]Profile {
	stockIntraday := Profile{
		Expiries:             1,
		DominanceFactor:      2.0,
		MinTotalChangePct:    1.0,
		BuildupBandPct:       5.0,
		MinStrikeChangePct:   10.0,
		HeavyRatio:           3.0,
		DominantRatio:        1.8,
		MinQualifyingStrikes: 3,
		WallSigma:            2.0,
		WallMaxDistancePct:   5.0,
		WallAsymmetry:        1.5,
		ShiftBandPct:         0.5,
		ShiftImbalance:       3.0,
		TrendMinSnapshots:    5,
		TrendWindow:          6,
		TrendOIMinPct:        3.0,
		TrendPCRMinPct:       5.0,
		SRMinSnapshots:       4,
		SRMinShiftSteps:      1,
		SRConsistency:        0.6,
	}

	stockPositional := stockIntraday
	stockPositional.Expiries = 2
	stockPositional.MinTotalChangePct = 2.0
	stockPositional.BuildupBandPct = 8.0
	stockPositional.MinStrikeChangePct = 15.0
	stockPositional.WallMaxDistancePct = 8.0
	stockPositional.ShiftBandPct = 1.0

	indexIntraday := stockIntraday
	indexIntraday.DominanceFactor = 2.5
	indexIntraday.MinTotalChangePct = 0.5
	indexIntraday.BuildupBandPct = 3.0
	indexIntraday.WallSigma = 2.5
	indexIntraday.WallMaxDistancePct = 3.0
	indexIntraday.ShiftBandPct = 0.3
	indexIntraday.TrendOIMinPct = 2.0
	indexIntraday.TrendPCRMinPct = 4.0

	indexPositional := indexIntraday
	indexPositional.Expiries = 2
	indexPositional.MinTotalChangePct = 1.0
	indexPositional.BuildupBandPct = 5.0
	indexPositional.WallMaxDistancePct = 5.0
	indexPositional.ShiftBandPct = 0.6

	return map[analysis.ProfileKey]Profile{
		{Mode: analysis.Intraday, Class: analysis.Stock}:   stockIntraday,
		{Mode: analysis.Positional, Class: analysis.Stock}: stockPositional,
		{Mode: analysis.Intraday, Class: analysis.Index}:   indexIntraday,
		{Mode: analysis.Positional, Class: analysis.Index}: indexPositional,
	}
}
