package oichain

import (
	"github.com/rs/zerolog"

	"fno-signals/internal/analysis"
	"fno-signals/internal/analysis/detect"
	apperrors "fno-signals/internal/errors"
	"fno-signals/internal/models"
)

// SetName names the OI chain detector set in logs and metrics.
const SetName = "oichain"

// Detectors is the registration table of the OI chain set.
func Detectors() []detect.Detector[Profile] {
	return []detect.Detector[Profile]{
		{Name: "support_resistance", Caps: detect.All, Run: DetectSupportResistance},
		{Name: "buildup", Caps: detect.All, Run: DetectBuildup},
		{Name: "walls", Caps: detect.All, Run: DetectWalls},
		{Name: "shift", Caps: detect.All, Run: DetectShift},
		{Name: "intraday_trend", Caps: detect.IntradayOnly, Run: DetectIntradayTrend},
		{Name: "sr_shift", Caps: detect.IntradayOnly, Run: DetectSRShift},
	}
}

// NewSet builds the OI chain set over a profile table.
func NewSet(profiles map[analysis.ProfileKey]Profile, logger zerolog.Logger) *detect.Set[Profile] {
	return detect.NewSet(SetName, Resolver(profiles), logger, Detectors()...)
}

// Resolver validates the profile before handing it out.
func Resolver(profiles map[analysis.ProfileKey]Profile) detect.Resolver[Profile] {
	static := detect.StaticResolver(profiles)
	return func(key analysis.ProfileKey) (Profile, error) {
		p, err := static(key)
		if err != nil {
			return p, err
		}
		return p, p.Validate()
	}
}

// scanChains returns the non-empty snapshots of the nearest p.Expiries
// expiries, nearest first.
func scanChains(st *analysis.InstrumentState, p Profile) ([]*models.ChainSnapshot, error) {
	if st.Options == nil || len(st.Options.Expiries) == 0 {
		return nil, apperrors.Unavailable("%s: no option chain", st.Symbol)
	}
	var chains []*models.ChainSnapshot
	for i, c := range st.Options.Expiries {
		if i >= p.Expiries {
			break
		}
		if !c.IsEmpty() {
			chains = append(chains, c)
		}
	}
	if len(chains) == 0 {
		return nil, apperrors.Unavailable("%s: option chain has no strikes", st.Symbol)
	}
	return chains, nil
}

// spotFor returns the chain spot, falling back to the state's best price.
func spotFor(st *analysis.InstrumentState, c *models.ChainSnapshot) float64 {
	if c.SpotPrice > 0 {
		return c.SpotPrice
	}
	return st.Spot()
}

// eachChain runs fn on every scanned chain with a usable spot and ORs the
// results.
func eachChain(st *analysis.InstrumentState, p Profile, fn func(c *models.ChainSnapshot, spot float64) bool) (bool, error) {
	chains, err := scanChains(st, p)
	if err != nil {
		return false, err
	}
	fired, scanned := false, 0
	for _, c := range chains {
		spot := spotFor(st, c)
		if spot <= 0 {
			continue
		}
		scanned++
		if fn(c, spot) {
			fired = true
		}
	}
	if scanned == 0 {
		return false, apperrors.Unavailable("%s: no spot price", st.Symbol)
	}
	return fired, nil
}

func pctFrom(value, base float64) float64 {
	if base == 0 {
		return 0
	}
	return (value - base) / base * 100
}
