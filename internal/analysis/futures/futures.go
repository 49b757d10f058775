// Package futures holds the near-month futures detectors.
package futures

import (
	"fmt"

	"github.com/rs/zerolog"

	"fno-signals/internal/analysis"
	"fno-signals/internal/analysis/detect"
	apperrors "fno-signals/internal/errors"
)

// SetName names the futures detector set in logs and metrics.
const SetName = "futures"

// Profile is the immutable threshold set of the futures detectors.
type Profile struct {
	BuildupPricePct  float64 `mapstructure:"buildup_price_pct" json:"buildup_price_pct"`
	BuildupOIPct     float64 `mapstructure:"buildup_oi_pct" json:"buildup_oi_pct"`
	BasisPremiumPct  float64 `mapstructure:"basis_premium_pct" json:"basis_premium_pct"`
	BasisDiscountPct float64 `mapstructure:"basis_discount_pct" json:"basis_discount_pct"`
}

// Validate validates the profile.
func (p Profile) Validate() error {
	switch {
	case p.BuildupPricePct <= 0:
		return apperrors.NewConfigError("futures.buildup_price_pct", p.BuildupPricePct, "must be positive")
	case p.BuildupOIPct <= 0:
		return apperrors.NewConfigError("futures.buildup_oi_pct", p.BuildupOIPct, "must be positive")
	case p.BasisPremiumPct <= 0:
		return apperrors.NewConfigError("futures.basis_premium_pct", p.BasisPremiumPct, "must be positive")
	case p.BasisDiscountPct < 0:
		return apperrors.NewConfigError("futures.basis_discount_pct", p.BasisDiscountPct, "must be non-negative")
	}
	return nil
}

// DefaultProfiles returns the built-in profile for every (mode, class).
func DefaultProfiles() map[analysis.ProfileKey]Profile {
	intraday := Profile{
		BuildupPricePct:  0.5,
		BuildupOIPct:     2.0,
		BasisPremiumPct:  0.6,
		BasisDiscountPct: 0.1,
	}
	positional := Profile{
		BuildupPricePct:  1.0,
		BuildupOIPct:     5.0,
		BasisPremiumPct:  0.8,
		BasisDiscountPct: 0.1,
	}
	indexIntraday := intraday
	indexIntraday.BuildupPricePct = 0.3
	indexIntraday.BuildupOIPct = 1.5
	indexIntraday.BasisPremiumPct = 0.4

	indexPositional := positional
	indexPositional.BuildupPricePct = 0.6
	indexPositional.BuildupOIPct = 3.0
	indexPositional.BasisPremiumPct = 0.5

	return map[analysis.ProfileKey]Profile{
		{Mode: analysis.Intraday, Class: analysis.Stock}:   intraday,
		{Mode: analysis.Positional, Class: analysis.Stock}: positional,
		{Mode: analysis.Intraday, Class: analysis.Index}:   indexIntraday,
		{Mode: analysis.Positional, Class: analysis.Index}: indexPositional,
	}
}

// Detectors is the registration table of the futures set.
func Detectors() []detect.Detector[Profile] {
	return []detect.Detector[Profile]{
		{Name: "futures_buildup", Caps: detect.All, Run: DetectBuildup},
		{Name: "futures_basis", Caps: detect.All, Run: DetectBasis},
	}
}

// NewSet builds the futures set over a profile table.
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

// Buildup patterns.
const (
	LongBuildup   = "LONG_BUILDUP"
	ShortBuildup  = "SHORT_BUILDUP"
	ShortCovering = "SHORT_COVERING"
	LongUnwinding = "LONG_UNWINDING"
)

// BuildupSignal is the payload of futures_buildup.
type BuildupSignal struct {
	Pattern        string  `json:"pattern"`
	LTP            float64 `json:"ltp"`
	PriceChangePct float64 `json:"price_change_pct"`
	OIChangePct    float64 `json:"oi_change_pct"`
}

func (s BuildupSignal) Summary() string {
	return fmt.Sprintf("%s: price %+.2f%%, OI %+.2f%%", s.Pattern, s.PriceChangePct, s.OIChangePct)
}

// DetectBuildup classifies the combined price and OI move of the futures
// contract. Both moves must clear their gates.
func DetectBuildup(st *analysis.InstrumentState, p Profile) (bool, error) {
	f := st.Futures
	if f == nil || f.PrevClose <= 0 || f.PrevOI <= 0 {
		return false, apperrors.Unavailable("%s: no futures snapshot with a previous session", st.Symbol)
	}
	sig := BuildupSignal{
		LTP:            f.LTP,
		PriceChangePct: f.PriceChangePercent(),
		OIChangePct:    f.OIChangePercent(),
	}
	up, down := sig.PriceChangePct >= p.BuildupPricePct, sig.PriceChangePct <= -p.BuildupPricePct
	oiUp, oiDown := sig.OIChangePct >= p.BuildupOIPct, sig.OIChangePct <= -p.BuildupOIPct

	var sentiment analysis.Sentiment
	switch {
	case up && oiUp:
		sig.Pattern, sentiment = LongBuildup, analysis.Bullish
	case down && oiUp:
		sig.Pattern, sentiment = ShortBuildup, analysis.Bearish
	case up && oiDown:
		sig.Pattern, sentiment = ShortCovering, analysis.Bullish
	case down && oiDown:
		sig.Pattern, sentiment = LongUnwinding, analysis.Bearish
	default:
		return false, nil
	}
	st.Record(sentiment, analysis.TypeFuturesBuildup, sig)
	return true, nil
}

// BasisSignal is the payload of futures_basis.
type BasisSignal struct {
	LTP      float64 `json:"ltp"`
	Spot     float64 `json:"spot"`
	BasisPct float64 `json:"basis_pct"`
	Kind     string  `json:"kind"`
}

func (s BasisSignal) Summary() string {
	return fmt.Sprintf("Futures %s %.2f%% (%.2f vs spot %.2f)", s.Kind, s.BasisPct, s.LTP, s.Spot)
}

// DetectBasis reads a rich premium as bullish and a discount as bearish.
// The futures spot is preferred, then the instrument's best price.
func DetectBasis(st *analysis.InstrumentState, p Profile) (bool, error) {
	f := st.Futures
	if f == nil || f.LTP <= 0 {
		return false, apperrors.Unavailable("%s: no futures price", st.Symbol)
	}
	spot := f.SpotPrice
	if spot <= 0 {
		spot = st.Spot()
	}
	if spot <= 0 {
		return false, apperrors.Unavailable("%s: no spot for basis", st.Symbol)
	}

	sig := BasisSignal{LTP: f.LTP, Spot: spot, BasisPct: (f.LTP - spot) / spot * 100}
	var sentiment analysis.Sentiment
	switch {
	case sig.BasisPct >= p.BasisPremiumPct:
		sig.Kind, sentiment = "PREMIUM", analysis.Bullish
	case sig.BasisPct <= -p.BasisDiscountPct:
		sig.Kind, sentiment = "DISCOUNT", analysis.Bearish
	default:
		return false, nil
	}
	st.Record(sentiment, analysis.TypeFuturesBasis, sig)
	return true, nil
}
