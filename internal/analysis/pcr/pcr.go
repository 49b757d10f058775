package pcr

import (
	"github.com/rs/zerolog"

	"fno-signals/internal/analysis"
	"fno-signals/internal/analysis/detect"
	apperrors "fno-signals/internal/errors"
	"fno-signals/internal/models"
)

// SetName names the PCR and max-pain detector set in logs and metrics.
const SetName = "pcr"

// Detectors is the registration table of the PCR set.
func Detectors() []detect.Detector[Profile] {
	return []detect.Detector[Profile]{
		{Name: "pcr_extreme", Caps: detect.All, Run: DetectExtreme},
		{Name: "pcr_bias", Caps: detect.All, Run: DetectBias},
		{Name: "pcr_trend", Caps: detect.All, Run: DetectTrend},
		{Name: "pcr_divergence", Caps: detect.All, Run: DetectDivergence},
		{Name: "max_pain", Caps: detect.All, Run: DetectMaxPain},
		{Name: "max_pain_trend", Caps: detect.All, Run: DetectMaxPainTrend},
		{Name: "max_pain_pcr_alignment", Caps: detect.All, Run: DetectAlignment},
	}
}

// NewSet builds the PCR set over a profile table.
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

// currentChain returns the nearest non-empty expiry.
func currentChain(st *analysis.InstrumentState) (*models.ChainSnapshot, error) {
	c := st.CurrentChain()
	if c.IsEmpty() {
		return nil, apperrors.Unavailable("%s: no option chain", st.Symbol)
	}
	return c, nil
}

// currentPCR returns the nearest expiry and its PCR.
func currentPCR(st *analysis.InstrumentState) (*models.ChainSnapshot, float64, error) {
	c, err := currentChain(st)
	if err != nil {
		return nil, 0, err
	}
	v := c.EffectivePCR()
	if v <= 0 {
		return nil, 0, apperrors.Unavailable("%s: PCR undefined for %s", st.Symbol, c.ExpiryKey())
	}
	return c, v, nil
}

// Bias classifies a PCR against the bias band. High PCR is read as put
// writing and so bullish.
func (p Profile) Bias(v float64) analysis.Sentiment {
	switch {
	case v >= p.BiasHigh:
		return analysis.Bullish
	case v <= p.BiasLow:
		return analysis.Bearish
	}
	return analysis.Neutral
}
