package pcr

import (
	"fmt"
	"math"
	"strings"

	"fno-signals/internal/analysis"
	apperrors "fno-signals/internal/errors"
	"fno-signals/internal/models"
)

// Max-pain deviation tiers. WEAK is computed but never recorded.
const (
	TierStrong   = "STRONG"
	TierModerate = "MODERATE"
	TierWeak     = "WEAK"
)

// MaxPainSignal is the payload of max_pain.
type MaxPainSignal struct {
	Expiry       string  `json:"expiry"`
	MaxPain      float64 `json:"max_pain"`
	Spot         float64 `json:"spot"`
	DeviationPct float64 `json:"deviation_pct"`
	Tier         string  `json:"tier"`
	Computed     bool    `json:"computed"`
}

func (s MaxPainSignal) Summary() string {
	return fmt.Sprintf("%s pull to max pain %.0f from %.2f (%+.2f%%)", s.Tier, s.MaxPain, s.Spot, s.DeviationPct)
}

// Tier grades a max-pain deviation in percent of spot.
func (p Profile) Tier(deviationPct float64) string {
	d := math.Abs(deviationPct)
	switch {
	case d >= p.MaxPainStrongPct:
		return TierStrong
	case d >= p.MaxPainModeratePct:
		return TierModerate
	}
	return TierWeak
}

func chainSpot(st *analysis.InstrumentState, c *models.ChainSnapshot) float64 {
	if c.SpotPrice > 0 {
		return c.SpotPrice
	}
	return st.Spot()
}

// maxPainOf returns the chain's max pain and whether it had to be computed.
func maxPainOf(c *models.ChainSnapshot) (float64, bool) {
	if c.MaxPain > 0 {
		return c.MaxPain, false
	}
	return c.ComputeMaxPain(), true
}

// DetectMaxPain signals the pull of max pain on spot. Max pain above spot
// is bullish.
func DetectMaxPain(st *analysis.InstrumentState, p Profile) (bool, error) {
	c, err := currentChain(st)
	if err != nil {
		return false, err
	}
	spot := chainSpot(st, c)
	mp, computed := maxPainOf(c)
	if spot <= 0 || mp <= 0 {
		return false, apperrors.Unavailable("%s: no spot or max pain", st.Symbol)
	}

	sig := MaxPainSignal{
		Expiry:       c.ExpiryKey(),
		MaxPain:      mp,
		Spot:         spot,
		DeviationPct: (mp - spot) / spot * 100,
		Computed:     computed,
	}
	sig.Tier = p.Tier(sig.DeviationPct)
	if sig.Tier == TierWeak {
		return false, nil
	}
	sentiment := analysis.Bullish
	if sig.DeviationPct < 0 {
		sentiment = analysis.Bearish
	}
	st.Record(sentiment, analysis.TypeMaxPain, sig)
	return true, nil
}

// MaxPainTrendSignal is the payload of max_pain_trend.
type MaxPainTrendSignal struct {
	Previous     float64 `json:"previous"`
	Latest       float64 `json:"latest"`
	Spot         float64 `json:"spot"`
	ShiftPct     float64 `json:"shift_pct"`
	DeviationPct float64 `json:"deviation_pct"`
	Pattern      string  `json:"pattern"`
	// ATMFrom and ATMTo are the ATM strikes of the last two trading dates,
	// zero when fewer dates were captured.
	ATMFrom float64 `json:"atm_from,omitempty"`
	ATMTo   float64 `json:"atm_to,omitempty"`
}

func (s MaxPainTrendSignal) Summary() string {
	out := fmt.Sprintf("Max pain %s: %.0f -> %.0f, spot %.2f (%+.2f%%)", s.Pattern, s.Previous, s.Latest, s.Spot, s.DeviationPct)
	if s.ATMFrom > 0 && s.ATMTo > 0 {
		out += fmt.Sprintf(", ATM %.0f -> %.0f", s.ATMFrom, s.ATMTo)
	}
	return out
}

// DetectMaxPainTrend compares the two most recent max-pain readings with
// spot. Max pain moving towards spot is converging and neutral; moving away
// is diverging and points to the side max pain sits on.
func DetectMaxPainTrend(st *analysis.InstrumentState, p Profile) (bool, error) {
	if st.Options == nil || len(st.Options.MaxPainHistory) < 2 {
		return false, apperrors.Unavailable("%s: need two max-pain readings", st.Symbol)
	}
	spot := st.Spot()
	if spot <= 0 {
		return false, apperrors.Unavailable("%s: no spot price", st.Symbol)
	}
	hist := st.Options.MaxPainHistory
	prev, latest := hist[len(hist)-2], hist[len(hist)-1]
	if prev <= 0 || latest <= 0 {
		return false, apperrors.Unavailable("%s: max-pain history has gaps", st.Symbol)
	}

	sig := MaxPainTrendSignal{
		Previous:     prev,
		Latest:       latest,
		Spot:         spot,
		ShiftPct:     (latest - prev) / spot * 100,
		DeviationPct: (latest - spot) / spot * 100,
	}
	if math.Abs(sig.ShiftPct) < p.MaxPainShiftPct {
		return false, nil
	}
	if trail := st.Options.ATMTrail(); len(trail) >= 2 {
		sig.ATMFrom = trail[len(trail)-2].Row.Strike
		sig.ATMTo = trail[len(trail)-1].Row.Strike
	}

	before, after := math.Abs(prev-spot), math.Abs(latest-spot)
	var sentiment analysis.Sentiment
	switch {
	case after < before:
		sig.Pattern, sentiment = "CONVERGING", analysis.Neutral
	case after > before && latest > spot:
		sig.Pattern, sentiment = "DIVERGING", analysis.Bullish
	case after > before && latest < spot:
		sig.Pattern, sentiment = "DIVERGING", analysis.Bearish
	default:
		return false, nil
	}
	st.Record(sentiment, analysis.TypeMaxPainTrend, sig)
	return true, nil
}

// AlignmentSignal is the payload of max_pain_pcr_alignment.
type AlignmentSignal struct {
	Expiry      string             `json:"expiry"`
	MaxPainBias analysis.Sentiment `json:"max_pain_bias"`
	BiasSource  string             `json:"bias_source"`
	PCRBias     analysis.Sentiment `json:"pcr_bias"`
	PCR         float64            `json:"pcr"`
	Aligned     bool               `json:"aligned"`
}

func (s AlignmentSignal) Summary() string {
	verdict := "conflicts with"
	if s.Aligned {
		verdict = "agrees with"
	}
	return fmt.Sprintf("Max pain bias %s %s PCR bias %s (PCR %.2f)", s.MaxPainBias, verdict, s.PCRBias, s.PCR)
}

// maxPainBias prefers the provider's bias and otherwise derives it from the
// max-pain deviation.
func maxPainBias(c *models.ChainSnapshot, spot float64, p Profile) (analysis.Sentiment, string) {
	switch strings.ToUpper(strings.TrimSpace(c.MaxPainBias)) {
	case string(analysis.Bullish):
		return analysis.Bullish, "provider"
	case string(analysis.Bearish):
		return analysis.Bearish, "provider"
	case string(analysis.Neutral):
		return analysis.Neutral, "provider"
	}
	mp, _ := maxPainOf(c)
	if mp <= 0 || spot <= 0 {
		return analysis.Neutral, "derived"
	}
	dev := (mp - spot) / spot * 100
	switch {
	case dev >= p.MaxPainModeratePct:
		return analysis.Bullish, "derived"
	case dev <= -p.MaxPainModeratePct:
		return analysis.Bearish, "derived"
	}
	return analysis.Neutral, "derived"
}

// DetectAlignment cross-checks the max-pain bias with the PCR bias of the
// same expiry. Agreement carries the shared direction; conflict is neutral.
func DetectAlignment(st *analysis.InstrumentState, p Profile) (bool, error) {
	c, v, err := currentPCR(st)
	if err != nil {
		return false, err
	}
	mpBias, source := maxPainBias(c, chainSpot(st, c), p)
	pcrBias := p.Bias(v)
	if mpBias == analysis.Neutral || pcrBias == analysis.Neutral {
		return false, nil
	}

	sig := AlignmentSignal{
		Expiry:      c.ExpiryKey(),
		MaxPainBias: mpBias,
		BiasSource:  source,
		PCRBias:     pcrBias,
		PCR:         v,
		Aligned:     mpBias == pcrBias,
	}
	sentiment := analysis.Neutral
	if sig.Aligned {
		sentiment = mpBias
	}
	st.Record(sentiment, analysis.TypeMaxPainPCRAlignment, sig)
	return true, nil
}
