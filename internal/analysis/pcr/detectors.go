package pcr

import (
	"fmt"
	"math"

	"fno-signals/internal/analysis"
	apperrors "fno-signals/internal/errors"
)

// ZoneSignal is the payload of pcr_extreme and pcr_bias.
type ZoneSignal struct {
	Expiry    string  `json:"expiry"`
	PCR       float64 `json:"pcr"`
	Threshold float64 `json:"threshold"`
	Zone      string  `json:"zone"`
}

func (s ZoneSignal) Summary() string {
	return fmt.Sprintf("PCR %.2f %s (threshold %.2f)", s.PCR, s.Zone, s.Threshold)
}

// DetectExtreme reads extreme PCR as crowding and signals against it.
func DetectExtreme(st *analysis.InstrumentState, p Profile) (bool, error) {
	c, v, err := currentPCR(st)
	if err != nil {
		return false, err
	}
	sig := ZoneSignal{Expiry: c.ExpiryKey(), PCR: v}
	switch {
	case v <= p.ExtremeLow:
		sig.Zone, sig.Threshold = "EXTREME_LOW", p.ExtremeLow
		st.Record(analysis.Bullish, analysis.TypePCRExtreme, sig)
	case v >= p.ExtremeHigh:
		sig.Zone, sig.Threshold = "EXTREME_HIGH", p.ExtremeHigh
		st.Record(analysis.Bearish, analysis.TypePCRExtreme, sig)
	default:
		return false, nil
	}
	return true, nil
}

// DetectBias signals the directional PCR bias outside the neutral band and
// inside the extremes.
func DetectBias(st *analysis.InstrumentState, p Profile) (bool, error) {
	c, v, err := currentPCR(st)
	if err != nil {
		return false, err
	}
	if v <= p.ExtremeLow || v >= p.ExtremeHigh {
		return false, nil
	}
	sig := ZoneSignal{Expiry: c.ExpiryKey(), PCR: v}
	sentiment := p.Bias(v)
	switch sentiment {
	case analysis.Bullish:
		sig.Zone, sig.Threshold = "PUT_HEAVY", p.BiasHigh
	case analysis.Bearish:
		sig.Zone, sig.Threshold = "CALL_HEAVY", p.BiasLow
	default:
		return false, nil
	}
	st.Record(sentiment, analysis.TypePCRBias, sig)
	return true, nil
}

// TrendSignal is the payload of pcr_trend.
type TrendSignal struct {
	Series    []float64 `json:"series"`
	ChangePct float64   `json:"change_pct"`
	Direction string    `json:"direction"`
}

func (s TrendSignal) Summary() string {
	return fmt.Sprintf("PCR %s %.2f -> %.2f (%+.1f%%)", s.Direction, s.Series[0], s.Series[len(s.Series)-1], s.ChangePct)
}

// pcrSeries returns the last n positive PCR readings of the history.
func pcrSeries(st *analysis.InstrumentState, n int) []float64 {
	history := st.ChainHistory()
	series := make([]float64, 0, n)
	for i := len(history) - 1; i >= 0 && len(series) < n; i-- {
		if v := history[i].EffectivePCR(); v > 0 {
			series = append(series, v)
		}
	}
	for i, j := 0, len(series)-1; i < j; i, j = i+1, j-1 {
		series[i], series[j] = series[j], series[i]
	}
	return series
}

func strictly(series []float64, up bool) bool {
	for i := 1; i < len(series); i++ {
		if up && series[i] <= series[i-1] {
			return false
		}
		if !up && series[i] >= series[i-1] {
			return false
		}
	}
	return true
}

// DetectTrend signals a strictly monotonic PCR run over the last
// TrendPoints readings. A rising PCR is bullish.
func DetectTrend(st *analysis.InstrumentState, p Profile) (bool, error) {
	series := pcrSeries(st, p.TrendPoints)
	if len(series) < p.TrendPoints {
		return false, apperrors.Unavailable("%s: %d PCR readings, need %d", st.Symbol, len(series), p.TrendPoints)
	}
	first, last := series[0], series[len(series)-1]
	sig := TrendSignal{Series: series, ChangePct: (last - first) / first * 100}
	if math.Abs(sig.ChangePct) < p.TrendMinPct {
		return false, nil
	}

	var sentiment analysis.Sentiment
	switch {
	case strictly(series, true):
		sig.Direction, sentiment = "RISING", analysis.Bullish
	case strictly(series, false):
		sig.Direction, sentiment = "FALLING", analysis.Bearish
	default:
		return false, nil
	}
	st.Record(sentiment, analysis.TypePCRTrend, sig)
	return true, nil
}

// DivergenceSignal is the payload of pcr_divergence.
type DivergenceSignal struct {
	NearExpiry string  `json:"near_expiry"`
	NextExpiry string  `json:"next_expiry"`
	NearPCR    float64 `json:"near_pcr"`
	NextPCR    float64 `json:"next_pcr"`
	Gap        float64 `json:"gap"`
}

func (s DivergenceSignal) Summary() string {
	return fmt.Sprintf("PCR %s %.2f vs %s %.2f (gap %.2f)", s.NearExpiry, s.NearPCR, s.NextExpiry, s.NextPCR, s.Gap)
}

// DetectDivergence notes when the two nearest expiries disagree on PCR.
func DetectDivergence(st *analysis.InstrumentState, p Profile) (bool, error) {
	near, next := st.CurrentChain(), st.NextChain()
	if near.IsEmpty() || next.IsEmpty() {
		return false, apperrors.Unavailable("%s: need two expiries for PCR divergence", st.Symbol)
	}
	a, b := near.EffectivePCR(), next.EffectivePCR()
	if a <= 0 || b <= 0 {
		return false, apperrors.Unavailable("%s: PCR undefined on an expiry", st.Symbol)
	}
	gap := math.Abs(a - b)
	if gap <= p.DivergenceGap {
		return false, nil
	}
	st.Record(analysis.Neutral, analysis.TypePCRDivergence, DivergenceSignal{
		NearExpiry: near.ExpiryKey(),
		NextExpiry: next.ExpiryKey(),
		NearPCR:    a,
		NextPCR:    b,
		Gap:        gap,
	})
	return true, nil
}
