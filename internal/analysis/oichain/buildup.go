package oichain

import (
	"fmt"
	"math"

	"fno-signals/internal/analysis"
	"fno-signals/internal/models"
)

// BuildupSignal is the payload of oi_heavy_writing and oi_dominant_writing.
type BuildupSignal struct {
	Expiry           string    `json:"expiry"`
	Side             string    `json:"side"`
	Strength         string    `json:"strength"`
	CallChange       int64     `json:"call_change"`
	PutChange        int64     `json:"put_change"`
	Ratio            Ratio     `json:"ratio"`
	QualifyingCalls  int       `json:"qualifying_calls"`
	QualifyingPuts   int       `json:"qualifying_puts"`
	TotalChangePct   float64   `json:"total_change_pct"`
	QualifiedStrikes []float64 `json:"qualified_strikes"`
}

func (s BuildupSignal) Summary() string {
	return fmt.Sprintf("%s %s writing: calls %+d vs puts %+d (ratio %s, %d/%d strikes)",
		s.Strength, s.Side, s.CallChange, s.PutChange, s.Ratio, s.QualifyingCalls, s.QualifyingPuts)
}

// qualifies reports whether a strike's same-side OI grew by at least minPct
// percent, or opened from zero.
func qualifies(prev, cur int64, minPct float64) bool {
	if cur-prev <= 0 {
		return false
	}
	if prev <= 0 {
		return cur > 0
	}
	return float64(cur-prev)/float64(prev)*100 >= minPct
}

type bandChange struct {
	call, put           int64
	qualCalls, qualPuts []float64
}

func scanBand(c *models.ChainSnapshot, spot float64, p Profile) bandChange {
	var b bandChange
	lo := spot * (1 - p.BuildupBandPct/100)
	hi := spot * (1 + p.BuildupBandPct/100)
	for _, r := range c.Strikes {
		if r.Strike < lo || r.Strike > hi {
			continue
		}
		b.call += r.CallOIChange()
		b.put += r.PutOIChange()
		if qualifies(r.PrevCallOI, r.CallOI, p.MinStrikeChangePct) {
			b.qualCalls = append(b.qualCalls, r.Strike)
		}
		if qualifies(r.PrevPutOI, r.PutOI, p.MinStrikeChangePct) {
			b.qualPuts = append(b.qualPuts, r.Strike)
		}
	}
	return b
}

// DetectBuildup flags one-sided option writing near spot. Heavy writing
// outranks dominant writing; call writing is bearish, put writing bullish.
func DetectBuildup(st *analysis.InstrumentState, p Profile) (bool, error) {
	return eachChain(st, p, func(c *models.ChainSnapshot, spot float64) bool {
		callTotal, putTotal := c.Totals()
		total := callTotal + putTotal
		if total <= 0 {
			return false
		}
		dCall, dPut := c.TotalChanges()
		totalChangePct := (math.Abs(float64(dCall)) + math.Abs(float64(dPut))) / float64(total) * 100
		if totalChangePct < p.MinTotalChangePct {
			return false
		}

		band := scanBand(c, spot, p)
		callRatio, callOK := NewRatio(float64(band.call), float64(band.put))
		putRatio, putOK := NewRatio(float64(band.put), float64(band.call))

		sig := BuildupSignal{
			Expiry:          c.ExpiryKey(),
			CallChange:      band.call,
			PutChange:       band.put,
			QualifyingCalls: len(band.qualCalls),
			QualifyingPuts:  len(band.qualPuts),
			TotalChangePct:  totalChangePct,
		}
		bothPositive := band.call > 0 && band.put > 0

		switch {
		case callOK && callRatio.AtLeast(p.HeavyRatio) && len(band.qualCalls) >= p.MinQualifyingStrikes:
			sig.Side, sig.Strength, sig.Ratio, sig.QualifiedStrikes = "CALL", "HEAVY", callRatio, band.qualCalls
			st.Record(analysis.Bearish, analysis.TypeOIHeavyWriting, sig)
		case putOK && putRatio.AtLeast(p.HeavyRatio) && len(band.qualPuts) >= p.MinQualifyingStrikes:
			sig.Side, sig.Strength, sig.Ratio, sig.QualifiedStrikes = "PUT", "HEAVY", putRatio, band.qualPuts
			st.Record(analysis.Bullish, analysis.TypeOIHeavyWriting, sig)
		case bothPositive && callRatio.IsFinite() && callRatio.AtLeast(p.DominantRatio):
			sig.Side, sig.Strength, sig.Ratio, sig.QualifiedStrikes = "CALL", "DOMINANT", callRatio, band.qualCalls
			st.Record(analysis.Bearish, analysis.TypeOIDominantWriting, sig)
		case bothPositive && putRatio.IsFinite() && putRatio.AtLeast(p.DominantRatio):
			sig.Side, sig.Strength, sig.Ratio, sig.QualifiedStrikes = "PUT", "DOMINANT", putRatio, band.qualPuts
			st.Record(analysis.Bullish, analysis.TypeOIDominantWriting, sig)
		default:
			return false
		}
		return true
	})
}
