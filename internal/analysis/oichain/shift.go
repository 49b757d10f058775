package oichain

import (
	"fmt"

	"fno-signals/internal/analysis"
	"fno-signals/internal/models"
)

// Position places a writing center relative to spot.
type Position string

const (
	PositionNone      Position = "NONE"
	PositionBelow     Position = "BELOW"
	PositionNearPrice Position = "NEAR_PRICE"
	PositionAbove     Position = "ABOVE"
)

// Shift patterns.
const (
	PatternCallsBelowSpot = "CALLS_BELOW_SPOT"
	PatternPutsAboveSpot  = "PUTS_ABOVE_SPOT"
	PatternCallPressure   = "CALL_PRESSURE"
	PatternPutPressure    = "PUT_PRESSURE"
)

// SideFlow summarises one side's OI additions and removals.
type SideFlow struct {
	Added    int64    `json:"added"`
	Removed  int64    `json:"removed"`
	Center   float64  `json:"center"`
	Position Position `json:"position"`
}

// ShiftSignal is the payload of oi_shift.
type ShiftSignal struct {
	Expiry  string   `json:"expiry"`
	Pattern string   `json:"pattern"`
	Spot    float64  `json:"spot"`
	Calls   SideFlow `json:"calls"`
	Puts    SideFlow `json:"puts"`
}

func (s ShiftSignal) Summary() string {
	return fmt.Sprintf("%s: new calls centred %.0f (%s), new puts centred %.0f (%s)",
		s.Pattern, s.Calls.Center, s.Calls.Position, s.Puts.Center, s.Puts.Position)
}

// WeightedCenter returns Σ(strike×Δ)/ΣΔ over positive deltas, and the
// summed additions. It reports false when nothing was added.
func WeightedCenter(strikes []float64, deltas []int64) (float64, int64, bool) {
	var weighted float64
	var added int64
	for i, d := range deltas {
		if d <= 0 {
			continue
		}
		weighted += strikes[i] * float64(d)
		added += d
	}
	if added == 0 {
		return 0, 0, false
	}
	return weighted / float64(added), added, true
}

func classify(center, spot, bandPct float64) Position {
	band := spot * bandPct / 100
	switch {
	case center < spot-band:
		return PositionBelow
	case center > spot+band:
		return PositionAbove
	default:
		return PositionNearPrice
	}
}

func sideFlow(c *models.ChainSnapshot, change func(models.StrikeRow) int64, spot, bandPct float64) SideFlow {
	strikes := make([]float64, len(c.Strikes))
	deltas := make([]int64, len(c.Strikes))
	var flow SideFlow
	for i, r := range c.Strikes {
		strikes[i] = r.Strike
		deltas[i] = change(r)
		if deltas[i] < 0 {
			flow.Removed -= deltas[i]
		}
	}
	center, added, ok := WeightedCenter(strikes, deltas)
	if !ok {
		flow.Position = PositionNone
		return flow
	}
	flow.Added, flow.Center = added, center
	flow.Position = classify(center, spot, bandPct)
	return flow
}

// DetectShift flags abnormal migration of new writing: calls written below
// spot, puts written above spot, or an extreme imbalance of additions.
func DetectShift(st *analysis.InstrumentState, p Profile) (bool, error) {
	return eachChain(st, p, func(c *models.ChainSnapshot, spot float64) bool {
		calls := sideFlow(c, models.StrikeRow.CallOIChange, spot, p.ShiftBandPct)
		puts := sideFlow(c, models.StrikeRow.PutOIChange, spot, p.ShiftBandPct)
		sig := ShiftSignal{Expiry: c.ExpiryKey(), Spot: spot, Calls: calls, Puts: puts}

		putsSupportive := puts.Position == PositionNearPrice || puts.Position == PositionAbove
		callsResisting := calls.Position == PositionNearPrice || calls.Position == PositionBelow

		var sentiment analysis.Sentiment
		switch {
		case calls.Position == PositionBelow && !putsSupportive:
			sig.Pattern, sentiment = PatternCallsBelowSpot, analysis.Bearish
		case puts.Position == PositionAbove && !callsResisting:
			sig.Pattern, sentiment = PatternPutsAboveSpot, analysis.Bullish
		case calls.Added > 0 && puts.Added > 0 && float64(calls.Added) >= p.ShiftImbalance*float64(puts.Added):
			sig.Pattern, sentiment = PatternCallPressure, analysis.Bearish
		case calls.Added > 0 && puts.Added > 0 && float64(puts.Added) >= p.ShiftImbalance*float64(calls.Added):
			sig.Pattern, sentiment = PatternPutPressure, analysis.Bullish
		default:
			return false
		}
		st.Record(sentiment, analysis.TypeOIShift, sig)
		return true
	})
}
