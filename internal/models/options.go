package models

import (
	"math"
	"sort"
	"time"
)

// StrikeRow is one strike of an option chain snapshot with the open interest
// from the current and previous capture.
type StrikeRow struct {
	Strike     float64 `json:"strike" yaml:"strike"`
	CallOI     int64   `json:"call_oi" yaml:"call_oi"`
	PutOI      int64   `json:"put_oi" yaml:"put_oi"`
	PrevCallOI int64   `json:"prev_call_oi" yaml:"prev_call_oi"`
	PrevPutOI  int64   `json:"prev_put_oi" yaml:"prev_put_oi"`
	CallLTP    float64 `json:"call_ltp,omitempty" yaml:"call_ltp"`
	PutLTP     float64 `json:"put_ltp,omitempty" yaml:"put_ltp"`
	CallIV     float64 `json:"call_iv,omitempty" yaml:"call_iv"`
	PutIV      float64 `json:"put_iv,omitempty" yaml:"put_iv"`
}

// CallOIChange returns the call OI change since the previous capture.
func (r StrikeRow) CallOIChange() int64 {
	return r.CallOI - r.PrevCallOI
}

// PutOIChange returns the put OI change since the previous capture.
func (r StrikeRow) PutOIChange() int64 {
	return r.PutOI - r.PrevPutOI
}

// ChainSnapshot is one periodic capture of an option chain for one expiry.
type ChainSnapshot struct {
	Symbol     string      `json:"symbol" yaml:"symbol"`
	Expiry     time.Time   `json:"expiry" yaml:"expiry"`
	CapturedAt time.Time   `json:"captured_at" yaml:"captured_at"`
	SpotPrice  float64     `json:"spot_price" yaml:"spot_price"`
	ATMStrike  float64     `json:"atm_strike" yaml:"atm_strike"`
	Strikes    []StrikeRow `json:"strikes" yaml:"strikes"`

	// Provider-supplied aggregates. Zero values are derived from Strikes.
	TotalCallOI       int64   `json:"total_call_oi" yaml:"total_call_oi"`
	TotalPutOI        int64   `json:"total_put_oi" yaml:"total_put_oi"`
	TotalCallOIChange int64   `json:"total_call_oi_change" yaml:"total_call_oi_change"`
	TotalPutOIChange  int64   `json:"total_put_oi_change" yaml:"total_put_oi_change"`
	PCR               float64 `json:"pcr" yaml:"pcr"`
	MaxPain           float64 `json:"max_pain,omitempty" yaml:"max_pain"`
	MaxPainBias       string  `json:"max_pain_bias,omitempty" yaml:"max_pain_bias"`
}

// ExpiryKey returns the expiry date formatted as used by stores and logs.
func (c *ChainSnapshot) ExpiryKey() string {
	return c.Expiry.Format("2006-01-02")
}

// IsEmpty reports whether the snapshot carries no usable strikes.
func (c *ChainSnapshot) IsEmpty() bool {
	return c == nil || len(c.Strikes) == 0
}

// Totals returns total call and put OI, preferring provider aggregates.
func (c *ChainSnapshot) Totals() (callOI, putOI int64) {
	if c.TotalCallOI > 0 || c.TotalPutOI > 0 {
		return c.TotalCallOI, c.TotalPutOI
	}
	for _, r := range c.Strikes {
		callOI += r.CallOI
		putOI += r.PutOI
	}
	return callOI, putOI
}

// TotalChanges returns the aggregate call and put OI change.
func (c *ChainSnapshot) TotalChanges() (callChange, putChange int64) {
	if c.TotalCallOIChange != 0 || c.TotalPutOIChange != 0 {
		return c.TotalCallOIChange, c.TotalPutOIChange
	}
	for _, r := range c.Strikes {
		callChange += r.CallOIChange()
		putChange += r.PutOIChange()
	}
	return callChange, putChange
}

// EffectivePCR returns the provider PCR or total put OI / total call OI.
func (c *ChainSnapshot) EffectivePCR() float64 {
	if c.PCR > 0 {
		return c.PCR
	}
	callOI, putOI := c.Totals()
	if callOI == 0 {
		return 0
	}
	return float64(putOI) / float64(callOI)
}

// StrikeLadder returns the sorted distinct strikes.
func (c *ChainSnapshot) StrikeLadder() []float64 {
	ladder := make([]float64, 0, len(c.Strikes))
	seen := make(map[float64]struct{}, len(c.Strikes))
	for _, r := range c.Strikes {
		if _, ok := seen[r.Strike]; ok {
			continue
		}
		seen[r.Strike] = struct{}{}
		ladder = append(ladder, r.Strike)
	}
	sort.Float64s(ladder)
	return ladder
}

// StrikeStep returns the smallest positive spacing in the strike ladder,
// or 0 when the ladder has fewer than two strikes.
func (c *ChainSnapshot) StrikeStep() float64 {
	ladder := c.StrikeLadder()
	step := 0.0
	for i := 1; i < len(ladder); i++ {
		d := ladder[i] - ladder[i-1]
		if d > 0 && (step == 0 || d < step) {
			step = d
		}
	}
	return step
}

// ATMRow returns the row at the ATM strike, or the strike nearest to spot.
func (c *ChainSnapshot) ATMRow() (StrikeRow, bool) {
	if c.IsEmpty() {
		return StrikeRow{}, false
	}
	target := c.ATMStrike
	if target == 0 {
		target = c.SpotPrice
	}
	best := c.Strikes[0]
	for _, r := range c.Strikes[1:] {
		if math.Abs(r.Strike-target) < math.Abs(best.Strike-target) {
			best = r
		}
	}
	return best, true
}

// ComputeMaxPain returns the strike at which the aggregate payout to option
// buyers at expiry is smallest.
func (c *ChainSnapshot) ComputeMaxPain() float64 {
	if c.IsEmpty() {
		return 0
	}
	bestStrike := 0.0
	bestPain := math.Inf(1)
	for _, candidate := range c.StrikeLadder() {
		var pain float64
		for _, r := range c.Strikes {
			if candidate > r.Strike {
				pain += float64(r.CallOI) * (candidate - r.Strike)
			}
			if candidate < r.Strike {
				pain += float64(r.PutOI) * (r.Strike - candidate)
			}
		}
		if pain < bestPain {
			bestPain = pain
			bestStrike = candidate
		}
	}
	return bestStrike
}

// EffectiveMaxPain returns the provider max pain or the computed one.
func (c *ChainSnapshot) EffectiveMaxPain() float64 {
	if c.MaxPain > 0 {
		return c.MaxPain
	}
	return c.ComputeMaxPain()
}

// FuturesSnapshot is one capture of the near-month futures contract.
type FuturesSnapshot struct {
	Symbol     string    `json:"symbol" yaml:"symbol"`
	Expiry     time.Time `json:"expiry" yaml:"expiry"`
	CapturedAt time.Time `json:"captured_at" yaml:"captured_at"`
	LTP        float64   `json:"ltp" yaml:"ltp"`
	PrevClose  float64   `json:"prev_close" yaml:"prev_close"`
	OI         int64     `json:"oi" yaml:"oi"`
	PrevOI     int64     `json:"prev_oi" yaml:"prev_oi"`
	SpotPrice  float64   `json:"spot_price" yaml:"spot_price"`
	Volume     int64     `json:"volume" yaml:"volume"`
}

// PriceChangePercent returns the LTP change versus the previous close.
func (f *FuturesSnapshot) PriceChangePercent() float64 {
	if f.PrevClose == 0 {
		return 0
	}
	return (f.LTP - f.PrevClose) / f.PrevClose * 100
}

// OIChangePercent returns the OI change versus the previous session.
func (f *FuturesSnapshot) OIChangePercent() float64 {
	if f.PrevOI == 0 {
		return 0
	}
	return float64(f.OI-f.PrevOI) / float64(f.PrevOI) * 100
}

// BasisPercent returns (futures - spot) / spot in percent.
func (f *FuturesSnapshot) BasisPercent() float64 {
	if f.SpotPrice == 0 {
		return 0
	}
	return (f.LTP - f.SpotPrice) / f.SpotPrice * 100
}
