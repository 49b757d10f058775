package oichain

import (
	"fmt"
	"math"

	"fno-signals/internal/analysis"
	"fno-signals/internal/analysis/indicators"
	"fno-signals/internal/models"
)

// Level is a strike carrying dominant open interest on one side.
type Level struct {
	Strike    float64 `json:"strike"`
	OI        int64   `json:"oi"`
	SideMean  float64 `json:"side_mean"`
	Dominance float64 `json:"dominance"`
}

// BreachSignal is the payload of oi_support_resistance.
type BreachSignal struct {
	Expiry      string  `json:"expiry"`
	Kind        string  `json:"kind"`
	Level       Level   `json:"level"`
	Spot        float64 `json:"spot"`
	DistancePct float64 `json:"distance_pct"`
}

func (s BreachSignal) Summary() string {
	return fmt.Sprintf("Spot %.2f broke %s %.0f (OI %d, %.1fx avg) by %+.2f%%",
		s.Spot, s.Kind, s.Level.Strike, s.Level.OI, s.Level.Dominance, s.DistancePct)
}

// RangeSignal is the informational payload of oi_range.
type RangeSignal struct {
	Expiry     string  `json:"expiry"`
	Spot       float64 `json:"spot"`
	Support    *Level  `json:"support,omitempty"`
	Resistance *Level  `json:"resistance,omitempty"`
}

func (s RangeSignal) Summary() string {
	lo, hi := "-", "-"
	if s.Support != nil {
		lo = fmt.Sprintf("%.0f", s.Support.Strike)
	}
	if s.Resistance != nil {
		hi = fmt.Sprintf("%.0f", s.Resistance.Strike)
	}
	return fmt.Sprintf("Spot %.2f inside OI range %s - %s", s.Spot, lo, hi)
}

// dominantLevel finds the max-OI strike of one side and keeps it only when
// its OI reaches factor times the mean of the side's nonzero strikes.
func dominantLevel(rows []models.StrikeRow, oi func(models.StrikeRow) int64, factor float64) (Level, bool) {
	var (
		nonzero []float64
		best    models.StrikeRow
		bestOI  int64 = -1
	)
	for _, r := range rows {
		v := oi(r)
		if v <= 0 {
			continue
		}
		nonzero = append(nonzero, float64(v))
		if v > bestOI || (v == bestOI && r.Strike < best.Strike) {
			best, bestOI = r, v
		}
	}
	if len(nonzero) == 0 {
		return Level{}, false
	}
	mean := indicators.Mean(nonzero)
	if float64(bestOI) < factor*mean {
		return Level{}, false
	}
	return Level{
		Strike:    best.Strike,
		OI:        bestOI,
		SideMean:  mean,
		Dominance: float64(bestOI) / mean,
	}, true
}

func callOI(r models.StrikeRow) int64 { return r.CallOI }
func putOI(r models.StrikeRow) int64  { return r.PutOI }

// DetectSupportResistance flags spot breaking through a dominant call
// (resistance) or put (support) strike. Without a breach it records the
// range as a neutral note.
func DetectSupportResistance(st *analysis.InstrumentState, p Profile) (bool, error) {
	return eachChain(st, p, func(c *models.ChainSnapshot, spot float64) bool {
		resistance, hasR := dominantLevel(c.Strikes, callOI, p.DominanceFactor)
		support, hasS := dominantLevel(c.Strikes, putOI, p.DominanceFactor)
		if !hasR && !hasS {
			return false
		}

		breached := false
		if hasR && spot > resistance.Strike {
			st.Record(analysis.Bullish, analysis.TypeOISupportResistance, BreachSignal{
				Expiry:      c.ExpiryKey(),
				Kind:        "RESISTANCE",
				Level:       resistance,
				Spot:        spot,
				DistancePct: pctFrom(spot, resistance.Strike),
			})
			breached = true
		}
		if hasS && spot < support.Strike {
			st.Record(analysis.Bearish, analysis.TypeOISupportResistance, BreachSignal{
				Expiry:      c.ExpiryKey(),
				Kind:        "SUPPORT",
				Level:       support,
				Spot:        spot,
				DistancePct: pctFrom(spot, support.Strike),
			})
			breached = true
		}
		if breached {
			return true
		}

		rng := RangeSignal{Expiry: c.ExpiryKey(), Spot: spot}
		if hasS {
			rng.Support = &support
		}
		if hasR {
			rng.Resistance = &resistance
		}
		st.Record(analysis.Neutral, analysis.TypeOIRange, rng)
		return true
	})
}

// Wall is an outlier strike on one side.
type Wall struct {
	Strike      float64 `json:"strike"`
	OI          int64   `json:"oi"`
	Threshold   float64 `json:"threshold"`
	DistancePct float64 `json:"distance_pct"`
}

// WallSignal is the payload of oi_wall.
type WallSignal struct {
	Expiry    string  `json:"expiry"`
	Spot      float64 `json:"spot"`
	CallWall  *Wall   `json:"call_wall,omitempty"`
	PutWall   *Wall   `json:"put_wall,omitempty"`
	Nearer    string  `json:"nearer"`
	Asymmetry *Ratio  `json:"asymmetry,omitempty"`
}

func (s WallSignal) Summary() string {
	w := s.CallWall
	if s.Nearer == "PUT" {
		w = s.PutWall
	}
	if s.Asymmetry != nil {
		return fmt.Sprintf("%s wall at %.0f (OI %d) is nearer, asymmetry %s", s.Nearer, w.Strike, w.OI, s.Asymmetry)
	}
	return fmt.Sprintf("%s wall at %.0f (OI %d)", s.Nearer, w.Strike, w.OI)
}

// findWall returns the largest outlier strike of one side within the
// distance window. Outliers exceed mean + sigma*stdev over the side's
// nonzero strikes.
func findWall(rows []models.StrikeRow, oi func(models.StrikeRow) int64, spot float64, p Profile) (Wall, bool) {
	var values []float64
	for _, r := range rows {
		if v := oi(r); v > 0 {
			values = append(values, float64(v))
		}
	}
	if len(values) < 2 {
		return Wall{}, false
	}
	threshold := indicators.Mean(values) + p.WallSigma*indicators.StdDev(values)

	var (
		best  Wall
		found bool
	)
	for _, r := range rows {
		v := oi(r)
		if float64(v) <= threshold {
			continue
		}
		dist := math.Abs(r.Strike-spot) / spot * 100
		if dist > p.WallMaxDistancePct {
			continue
		}
		if !found || v > best.OI || (v == best.OI && dist < best.DistancePct) {
			best = Wall{Strike: r.Strike, OI: v, Threshold: threshold, DistancePct: dist}
			found = true
		}
	}
	return best, found
}

// DetectWalls flags statistical OI outliers near spot. With walls on both
// sides the nearer one decides, and only when the distances are uneven
// enough.
func DetectWalls(st *analysis.InstrumentState, p Profile) (bool, error) {
	return eachChain(st, p, func(c *models.ChainSnapshot, spot float64) bool {
		callWall, hasCall := findWall(c.Strikes, callOI, spot, p)
		putWall, hasPut := findWall(c.Strikes, putOI, spot, p)

		sig := WallSignal{Expiry: c.ExpiryKey(), Spot: spot}
		switch {
		case hasCall && hasPut:
			near, far := callWall.DistancePct, putWall.DistancePct
			nearer := "CALL"
			if putWall.DistancePct < callWall.DistancePct {
				near, far, nearer = putWall.DistancePct, callWall.DistancePct, "PUT"
			}
			ratio, _ := NewRatio(far, near)
			if far == 0 || !ratio.AtLeast(p.WallAsymmetry) {
				return false
			}
			sig.CallWall, sig.PutWall, sig.Nearer, sig.Asymmetry = &callWall, &putWall, nearer, &ratio
		case hasCall:
			sig.CallWall, sig.Nearer = &callWall, "CALL"
		case hasPut:
			sig.PutWall, sig.Nearer = &putWall, "PUT"
		default:
			return false
		}

		sentiment := analysis.Bearish
		if sig.Nearer == "PUT" {
			sentiment = analysis.Bullish
		}
		st.Record(sentiment, analysis.TypeOIWall, sig)
		return true
	})
}
