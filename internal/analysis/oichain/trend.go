package oichain

import (
	"fmt"
	"math"

	"fno-signals/internal/analysis"
	apperrors "fno-signals/internal/errors"
	"fno-signals/internal/models"
)

// Direction of a series over a window.
type Direction string

const (
	DirRising  Direction = "RISING"
	DirFalling Direction = "FALLING"
	DirFlat    Direction = "FLAT"
)

// Intraday trend patterns.
const (
	PatternCallWriting = "CALL_WRITING"
	PatternPutWriting  = "PUT_WRITING"
	PatternUnwinding   = "UNWINDING"
	PatternCallSurge   = "CALL_SURGE"
	PatternPutSurge    = "PUT_SURGE"
)

// SeriesTrend describes one series over the trend window.
type SeriesTrend struct {
	First     float64   `json:"first"`
	Last      float64   `json:"last"`
	ChangePct float64   `json:"change_pct"`
	Direction Direction `json:"direction"`
}

// IntradayTrendSignal is the payload of oi_intraday_trend.
type IntradayTrendSignal struct {
	Pattern      string      `json:"pattern"`
	Snapshots    int         `json:"snapshots"`
	CallOI       SeriesTrend `json:"call_oi"`
	PutOI        SeriesTrend `json:"put_oi"`
	PCR          SeriesTrend `json:"pcr"`
	BreakoutRisk bool        `json:"breakout_risk"`
}

func (s IntradayTrendSignal) Summary() string {
	out := fmt.Sprintf("%s over %d snapshots: calls %+.1f%%, puts %+.1f%%, PCR %.2f -> %.2f",
		s.Pattern, s.Snapshots, s.CallOI.ChangePct, s.PutOI.ChangePct, s.PCR.First, s.PCR.Last)
	if s.BreakoutRisk {
		out += " (breakout risk)"
	}
	return out
}

// MostlyDirection classifies a series as rising or falling when every
// adjacent step but at most one moves that way and the endpoints agree.
func MostlyDirection(series []float64) Direction {
	if len(series) < 2 {
		return DirFlat
	}
	var ups, downs int
	for i := 1; i < len(series); i++ {
		switch {
		case series[i] > series[i-1]:
			ups++
		case series[i] < series[i-1]:
			downs++
		}
	}
	first, last := series[0], series[len(series)-1]
	switch {
	case last > first && downs <= 1 && ups >= len(series)-2:
		return DirRising
	case last < first && ups <= 1 && downs >= len(series)-2:
		return DirFalling
	}
	return DirFlat
}

func seriesTrend(series []float64) SeriesTrend {
	first, last := series[0], series[len(series)-1]
	return SeriesTrend{
		First:     first,
		Last:      last,
		ChangePct: pctFrom(last, first),
		Direction: MostlyDirection(series),
	}
}

// gated reports whether the trend moved dir by at least minPct.
func (t SeriesTrend) gated(dir Direction, minPct float64) bool {
	if t.Direction != dir {
		return false
	}
	return math.Abs(t.ChangePct) >= minPct
}

func trendWindow(st *analysis.InstrumentState, minSnapshots, window int) ([]models.ChainSnapshot, error) {
	history := st.ChainHistory()
	if len(history) < minSnapshots {
		return nil, apperrors.Unavailable("%s: %d snapshots retained, need %d", st.Symbol, len(history), minSnapshots)
	}
	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}
	return history, nil
}

// DetectIntradayTrend reads the retained snapshots and classifies call
// OI, put OI and PCR trends into writing, surge or unwinding patterns.
func DetectIntradayTrend(st *analysis.InstrumentState, p Profile) (bool, error) {
	window, err := trendWindow(st, p.TrendMinSnapshots, p.TrendWindow)
	if err != nil {
		return false, err
	}

	calls := make([]float64, len(window))
	puts := make([]float64, len(window))
	pcrs := make([]float64, len(window))
	for i := range window {
		c, pt := window[i].Totals()
		calls[i], puts[i] = float64(c), float64(pt)
		pcrs[i] = window[i].EffectivePCR()
	}
	if calls[0] == 0 || puts[0] == 0 {
		return false, apperrors.Unavailable("%s: empty OI at window start", st.Symbol)
	}

	sig := IntradayTrendSignal{
		Snapshots: len(window),
		CallOI:    seriesTrend(calls),
		PutOI:     seriesTrend(puts),
		PCR:       seriesTrend(pcrs),
	}
	callUp := sig.CallOI.gated(DirRising, p.TrendOIMinPct)
	callDown := sig.CallOI.gated(DirFalling, p.TrendOIMinPct)
	putUp := sig.PutOI.gated(DirRising, p.TrendOIMinPct)
	putDown := sig.PutOI.gated(DirFalling, p.TrendOIMinPct)
	pcrUp := sig.PCR.gated(DirRising, p.TrendPCRMinPct)
	pcrDown := sig.PCR.gated(DirFalling, p.TrendPCRMinPct)

	var sentiment analysis.Sentiment
	switch {
	case callUp && pcrDown:
		sig.Pattern, sentiment = PatternCallWriting, analysis.Bearish
	case putUp && pcrUp:
		sig.Pattern, sentiment = PatternPutWriting, analysis.Bullish
	case callDown && putDown:
		sig.Pattern, sentiment = PatternUnwinding, analysis.Neutral
		sig.BreakoutRisk = true
	case callUp && !putUp:
		sig.Pattern, sentiment = PatternCallSurge, analysis.Bearish
	case putUp && !callUp:
		sig.Pattern, sentiment = PatternPutSurge, analysis.Bullish
	default:
		return false, nil
	}
	st.Record(sentiment, analysis.TypeOIIntradayTrend, sig)
	return true, nil
}

// S/R shift narratives.
const (
	NarrativeBothUp       = "BOTH_SHIFTING_UP"
	NarrativeBothDown     = "BOTH_SHIFTING_DOWN"
	NarrativeSqueeze      = "RANGE_SQUEEZE"
	NarrativeExpansion    = "RANGE_EXPANSION"
	NarrativeOneSidedUp   = "ONE_SIDED_UP"
	NarrativeOneSidedDown = "ONE_SIDED_DOWN"
)

// LevelShift is the displacement of one side's max-OI strike.
type LevelShift struct {
	From        float64 `json:"from"`
	To          float64 `json:"to"`
	Shift       float64 `json:"shift"`
	Steps       float64 `json:"steps"`
	Consistency float64 `json:"consistency"`
}

// SRShiftSignal is the payload of oi_sr_shift.
type SRShiftSignal struct {
	Narrative  string     `json:"narrative"`
	StrikeStep float64    `json:"strike_step"`
	Resistance LevelShift `json:"resistance"`
	Support    LevelShift `json:"support"`
}

func (s SRShiftSignal) Summary() string {
	return fmt.Sprintf("%s: resistance %.0f -> %.0f, support %.0f -> %.0f",
		s.Narrative, s.Resistance.From, s.Resistance.To, s.Support.From, s.Support.To)
}

// maxOIStrike returns the strike with the largest OI on one side, the lower
// strike winning ties.
func maxOIStrike(rows []models.StrikeRow, oi func(models.StrikeRow) int64) (float64, bool) {
	best, bestOI := 0.0, int64(0)
	for _, r := range rows {
		v := oi(r)
		if v > bestOI || (v == bestOI && v > 0 && r.Strike < best) {
			best, bestOI = r.Strike, v
		}
	}
	return best, bestOI > 0
}

// levelShift measures the net displacement of a level series. The shift is
// zeroed when it is smaller than minSteps strike steps or when too few
// step-to-step moves agree with its sign.
func levelShift(levels []float64, step, minSteps, consistency float64) LevelShift {
	ls := LevelShift{From: levels[0], To: levels[len(levels)-1]}
	disp := ls.To - ls.From
	ls.Steps = disp / step
	if disp == 0 {
		return ls
	}

	var moves, agree int
	for i := 1; i < len(levels); i++ {
		d := levels[i] - levels[i-1]
		if d == 0 {
			continue
		}
		moves++
		if (d > 0) == (disp > 0) {
			agree++
		}
	}
	ls.Consistency = float64(agree) / float64(moves)

	if math.Abs(ls.Steps) >= minSteps && ls.Consistency >= consistency {
		ls.Shift = disp
	}
	return ls
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// DetectSRShift tracks the max-OI call and put strikes over the retained
// snapshots and reads the pair of displacements as one of six narratives.
func DetectSRShift(st *analysis.InstrumentState, p Profile) (bool, error) {
	window, err := trendWindow(st, p.SRMinSnapshots, 0)
	if err != nil {
		return false, err
	}
	latest := window[len(window)-1]
	step := latest.StrikeStep()
	if step <= 0 {
		return false, apperrors.Unavailable("%s: strike ladder too short", st.Symbol)
	}

	resistance := make([]float64, 0, len(window))
	support := make([]float64, 0, len(window))
	for i := range window {
		r, okR := maxOIStrike(window[i].Strikes, callOI)
		s, okS := maxOIStrike(window[i].Strikes, putOI)
		if !okR || !okS {
			continue
		}
		resistance = append(resistance, r)
		support = append(support, s)
	}
	if len(resistance) < p.SRMinSnapshots {
		return false, apperrors.Unavailable("%s: too few usable snapshots for S/R shift", st.Symbol)
	}

	sig := SRShiftSignal{
		StrikeStep: step,
		Resistance: levelShift(resistance, step, p.SRMinShiftSteps, p.SRConsistency),
		Support:    levelShift(support, step, p.SRMinShiftSteps, p.SRConsistency),
	}

	var sentiment analysis.Sentiment
	rs, ss := sign(sig.Resistance.Shift), sign(sig.Support.Shift)
	switch {
	case rs > 0 && ss > 0:
		sig.Narrative, sentiment = NarrativeBothUp, analysis.Bullish
	case rs < 0 && ss < 0:
		sig.Narrative, sentiment = NarrativeBothDown, analysis.Bearish
	case rs < 0 && ss > 0:
		sig.Narrative, sentiment = NarrativeSqueeze, analysis.Neutral
	case rs > 0 && ss < 0:
		sig.Narrative, sentiment = NarrativeExpansion, analysis.Neutral
	case rs > 0 || ss > 0:
		sig.Narrative, sentiment = NarrativeOneSidedUp, analysis.Bullish
	case rs < 0 || ss < 0:
		sig.Narrative, sentiment = NarrativeOneSidedDown, analysis.Bearish
	default:
		return false, nil
	}
	st.Record(sentiment, analysis.TypeOISRShift, sig)
	return true, nil
}
