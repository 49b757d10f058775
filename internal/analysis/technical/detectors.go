package technical

import (
	"fmt"

	"fno-signals/internal/analysis"
	"fno-signals/internal/analysis/indicators"
	apperrors "fno-signals/internal/errors"
)

// RSISignal is the payload of an rsi signal.
type RSISignal struct {
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Zone      string  `json:"zone"`
}

func (s RSISignal) Summary() string {
	return fmt.Sprintf("RSI %.1f %s (%.0f)", s.Value, s.Zone, s.Threshold)
}

// CrossoverSignal is the payload of macd_crossover and ema_crossover.
type CrossoverSignal struct {
	Indicator string  `json:"indicator"`
	Fast      float64 `json:"fast"`
	Slow      float64 `json:"slow"`
	Direction string  `json:"direction"`
}

func (s CrossoverSignal) Summary() string {
	return fmt.Sprintf("%s %s crossover (%.2f / %.2f)", s.Indicator, s.Direction, s.Fast, s.Slow)
}

// SuperTrendSignal is the payload of a supertrend flip.
type SuperTrendSignal struct {
	Level     float64 `json:"level"`
	Close     float64 `json:"close"`
	Direction string  `json:"direction"`
}

func (s SuperTrendSignal) Summary() string {
	return fmt.Sprintf("SuperTrend flipped %s at %.2f", s.Direction, s.Level)
}

// BreakoutSignal is the payload of prev_day_breakout.
type BreakoutSignal struct {
	Level       float64 `json:"level"`
	Close       float64 `json:"close"`
	DistancePct float64 `json:"distance_pct"`
	Side        string  `json:"side"`
}

func (s BreakoutSignal) Summary() string {
	return fmt.Sprintf("Close %.2f broke previous-day %s %.2f (%+.2f%%)", s.Close, s.Side, s.Level, s.DistancePct)
}

// VolumeSurgeSignal is the payload of volume_surge.
type VolumeSurgeSignal struct {
	Volume  int64   `json:"volume"`
	Average float64 `json:"average"`
	Ratio   float64 `json:"ratio"`
}

func (s VolumeSurgeSignal) Summary() string {
	return fmt.Sprintf("Volume %d is %.1fx the average", s.Volume, s.Ratio)
}

// indicatorErr maps indicator errors onto the detector error classes.
func indicatorErr(name string, err error) error {
	switch {
	case apperrors.Is(err, indicators.ErrInsufficientData):
		return apperrors.Unavailable("%s: %v", name, err)
	case apperrors.Is(err, indicators.ErrInvalidPeriod):
		return apperrors.NewConfigError(name, err.Error(), "invalid indicator period")
	}
	return apperrors.Wrap(err, name)
}

func detectRSI(st *analysis.InstrumentState, p Profile) (bool, error) {
	rsi := indicators.NewRSI(p.RSIPeriod)
	values, err := rsi.Calculate(st.Bars)
	if err != nil {
		return false, indicatorErr(rsi.Name(), err)
	}
	v := values[len(values)-1]

	switch {
	case v <= p.RSIOversold:
		st.Record(analysis.Bullish, analysis.TypeRSI, RSISignal{Value: v, Threshold: p.RSIOversold, Zone: "OVERSOLD"})
		return true, nil
	case v >= p.RSIOverbought:
		st.Record(analysis.Bearish, analysis.TypeRSI, RSISignal{Value: v, Threshold: p.RSIOverbought, Zone: "OVERBOUGHT"})
		return true, nil
	}
	return false, nil
}

// crossed classifies a cross of a over b between the last two points.
func crossed(aPrev, bPrev, a, b float64) (analysis.Sentiment, bool) {
	switch {
	case aPrev <= bPrev && a > b:
		return analysis.Bullish, true
	case aPrev >= bPrev && a < b:
		return analysis.Bearish, true
	}
	return analysis.Neutral, false
}

func direction(s analysis.Sentiment) string {
	if s == analysis.Bullish {
		return "BULLISH"
	}
	return "BEARISH"
}

func detectMACD(st *analysis.InstrumentState, p Profile) (bool, error) {
	macd := indicators.NewMACD(p.MACDFast, p.MACDSlow, p.MACDSignal)
	out, err := macd.Calculate(st.Bars)
	if err != nil {
		return false, indicatorErr(macd.Name(), err)
	}
	// One extra bar so the previous signal value exists.
	if len(st.Bars) < macd.Period()+1 {
		return false, apperrors.Unavailable("%s: need %d bars", macd.Name(), macd.Period()+1)
	}
	line := indicators.Last(out["macd"], 2)
	signal := indicators.Last(out["signal"], 2)

	sentiment, ok := crossed(line[0], signal[0], line[1], signal[1])
	if !ok {
		return false, nil
	}
	st.Record(sentiment, analysis.TypeMACDCrossover, CrossoverSignal{
		Indicator: "MACD",
		Fast:      line[1],
		Slow:      signal[1],
		Direction: direction(sentiment),
	})
	return true, nil
}

func detectEMA(st *analysis.InstrumentState, p Profile) (bool, error) {
	if len(st.Bars) < p.EMASlow+1 {
		return false, apperrors.Unavailable("EMA crossover: need %d bars, have %d", p.EMASlow+1, len(st.Bars))
	}
	fast, err := indicators.NewEMA(p.EMAFast).Calculate(st.Bars)
	if err != nil {
		return false, indicatorErr("EMA", err)
	}
	slow, err := indicators.NewEMA(p.EMASlow).Calculate(st.Bars)
	if err != nil {
		return false, indicatorErr("EMA", err)
	}
	f := indicators.Last(fast, 2)
	s := indicators.Last(slow, 2)

	sentiment, ok := crossed(f[0], s[0], f[1], s[1])
	if !ok {
		return false, nil
	}
	st.Record(sentiment, analysis.TypeEMACrossover, CrossoverSignal{
		Indicator: fmt.Sprintf("EMA %d/%d", p.EMAFast, p.EMASlow),
		Fast:      f[1],
		Slow:      s[1],
		Direction: direction(sentiment),
	})
	return true, nil
}

func detectSuperTrend(st *analysis.InstrumentState, p Profile) (bool, error) {
	ind := indicators.NewSuperTrend(p.SuperTrendPeriod, p.SuperTrendMultiplier)
	if len(st.Bars) < ind.Period()+1 {
		return false, apperrors.Unavailable("%s: need %d bars, have %d", ind.Name(), ind.Period()+1, len(st.Bars))
	}
	out, err := ind.Calculate(st.Bars)
	if err != nil {
		return false, indicatorErr(ind.Name(), err)
	}
	dir := indicators.Last(out["direction"], 2)
	if dir[0] == dir[1] {
		return false, nil
	}

	sentiment := analysis.Bearish
	if dir[1] > 0 {
		sentiment = analysis.Bullish
	}
	st.Record(sentiment, analysis.TypeSuperTrend, SuperTrendSignal{
		Level:     out["supertrend"][len(st.Bars)-1],
		Close:     st.Bars[len(st.Bars)-1].Close,
		Direction: direction(sentiment),
	})
	return true, nil
}

func detectPrevDayBreakout(st *analysis.InstrumentState, p Profile) (bool, error) {
	if st.PrevDay.IsZero() {
		return false, apperrors.Unavailable("no previous-day data")
	}
	if len(st.Bars) == 0 {
		return false, apperrors.Unavailable("no bars")
	}
	lastClose := st.Bars[len(st.Bars)-1].Close
	buffer := p.BreakoutBufferPct / 100

	switch {
	case st.PrevDay.High > 0 && lastClose > st.PrevDay.High*(1+buffer):
		st.Record(analysis.Bullish, analysis.TypePrevDayBreakout, BreakoutSignal{
			Level:       st.PrevDay.High,
			Close:       lastClose,
			DistancePct: (lastClose - st.PrevDay.High) / st.PrevDay.High * 100,
			Side:        "HIGH",
		})
		return true, nil
	case st.PrevDay.Low > 0 && lastClose < st.PrevDay.Low*(1-buffer):
		st.Record(analysis.Bearish, analysis.TypePrevDayBreakout, BreakoutSignal{
			Level:       st.PrevDay.Low,
			Close:       lastClose,
			DistancePct: (lastClose - st.PrevDay.Low) / st.PrevDay.Low * 100,
			Side:        "LOW",
		})
		return true, nil
	}
	return false, nil
}

func detectVolumeSurge(st *analysis.InstrumentState, p Profile) (bool, error) {
	ind := indicators.NewVolumeRatio(p.VolumePeriod)
	ratios, err := ind.Calculate(st.Bars)
	if err != nil {
		return false, indicatorErr(ind.Name(), err)
	}
	last := st.Bars[len(st.Bars)-1]
	ratio := ratios[len(ratios)-1]
	if ratio == 0 {
		// Indices carry no traded volume.
		return false, apperrors.Unavailable("%s: no volume", st.Symbol)
	}
	if ratio < p.VolumeSurgeRatio || last.Close == last.Open {
		return false, nil
	}

	sentiment := analysis.Bearish
	if last.IsBullish() {
		sentiment = analysis.Bullish
	}
	st.Record(sentiment, analysis.TypeVolumeSurge, VolumeSurgeSignal{
		Volume:  last.Volume,
		Average: float64(last.Volume) / ratio,
		Ratio:   ratio,
	})
	return true, nil
}
