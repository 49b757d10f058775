// Package technical holds the price and volume detectors.
package technical

import (
	"fno-signals/internal/analysis"
	apperrors "fno-signals/internal/errors"
)

// Profile is the immutable threshold set of the technical detectors.
type Profile struct {
	RSIPeriod     int     `mapstructure:"rsi_period" json:"rsi_period"`
	RSIOversold   float64 `mapstructure:"rsi_oversold" json:"rsi_oversold"`
	RSIOverbought float64 `mapstructure:"rsi_overbought" json:"rsi_overbought"`

	MACDFast   int `mapstructure:"macd_fast" json:"macd_fast"`
	MACDSlow   int `mapstructure:"macd_slow" json:"macd_slow"`
	MACDSignal int `mapstructure:"macd_signal" json:"macd_signal"`

	EMAFast int `mapstructure:"ema_fast" json:"ema_fast"`
	EMASlow int `mapstructure:"ema_slow" json:"ema_slow"`

	SuperTrendPeriod     int     `mapstructure:"supertrend_period" json:"supertrend_period"`
	SuperTrendMultiplier float64 `mapstructure:"supertrend_multiplier" json:"supertrend_multiplier"`

	// BreakoutBufferPct is how far past the previous-day level the close
	// must be, in percent.
	BreakoutBufferPct float64 `mapstructure:"breakout_buffer_pct" json:"breakout_buffer_pct"`

	VolumePeriod     int     `mapstructure:"volume_period" json:"volume_period"`
	VolumeSurgeRatio float64 `mapstructure:"volume_surge_ratio" json:"volume_surge_ratio"`
}

// Validate validates the profile.
func (p Profile) Validate() error {
	switch {
	case p.RSIPeriod <= 0:
		return apperrors.NewConfigError("technical.rsi_period", p.RSIPeriod, "must be positive")
	case p.RSIOversold <= 0 || p.RSIOversold >= p.RSIOverbought || p.RSIOverbought >= 100:
		return apperrors.NewConfigError("technical.rsi_oversold", p.RSIOversold, "need 0 < oversold < overbought < 100")
	case p.MACDFast <= 0 || p.MACDFast >= p.MACDSlow || p.MACDSignal <= 0:
		return apperrors.NewConfigError("technical.macd_fast", p.MACDFast, "need 0 < fast < slow and a positive signal period")
	case p.EMAFast <= 0 || p.EMAFast >= p.EMASlow:
		return apperrors.NewConfigError("technical.ema_fast", p.EMAFast, "need 0 < fast < slow")
	case p.SuperTrendPeriod <= 0 || p.SuperTrendMultiplier <= 0:
		return apperrors.NewConfigError("technical.supertrend_period", p.SuperTrendPeriod, "period and multiplier must be positive")
	case p.BreakoutBufferPct < 0:
		return apperrors.NewConfigError("technical.breakout_buffer_pct", p.BreakoutBufferPct, "must be non-negative")
	case p.VolumePeriod <= 0 || p.VolumeSurgeRatio <= 1:
		return apperrors.NewConfigError("technical.volume_surge_ratio", p.VolumeSurgeRatio, "period must be positive and ratio above 1")
	}
	return nil
}

// DefaultProfiles returns the built-in profile for every (mode, class).
func DefaultProfiles() map[analysis.ProfileKey]Profile {
	intraday := Profile{
		RSIPeriod:            14,
		RSIOversold:          30,
		RSIOverbought:        70,
		MACDFast:             12,
		MACDSlow:             26,
		MACDSignal:           9,
		EMAFast:              9,
		EMASlow:              21,
		SuperTrendPeriod:     10,
		SuperTrendMultiplier: 3,
		BreakoutBufferPct:    0.1,
		VolumePeriod:         20,
		VolumeSurgeRatio:     2.0,
	}
	positional := intraday
	positional.EMAFast = 20
	positional.EMASlow = 50
	positional.BreakoutBufferPct = 0.25
	positional.VolumeSurgeRatio = 1.5

	indexIntraday := intraday
	indexIntraday.RSIOversold = 25
	indexIntraday.RSIOverbought = 75
	indexIntraday.BreakoutBufferPct = 0.05

	indexPositional := positional
	indexPositional.BreakoutBufferPct = 0.15

	return map[analysis.ProfileKey]Profile{
		{Mode: analysis.Intraday, Class: analysis.Stock}:   intraday,
		{Mode: analysis.Positional, Class: analysis.Stock}: positional,
		{Mode: analysis.Intraday, Class: analysis.Index}:   indexIntraday,
		{Mode: analysis.Positional, Class: analysis.Index}: indexPositional,
	}
}
