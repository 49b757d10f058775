package analysis

// Analysis type keys. Formatters render signals by these keys, so the list
// is the schema shared with everything downstream of the bucket.
const (
	// Technical
	TypeRSI             = "rsi"
	TypeMACDCrossover   = "macd_crossover"
	TypeEMACrossover    = "ema_crossover"
	TypeSuperTrend      = "supertrend"
	TypePrevDayBreakout = "prev_day_breakout"
	TypeVolumeSurge     = "volume_surge"

	// Per-strike open interest
	TypeOISupportResistance = "oi_support_resistance"
	TypeOIRange             = "oi_range"
	TypeOIHeavyWriting      = "oi_heavy_writing"
	TypeOIDominantWriting   = "oi_dominant_writing"
	TypeOIWall              = "oi_wall"
	TypeOIShift             = "oi_shift"
	TypeOIIntradayTrend     = "oi_intraday_trend"
	TypeOISRShift           = "oi_sr_shift"

	// PCR and max pain
	TypePCRExtreme          = "pcr_extreme"
	TypePCRBias             = "pcr_bias"
	TypePCRTrend            = "pcr_trend"
	TypePCRDivergence       = "pcr_divergence"
	TypeMaxPain             = "max_pain"
	TypeMaxPainTrend        = "max_pain_trend"
	TypeMaxPainPCRAlignment = "max_pain_pcr_alignment"

	// Futures
	TypeFuturesBuildup = "futures_buildup"
	TypeFuturesBasis   = "futures_basis"
)

// TechnicalTypes lists the price/volume derived types.
func TechnicalTypes() []string {
	return []string{
		TypeRSI,
		TypeMACDCrossover,
		TypeEMACrossover,
		TypeSuperTrend,
		TypePrevDayBreakout,
		TypeVolumeSurge,
	}
}

// OptionsTypes lists the derivatives derived types.
func OptionsTypes() []string {
	return []string{
		TypeOISupportResistance,
		TypeOIRange,
		TypeOIHeavyWriting,
		TypeOIDominantWriting,
		TypeOIWall,
		TypeOIShift,
		TypeOIIntradayTrend,
		TypeOISRShift,
		TypePCRExtreme,
		TypePCRBias,
		TypePCRTrend,
		TypePCRDivergence,
		TypeMaxPain,
		TypeMaxPainTrend,
		TypeMaxPainPCRAlignment,
		TypeFuturesBuildup,
		TypeFuturesBasis,
	}
}

// AllTypes lists every key the detector library can emit.
func AllTypes() []string {
	return append(TechnicalTypes(), OptionsTypes()...)
}
