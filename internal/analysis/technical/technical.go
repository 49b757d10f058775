package technical

import (
	"github.com/rs/zerolog"

	"fno-signals/internal/analysis"
	"fno-signals/internal/analysis/detect"
)

// SetName names the technical detector set in logs and metrics.
const SetName = "technical"

// Detectors is the registration table of the technical set.
func Detectors() []detect.Detector[Profile] {
	return []detect.Detector[Profile]{
		{Name: "rsi", Caps: detect.All, Run: detectRSI},
		{Name: "macd_crossover", Caps: detect.All, Run: detectMACD},
		{Name: "ema_crossover", Caps: detect.All, Run: detectEMA},
		{Name: "supertrend", Caps: detect.All, Run: detectSuperTrend},
		{Name: "prev_day_breakout", Caps: detect.All, Run: detectPrevDayBreakout},
		{Name: "volume_surge", Caps: detect.Intraday | detect.Positional, Run: detectVolumeSurge},
	}
}

// NewSet builds the technical set over a profile table.
func NewSet(profiles map[analysis.ProfileKey]Profile, logger zerolog.Logger) *detect.Set[Profile] {
	return detect.NewSet(SetName, Resolver(profiles), logger, Detectors()...)
}

// Resolver validates the profile before handing it out.
func Resolver(profiles map[analysis.ProfileKey]Profile) detect.Resolver[Profile] {
	static := detect.StaticResolver(profiles)
	return func(key analysis.ProfileKey) (Profile, error) {
		p, err := static(key)
		if err != nil {
			return p, err
		}
		return p, p.Validate()
	}
}
