// Package scoring converts an analysis bucket into a weighted, alignment
// adjusted and ranked notification decision.
package scoring

import (
	"fno-signals/internal/analysis"
	apperrors "fno-signals/internal/errors"
)

// Tiers holds the ascending total-score thresholds of each priority.
type Tiers struct {
	Low      float64 `mapstructure:"low"`
	Medium   float64 `mapstructure:"medium"`
	High     float64 `mapstructure:"high"`
	Critical float64 `mapstructure:"critical"`
}

// Config is the externally supplied scoring configuration.
type Config struct {
	Weights           map[string]int `mapstructure:"weights"`
	DefaultWeight     int            `mapstructure:"default_weight"`
	OccurrenceBonus   float64        `mapstructure:"occurrence_bonus"`
	Tiers             Tiers          `mapstructure:"tiers"`
	MinNotifyScore    float64        `mapstructure:"min_notify_score"`
	NeutralExclusions []string       `mapstructure:"neutral_exclusions"`
	TechnicalTypes    []string       `mapstructure:"technical_types"`
	OptionsTypes      []string       `mapstructure:"options_types"`
	ConfirmationBonus float64        `mapstructure:"confirmation_bonus"`
	AllBonus          float64        `mapstructure:"all_bonus"`
	MixedBonus        float64        `mapstructure:"mixed_bonus"`
}

// DefaultWeights returns the default weight table.
func DefaultWeights() map[string]int {
	return map[string]int{
		analysis.TypeRSI:             1,
		analysis.TypeMACDCrossover:   2,
		analysis.TypeEMACrossover:    2,
		analysis.TypeSuperTrend:      2,
		analysis.TypePrevDayBreakout: 2,
		analysis.TypeVolumeSurge:     1,

		analysis.TypeOISupportResistance: 3,
		analysis.TypeOIRange:             1,
		analysis.TypeOIHeavyWriting:      3,
		analysis.TypeOIDominantWriting:   2,
		analysis.TypeOIWall:              3,
		analysis.TypeOIShift:             2,
		analysis.TypeOIIntradayTrend:     3,
		analysis.TypeOISRShift:           2,

		analysis.TypePCRExtreme:          2,
		analysis.TypePCRBias:             1,
		analysis.TypePCRTrend:            2,
		analysis.TypePCRDivergence:       1,
		analysis.TypeMaxPain:             2,
		analysis.TypeMaxPainTrend:        1,
		analysis.TypeMaxPainPCRAlignment: 2,

		analysis.TypeFuturesBuildup: 3,
		analysis.TypeFuturesBasis:   1,
	}
}

// DefaultConfig returns the default scoring configuration.
func DefaultConfig() Config {
	return Config{
		Weights:         DefaultWeights(),
		DefaultWeight:   1,
		OccurrenceBonus: 0.3,
		Tiers: Tiers{
			Low:      3,
			Medium:   6,
			High:     10,
			Critical: 15,
		},
		MinNotifyScore:    4,
		NeutralExclusions: []string{analysis.TypeOIRange, analysis.TypePCRDivergence},
		TechnicalTypes:    analysis.TechnicalTypes(),
		OptionsTypes:      analysis.OptionsTypes(),
		ConfirmationBonus: 1.5,
		AllBonus:          1.2,
		MixedBonus:        1.0,
	}
}

// Validate validates the scoring configuration.
func (c Config) Validate() error {
	if c.DefaultWeight <= 0 {
		return apperrors.NewConfigError("scoring.default_weight", c.DefaultWeight, "must be positive")
	}
	for t, w := range c.Weights {
		if w <= 0 {
			return apperrors.NewConfigError("scoring.weights."+t, w, "must be positive")
		}
	}
	if c.OccurrenceBonus < 0 {
		return apperrors.NewConfigError("scoring.occurrence_bonus", c.OccurrenceBonus, "must be non-negative")
	}
	t := c.Tiers
	if !(t.Low < t.Medium && t.Medium < t.High && t.High < t.Critical) {
		return apperrors.NewConfigError("scoring.tiers", t, "thresholds must be strictly ascending")
	}
	if c.MixedBonus <= 0 || c.MixedBonus > 1 {
		return apperrors.NewConfigError("scoring.mixed_bonus", c.MixedBonus, "must be in (0, 1]")
	}
	if c.AllBonus < 1 {
		return apperrors.NewConfigError("scoring.all_bonus", c.AllBonus, "must be at least 1")
	}
	if c.ConfirmationBonus < c.AllBonus {
		return apperrors.NewConfigError("scoring.confirmation_bonus", c.ConfirmationBonus, "must be at least all_bonus")
	}
	technical := toSet(c.TechnicalTypes)
	for _, t := range c.OptionsTypes {
		if _, ok := technical[t]; ok {
			return apperrors.NewConfigError("scoring.options_types", t, "also listed in technical_types")
		}
	}
	return nil
}

// Engine scores buckets. It is read-only after construction and safe for
// concurrent use.
type Engine struct {
	cfg       Config
	excluded  map[string]struct{}
	technical map[string]struct{}
	options   map[string]struct{}
}

// NewEngine validates the configuration and builds an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Wrap(err, "scoring config")
	}
	return &Engine{
		cfg:       cfg,
		excluded:  toSet(cfg.NeutralExclusions),
		technical: toSet(cfg.TechnicalTypes),
		options:   toSet(cfg.OptionsTypes),
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Weight returns the weight of a type, falling back to the default.
func (e *Engine) Weight(analysisType string) int {
	if w, ok := e.cfg.Weights[analysisType]; ok {
		return w
	}
	return e.cfg.DefaultWeight
}

// signalScore scores one (sentiment, type) entry with n occurrences.
func (e *Engine) signalScore(weight, n int) float64 {
	if n > 1 {
		return float64(weight) * (1 + e.cfg.OccurrenceBonus*float64(n-1))
	}
	return float64(weight)
}

// Score computes the score result of a bucket.
func (e *Engine) Score(b *analysis.Bucket) *analysis.ScoreResult {
	res := &analysis.ScoreResult{
		Breakdown: []analysis.ScoreLine{},
	}

	for _, sentiment := range analysis.Sentiments {
		for _, entry := range b.Entries(sentiment) {
			if sentiment == analysis.Neutral {
				if _, skip := e.excluded[entry.Type]; skip {
					continue
				}
			}
			w := e.Weight(entry.Type)
			score := e.signalScore(w, len(entry.Signals))
			res.Breakdown = append(res.Breakdown, analysis.ScoreLine{
				Sentiment:   sentiment,
				Type:        entry.Type,
				Weight:      w,
				Occurrences: len(entry.Signals),
				Score:       score,
			})
			res.BaseScore += score
			switch sentiment {
			case analysis.Bullish:
				res.BullishScore += score
			case analysis.Bearish:
				res.BearishScore += score
			default:
				res.NeutralScore += score
			}
		}
	}

	res.Multiplier, res.Alignment = e.alignment(b)
	res.TotalScore = res.BaseScore * res.Multiplier
	res.AlignmentBonus = res.BaseScore * (res.Multiplier - 1)
	res.Dominant, res.ConfidencePct = dominance(res.BullishScore, res.BearishScore)
	res.Priority = e.Tier(res.TotalScore)

	return res
}

// alignment picks the multiplier from the directional type counts.
func (e *Engine) alignment(b *analysis.Bucket) (float64, analysis.Alignment) {
	bullish := b.Count(analysis.Bullish)
	bearish := b.Count(analysis.Bearish)

	switch {
	case bullish == 0 && bearish == 0:
		return 1.0, analysis.AlignmentNone
	case bullish > 0 && bearish > 0:
		return e.cfg.MixedBonus, analysis.AlignmentMixed
	case bullish > 0:
		if e.confirmed(b.Types(analysis.Bullish)) {
			return e.cfg.ConfirmationBonus, analysis.AlignmentConfirmationBullish
		}
		return e.cfg.AllBonus, analysis.AlignmentAllBullish
	default:
		if e.confirmed(b.Types(analysis.Bearish)) {
			return e.cfg.ConfirmationBonus, analysis.AlignmentConfirmationBearish
		}
		return e.cfg.AllBonus, analysis.AlignmentAllBearish
	}
}

// confirmed reports whether the types contain both a technical and an
// options category member.
func (e *Engine) confirmed(types []string) bool {
	var technical, options bool
	for _, t := range types {
		if _, ok := e.technical[t]; ok {
			technical = true
		}
		if _, ok := e.options[t]; ok {
			options = true
		}
	}
	return technical && options
}

// dominance returns the winning side and its share of directional score.
func dominance(bullish, bearish float64) (analysis.Sentiment, float64) {
	total := bullish + bearish
	switch {
	case total == 0 || bullish == bearish:
		return analysis.Neutral, 50.0
	case bullish > bearish:
		return analysis.Bullish, bullish / total * 100
	default:
		return analysis.Bearish, bearish / total * 100
	}
}

// Tier maps a total score to a priority.
func (e *Engine) Tier(total float64) analysis.Priority {
	t := e.cfg.Tiers
	switch {
	case total >= t.Critical:
		return analysis.PriorityCritical
	case total >= t.High:
		return analysis.PriorityHigh
	case total >= t.Medium:
		return analysis.PriorityMedium
	case total >= t.Low:
		return analysis.PriorityLow
	default:
		return analysis.PriorityNone
	}
}

// ShouldNotify scores the bucket and reports whether the result clears the
// absolute floor and then minPriority. The floor is checked first. The
// result is returned either way.
func (e *Engine) ShouldNotify(b *analysis.Bucket, minPriority analysis.Priority) (bool, *analysis.ScoreResult) {
	res := e.Score(b)
	if res.TotalScore < e.cfg.MinNotifyScore {
		return false, res
	}
	return res.Priority >= minPriority, res
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
