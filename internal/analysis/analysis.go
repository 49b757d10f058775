// Package analysis provides the per-instrument state shared by the detector
// families and the scoring engine: signals, the analysis bucket, instrument
// state and score results.
package analysis

import (
	"fmt"
	"strings"
)

// Sentiment is the direction a signal points to.
type Sentiment string

const (
	Bullish Sentiment = "BULLISH"
	Bearish Sentiment = "BEARISH"
	Neutral Sentiment = "NEUTRAL"
)

// Sentiments lists every sentiment in bucket order.
var Sentiments = []Sentiment{Bullish, Bearish, Neutral}

// Opposite returns the other directional sentiment. Neutral maps to itself.
func (s Sentiment) Opposite() Sentiment {
	switch s {
	case Bullish:
		return Bearish
	case Bearish:
		return Bullish
	default:
		return Neutral
	}
}

// Payload is the structured, read-only body of a signal. Each detector
// defines its own payload struct and stores it by value.
type Payload interface {
	Summary() string
}

// Signal is an immutable detector output.
type Signal struct {
	Type    string  `json:"type"`
	Payload Payload `json:"payload"`
}

// Priority is the notification tier of a scored cycle.
type Priority int

const (
	PriorityNone Priority = iota
	PriorityLow
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

var priorityNames = []string{"NONE", "LOW", "MEDIUM", "HIGH", "CRITICAL"}

func (p Priority) String() string {
	if p < PriorityNone || p > PriorityCritical {
		return fmt.Sprintf("Priority(%d)", int(p))
	}
	return priorityNames[p]
}

// MarshalText renders the tier name.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a tier name.
func (p *Priority) UnmarshalText(text []byte) error {
	v, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParsePriority parses a tier name, case-insensitively.
func ParsePriority(s string) (Priority, error) {
	for i, name := range priorityNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Priority(i), nil
		}
	}
	return PriorityNone, fmt.Errorf("unknown priority %q", s)
}

// Alignment describes how the directional signals agree.
type Alignment string

const (
	AlignmentNone                Alignment = "NONE"
	AlignmentConfirmationBullish Alignment = "CONFIRMATION_BULLISH"
	AlignmentConfirmationBearish Alignment = "CONFIRMATION_BEARISH"
	AlignmentAllBullish          Alignment = "ALL_BULLISH"
	AlignmentAllBearish          Alignment = "ALL_BEARISH"
	AlignmentMixed               Alignment = "MIXED"
)

// ScoreLine is the contribution of one (sentiment, type) pair.
type ScoreLine struct {
	Sentiment   Sentiment `json:"sentiment"`
	Type        string    `json:"type"`
	Weight      int       `json:"weight"`
	Occurrences int       `json:"occurrences"`
	Score       float64   `json:"score"`
}

// ScoreResult is the ranked decision computed once per cycle.
type ScoreResult struct {
	TotalScore     float64     `json:"total_score"`
	BaseScore      float64     `json:"base_score"`
	AlignmentBonus float64     `json:"alignment_bonus"`
	BullishScore   float64     `json:"bullish_score"`
	BearishScore   float64     `json:"bearish_score"`
	NeutralScore   float64     `json:"neutral_score"`
	Multiplier     float64     `json:"multiplier"`
	Priority       Priority    `json:"priority"`
	Alignment      Alignment   `json:"alignment"`
	Dominant       Sentiment   `json:"dominant_sentiment"`
	ConfidencePct  float64     `json:"confidence_pct"`
	Breakdown      []ScoreLine `json:"breakdown"`
}

// DetectorFailure records a detector that errored during a cycle.
type DetectorFailure struct {
	Set      string `json:"set"`
	Detector string `json:"detector"`
	Err      error  `json:"-"`
}

func (f DetectorFailure) String() string {
	return fmt.Sprintf("%s/%s: %v", f.Set, f.Detector, f.Err)
}
