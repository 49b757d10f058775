package oichain

import (
	"encoding/json"
	"fmt"
)

// RatioKind tags a Ratio.
type RatioKind int

const (
	// Finite is an ordinary quotient.
	Finite RatioKind = iota
	// Unbounded means the denominator side did not grow while the
	// numerator side did.
	Unbounded
)

// Ratio is a quotient whose zero-denominator case is explicit.
type Ratio struct {
	Kind  RatioKind
	Value float64
}

// NewRatio builds num/den. It reports false when num is not positive,
// since no ratio is meaningful then.
func NewRatio(num, den float64) (Ratio, bool) {
	if num <= 0 {
		return Ratio{}, false
	}
	if den <= 0 {
		return Ratio{Kind: Unbounded}, true
	}
	return Ratio{Kind: Finite, Value: num / den}, true
}

// AtLeast reports whether the ratio reaches threshold. Unbounded always does.
func (r Ratio) AtLeast(threshold float64) bool {
	return r.Kind == Unbounded || r.Value >= threshold
}

// IsFinite reports whether the ratio is an ordinary quotient.
func (r Ratio) IsFinite() bool {
	return r.Kind == Finite
}

func (r Ratio) String() string {
	if r.Kind == Unbounded {
		return "unbounded"
	}
	return fmt.Sprintf("%.2f", r.Value)
}

// MarshalJSON renders a number, or the string "unbounded".
func (r Ratio) MarshalJSON() ([]byte, error) {
	if r.Kind == Unbounded {
		return json.Marshal("unbounded")
	}
	return json.Marshal(r.Value)
}
