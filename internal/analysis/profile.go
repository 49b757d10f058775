package analysis

import (
	"fmt"
	"strings"

	apperrors "fno-signals/internal/errors"
)

// Mode selects the operating cadence of a run.
type Mode string

const (
	Intraday   Mode = "INTRADAY"
	Positional Mode = "POSITIONAL"
)

// ParseMode parses a mode name. Unknown names are configuration errors.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INTRADAY":
		return Intraday, nil
	case "POSITIONAL":
		return Positional, nil
	}
	return "", apperrors.NewConfigError("mode", s, "must be INTRADAY or POSITIONAL")
}

// InstrumentClass separates single stocks from indices.
type InstrumentClass string

const (
	Stock InstrumentClass = "STOCK"
	Index InstrumentClass = "INDEX"
)

// ClassFor maps the is-index flag to a class.
func ClassFor(isIndex bool) InstrumentClass {
	if isIndex {
		return Index
	}
	return Stock
}

// ParseClass parses an instrument class name.
func ParseClass(s string) (InstrumentClass, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "STOCK":
		return Stock, nil
	case "INDEX":
		return Index, nil
	}
	return "", apperrors.NewConfigError("class", s, "must be STOCK or INDEX")
}

// ProfileKey identifies one threshold profile of a detector family.
type ProfileKey struct {
	Mode  Mode
	Class InstrumentClass
}

// AllProfileKeys lists the four (mode, class) combinations.
func AllProfileKeys() []ProfileKey {
	return []ProfileKey{
		{Intraday, Stock},
		{Positional, Stock},
		{Intraday, Index},
		{Positional, Index},
	}
}

// String renders the key as used in thresholds.toml, e.g. "intraday.index".
func (k ProfileKey) String() string {
	return fmt.Sprintf("%s.%s", strings.ToLower(string(k.Mode)), strings.ToLower(string(k.Class)))
}

// Valid reports whether both parts are known.
func (k ProfileKey) Valid() bool {
	return (k.Mode == Intraday || k.Mode == Positional) && (k.Class == Stock || k.Class == Index)
}
