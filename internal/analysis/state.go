package analysis

import (
	"sort"
	"time"

	apperrors "fno-signals/internal/errors"
	"fno-signals/internal/models"
)

// OptionsContext is the rolling derivatives context of one instrument.
type OptionsContext struct {
	// Expiries holds chain snapshots nearest expiry first. A nil slice on an
	// options-enabled instrument is a setup error; an empty one is a data gap.
	Expiries []*models.ChainSnapshot
	// ATMByDate holds the ATM row captured per trading date (YYYY-MM-DD).
	ATMByDate map[string]models.StrikeRow
	// MaxPainHistory holds prior max-pain values, oldest first.
	MaxPainHistory []float64
}

// Current returns the nearest expiry snapshot.
func (o *OptionsContext) Current() *models.ChainSnapshot {
	if o == nil || len(o.Expiries) == 0 {
		return nil
	}
	return o.Expiries[0]
}

// DatedATM is the ATM row of one trading date.
type DatedATM struct {
	Date string
	Row  models.StrikeRow
}

// ATMTrail returns the ATM rows oldest date first.
func (o *OptionsContext) ATMTrail() []DatedATM {
	if o == nil || len(o.ATMByDate) == 0 {
		return nil
	}
	trail := make([]DatedATM, 0, len(o.ATMByDate))
	for date, row := range o.ATMByDate {
		trail = append(trail, DatedATM{Date: date, Row: row})
	}
	sort.Slice(trail, func(i, j int) bool { return trail[i].Date < trail[j].Date })
	return trail
}

// Next returns the second nearest expiry snapshot.
func (o *OptionsContext) Next() *models.ChainSnapshot {
	if o == nil || len(o.Expiries) < 2 {
		return nil
	}
	return o.Expiries[1]
}

// InstrumentState is the read side every detector consumes. One worker owns
// it for the length of a cycle.
type InstrumentState struct {
	Symbol string
	Class  InstrumentClass
	Mode   Mode

	Bars    []models.Candle
	PrevDay models.DayOHLCV

	OptionsEnabled bool
	Options        *OptionsContext
	Futures        *models.FuturesSnapshot
	History        History

	Bucket   *Bucket
	Score    *ScoreResult
	CycleID  string
	Failures []DetectorFailure
}

// NewInstrumentState creates state with an empty bucket and a history buffer
// matching the mode.
func NewInstrumentState(symbol string, class InstrumentClass, mode Mode, cfg HistoryConfig) *InstrumentState {
	return &InstrumentState{
		Symbol:  symbol,
		Class:   class,
		Mode:    mode,
		History: NewHistory(mode, cfg),
		Bucket:  NewBucket(time.Time{}),
	}
}

// BeginCycle resets the bucket and the previous cycle's outputs.
func (s *InstrumentState) BeginCycle(at time.Time, cycleID string) {
	if s.Bucket == nil {
		s.Bucket = NewBucket(at)
	} else {
		s.Bucket.Reset(at)
	}
	s.Score = nil
	s.Failures = nil
	s.CycleID = cycleID
}

// Validate checks the structural setup of the state.
func (s *InstrumentState) Validate() error {
	if s.Symbol == "" {
		return apperrors.NewConfigError("symbol", s.Symbol, "instrument symbol is required")
	}
	if s.OptionsEnabled && (s.Options == nil || s.Options.Expiries == nil) {
		return apperrors.NewConfigError("options.expiries", s.Symbol, "options detectors enabled without an expiry map")
	}
	return nil
}

// CurrentChain returns the nearest expiry snapshot, or nil.
func (s *InstrumentState) CurrentChain() *models.ChainSnapshot {
	return s.Options.Current()
}

// NextChain returns the next expiry snapshot, or nil.
func (s *InstrumentState) NextChain() *models.ChainSnapshot {
	return s.Options.Next()
}

// Spot returns the best available underlying price: chain spot, then the
// last bar close, then the futures spot.
func (s *InstrumentState) Spot() float64 {
	if c := s.CurrentChain(); c != nil && c.SpotPrice > 0 {
		return c.SpotPrice
	}
	if n := len(s.Bars); n > 0 && s.Bars[n-1].Close > 0 {
		return s.Bars[n-1].Close
	}
	if s.Futures != nil && s.Futures.SpotPrice > 0 {
		return s.Futures.SpotPrice
	}
	return 0
}

// ChainHistory returns the retained snapshots, oldest first.
func (s *InstrumentState) ChainHistory() []models.ChainSnapshot {
	if s.History == nil {
		return nil
	}
	return s.History.Snapshots()
}

// Record writes a signal into the bucket.
func (s *InstrumentState) Record(sentiment Sentiment, analysisType string, payload Payload) {
	s.Bucket.Add(sentiment, analysisType, payload)
}
