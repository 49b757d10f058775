// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"encoding/json"
	"time"

	"fno-signals/internal/analysis"
	"fno-signals/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Price bars
	SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error)
	GetCandlesFreshness(ctx context.Context, symbol, timeframe string) (time.Time, error)

	// Instruments
	SaveInstrument(ctx context.Context, inst models.Instrument) error
	GetInstrument(ctx context.Context, symbol string) (*models.Instrument, error)
	Symbols(ctx context.Context) ([]string, error)

	// Option chain snapshots
	SaveChainSnapshot(ctx context.Context, snap *models.ChainSnapshot) error
	GetChainSnapshots(ctx context.Context, symbol string, expiry, from, to time.Time) ([]models.ChainSnapshot, error)
	LatestExpiries(ctx context.Context, symbol string, asOf time.Time) ([]time.Time, error)

	// Futures snapshots
	SaveFuturesSnapshot(ctx context.Context, snap *models.FuturesSnapshot) error
	LatestFutures(ctx context.Context, symbol string, asOf time.Time) (*models.FuturesSnapshot, error)

	// Signal journal
	JournalDecision(ctx context.Context, entry *JournalEntry) error
	GetJournal(ctx context.Context, filter JournalFilter) ([]JournalEntry, error)

	// Sync
	GetLastSync(dataType string) time.Time
	SetLastSync(dataType string, t time.Time) error

	// Lifecycle
	Close() error
}

// JournalEntry is one scored cycle as written to the signal journal. The
// journal is outbound only; nothing reads it back into detector state.
type JournalEntry struct {
	ID       string                   `json:"id"`
	Symbol   string                   `json:"symbol"`
	Mode     analysis.Mode            `json:"mode"`
	Class    analysis.InstrumentClass `json:"class"`
	CycleAt  time.Time                `json:"cycle_at"`
	Notify   bool                     `json:"notify"`
	Score    *analysis.ScoreResult    `json:"score"`
	Signals  json.RawMessage          `json:"signals"`
	Failures []string                 `json:"failures,omitempty"`
}

// NewJournalEntry captures the outcome of a finished cycle.
func NewJournalEntry(st *analysis.InstrumentState, notify bool) (*JournalEntry, error) {
	signals, err := json.Marshal(st.Bucket)
	if err != nil {
		return nil, err
	}
	entry := &JournalEntry{
		ID:      st.CycleID,
		Symbol:  st.Symbol,
		Mode:    st.Mode,
		Class:   st.Class,
		CycleAt: st.Bucket.CycleAt(),
		Notify:  notify,
		Score:   st.Score,
		Signals: signals,
	}
	for _, f := range st.Failures {
		entry.Failures = append(entry.Failures, f.String())
	}
	return entry, nil
}

// Priority returns the scored priority, or PriorityNone for unscored cycles.
func (e *JournalEntry) Priority() analysis.Priority {
	if e.Score == nil {
		return analysis.PriorityNone
	}
	return e.Score.Priority
}

// JournalFilter represents filters for querying journal entries.
type JournalFilter struct {
	Symbol      string
	Mode        analysis.Mode
	StartDate   time.Time
	EndDate     time.Time
	MinPriority analysis.Priority
	NotifyOnly  bool
	Limit       int
}
