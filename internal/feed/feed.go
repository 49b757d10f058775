// Package feed loads provider snapshot dumps from YAML files into the store.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "fno-signals/internal/errors"
	"fno-signals/internal/models"
	"fno-signals/internal/store"
)

// DefaultTimeframe is used when a batch does not name its bar timeframe.
const DefaultTimeframe = "5min"

// DailyTimeframe is the timeframe previous-day summaries are stored under.
const DailyTimeframe = "1day"

// Batch is one instrument's snapshot dump.
type Batch struct {
	Instrument models.Instrument        `yaml:"instrument"`
	Timeframe  string                   `yaml:"timeframe"`
	Bars       []models.Candle          `yaml:"bars"`
	PrevDay    *models.DayOHLCV         `yaml:"prev_day"`
	Chains     []models.ChainSnapshot   `yaml:"chains"`
	Futures    []models.FuturesSnapshot `yaml:"futures"`
}

// Summary counts what a stored batch contained.
type Summary struct {
	Symbol  string `json:"symbol"`
	Bars    int    `json:"bars"`
	Chains  int    `json:"chains"`
	Futures int    `json:"futures"`
}

func (s Summary) String() string {
	return fmt.Sprintf("%s: %d bars, %d chain snapshots, %d futures snapshots", s.Symbol, s.Bars, s.Chains, s.Futures)
}

// LoadFile reads and validates a batch. Unknown keys are rejected so typos
// in hand-written dumps fail loudly.
func LoadFile(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(err, "reading feed file")
	}
	return Parse(data)
}

// Parse decodes and validates a batch from YAML.
func Parse(data []byte) (*Batch, error) {
	var b Batch
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		return nil, apperrors.NewDataError("feed", "", "invalid YAML", err)
	}

	b.normalize()
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// normalize fills symbols left implicit on nested records and orders the
// records by time.
func (b *Batch) normalize() {
	b.Instrument.Symbol = strings.ToUpper(strings.TrimSpace(b.Instrument.Symbol))
	if b.Instrument.Exchange == "" {
		b.Instrument.Exchange = models.NSE
	}
	if b.Timeframe == "" {
		b.Timeframe = DefaultTimeframe
	}
	for i := range b.Chains {
		if b.Chains[i].Symbol == "" {
			b.Chains[i].Symbol = b.Instrument.Symbol
		}
	}
	for i := range b.Futures {
		if b.Futures[i].Symbol == "" {
			b.Futures[i].Symbol = b.Instrument.Symbol
		}
	}

	sort.SliceStable(b.Bars, func(i, j int) bool {
		return b.Bars[i].Timestamp.Before(b.Bars[j].Timestamp)
	})
	sort.SliceStable(b.Chains, func(i, j int) bool {
		return b.Chains[i].CapturedAt.Before(b.Chains[j].CapturedAt)
	})
	sort.SliceStable(b.Futures, func(i, j int) bool {
		return b.Futures[i].CapturedAt.Before(b.Futures[j].CapturedAt)
	})
}

// Validate checks the structural soundness of the batch.
func (b *Batch) Validate() error {
	sym := b.Instrument.Symbol
	if sym == "" {
		return apperrors.NewValidationError("instrument.symbol", sym, "symbol is required")
	}
	if len(b.Bars) == 0 && len(b.Chains) == 0 && len(b.Futures) == 0 && b.PrevDay == nil {
		return apperrors.NewDataError("feed", sym, "batch carries no data", apperrors.ErrDataNotFound)
	}

	for i, c := range b.Bars {
		if c.Timestamp.IsZero() {
			return apperrors.NewValidationError(fmt.Sprintf("bars[%d].timestamp", i), c.Timestamp, "timestamp is required")
		}
		if c.High < c.Low || c.Close <= 0 {
			return apperrors.NewValidationError(fmt.Sprintf("bars[%d]", i), c.Close, "inconsistent OHLC values")
		}
	}

	for i := range b.Chains {
		c := &b.Chains[i]
		field := fmt.Sprintf("chains[%d]", i)
		if c.Symbol != sym {
			return apperrors.NewValidationError(field+".symbol", c.Symbol, "does not match instrument "+sym)
		}
		if c.Expiry.IsZero() || c.CapturedAt.IsZero() {
			return apperrors.NewValidationError(field, c.ExpiryKey(), "expiry and captured_at are required")
		}
		if err := validateStrikes(field, c.Strikes); err != nil {
			return err
		}
	}

	for i, f := range b.Futures {
		field := fmt.Sprintf("futures[%d]", i)
		if f.Symbol != sym {
			return apperrors.NewValidationError(field+".symbol", f.Symbol, "does not match instrument "+sym)
		}
		if f.CapturedAt.IsZero() || f.LTP <= 0 {
			return apperrors.NewValidationError(field, f.LTP, "captured_at and a positive ltp are required")
		}
	}
	return nil
}

func validateStrikes(field string, rows []models.StrikeRow) error {
	seen := make(map[float64]bool, len(rows))
	for j, r := range rows {
		if r.Strike <= 0 {
			return apperrors.NewValidationError(fmt.Sprintf("%s.strikes[%d].strike", field, j), r.Strike, "strike must be positive")
		}
		if seen[r.Strike] {
			return apperrors.NewValidationError(fmt.Sprintf("%s.strikes[%d].strike", field, j), r.Strike, "duplicate strike")
		}
		if r.CallOI < 0 || r.PutOI < 0 || r.PrevCallOI < 0 || r.PrevPutOI < 0 {
			return apperrors.NewValidationError(fmt.Sprintf("%s.strikes[%d]", field, j), r.Strike, "open interest cannot be negative")
		}
		seen[r.Strike] = true
	}
	return nil
}

// Store writes the batch and marks each feed as ingested at the time of its
// newest record.
func (b *Batch) Store(ctx context.Context, ds store.DataStore) (Summary, error) {
	sym := b.Instrument.Symbol
	sum := Summary{Symbol: sym}
	tracker := store.NewFreshnessTracker(ds, store.DefaultFreshnessConfig())

	if err := ds.SaveInstrument(ctx, b.Instrument); err != nil {
		return sum, apperrors.NewDataError("instrument", sym, "save failed", err)
	}

	if len(b.Bars) > 0 {
		if err := ds.SaveCandles(ctx, sym, b.Timeframe, b.Bars); err != nil {
			return sum, apperrors.NewDataError("bars", sym, "save failed", err)
		}
		sum.Bars = len(b.Bars)
		if err := tracker.MarkIngested(store.FeedBars, sym, b.Bars[len(b.Bars)-1].Timestamp); err != nil {
			return sum, err
		}
	}

	if b.PrevDay != nil && !b.PrevDay.IsZero() {
		day := models.Candle{
			Timestamp: b.PrevDay.Date,
			Open:      b.PrevDay.Open,
			High:      b.PrevDay.High,
			Low:       b.PrevDay.Low,
			Close:     b.PrevDay.Close,
			Volume:    b.PrevDay.Volume,
		}
		if err := ds.SaveCandles(ctx, sym, DailyTimeframe, []models.Candle{day}); err != nil {
			return sum, apperrors.NewDataError("prev_day", sym, "save failed", err)
		}
	}

	for i := range b.Chains {
		if err := ds.SaveChainSnapshot(ctx, &b.Chains[i]); err != nil {
			return sum, apperrors.NewDataError("chain", sym, "save failed for expiry "+b.Chains[i].ExpiryKey(), err)
		}
		sum.Chains++
	}
	if n := len(b.Chains); n > 0 {
		if err := tracker.MarkIngested(store.FeedChain, sym, b.Chains[n-1].CapturedAt); err != nil {
			return sum, err
		}
	}

	for i := range b.Futures {
		if err := ds.SaveFuturesSnapshot(ctx, &b.Futures[i]); err != nil {
			return sum, apperrors.NewDataError("futures", sym, "save failed", err)
		}
		sum.Futures++
	}
	if n := len(b.Futures); n > 0 {
		if err := tracker.MarkIngested(store.FeedFutures, sym, b.Futures[n-1].CapturedAt); err != nil {
			return sum, err
		}
	}

	return sum, nil
}

// LastCapture returns the newest timestamp in the batch.
func (b *Batch) LastCapture() time.Time {
	var last time.Time
	for _, c := range b.Bars {
		if c.Timestamp.After(last) {
			last = c.Timestamp
		}
	}
	for _, c := range b.Chains {
		if c.CapturedAt.After(last) {
			last = c.CapturedAt
		}
	}
	for _, f := range b.Futures {
		if f.CapturedAt.After(last) {
			last = f.CapturedAt
		}
	}
	return last
}
