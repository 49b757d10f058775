package store

import (
	"fmt"
	"time"

	apperrors "fno-signals/internal/errors"
)

// FeedType names one ingested data stream of an instrument.
type FeedType string

const (
	FeedBars    FeedType = "bars"
	FeedChain   FeedType = "chain"
	FeedFutures FeedType = "futures"
)

// FeedTypes lists every tracked feed.
var FeedTypes = []FeedType{FeedBars, FeedChain, FeedFutures}

// SyncKey is the sync_status key of one feed of one symbol.
func SyncKey(feed FeedType, symbol string) string {
	return string(feed) + ":" + symbol
}

// DataFreshness represents the freshness of one ingested feed.
type DataFreshness struct {
	Symbol      string
	Feed        FeedType
	LastUpdated time.Time
	IsFresh     bool
	Age         time.Duration
}

// FreshnessConfig holds per-feed staleness thresholds.
type FreshnessConfig struct {
	StaleAfter map[FeedType]time.Duration
}

// DefaultFreshnessConfig returns thresholds suited to a five minute cadence.
func DefaultFreshnessConfig() FreshnessConfig {
	return FreshnessConfig{
		StaleAfter: map[FeedType]time.Duration{
			FeedBars:    15 * time.Minute,
			FeedChain:   10 * time.Minute,
			FeedFutures: 10 * time.Minute,
		},
	}
}

// FreshnessTracker reports ingest recency from the store's sync status.
type FreshnessTracker struct {
	store  DataStore
	config FreshnessConfig
	now    func() time.Time
}

// NewFreshnessTracker creates a tracker over store.
func NewFreshnessTracker(store DataStore, config FreshnessConfig) *FreshnessTracker {
	return &FreshnessTracker{store: store, config: config, now: time.Now}
}

// WithClock replaces the tracker's clock.
func (ft *FreshnessTracker) WithClock(now func() time.Time) *FreshnessTracker {
	ft.now = now
	return ft
}

// MarkIngested records that feed data for symbol was stored at t.
func (ft *FreshnessTracker) MarkIngested(feed FeedType, symbol string, t time.Time) error {
	if err := ft.store.SetLastSync(SyncKey(feed, symbol), t); err != nil {
		return apperrors.Wrapf(err, "failed to mark %s %s as ingested", symbol, feed)
	}
	return nil
}

// Freshness returns the freshness of one feed of symbol.
func (ft *FreshnessTracker) Freshness(feed FeedType, symbol string) *DataFreshness {
	lastSync := ft.store.GetLastSync(SyncKey(feed, symbol))
	threshold := ft.config.StaleAfter[feed]
	if threshold == 0 {
		threshold = time.Hour
	}

	f := &DataFreshness{Symbol: symbol, Feed: feed, LastUpdated: lastSync}
	if lastSync.IsZero() {
		return f
	}
	f.Age = ft.now().Sub(lastSync)
	f.IsFresh = f.Age < threshold
	return f
}

// Stale returns the feeds of symbol that were ingested at least once and
// have since gone stale. Feeds never ingested are not reported.
func (ft *FreshnessTracker) Stale(symbol string) []*DataFreshness {
	var stale []*DataFreshness
	for _, feed := range FeedTypes {
		f := ft.Freshness(feed, symbol)
		if !f.LastUpdated.IsZero() && !f.IsFresh {
			stale = append(stale, f)
		}
	}
	return stale
}

// FormatFreshness returns a human-readable freshness string.
func FormatFreshness(freshness *DataFreshness) string {
	if freshness.LastUpdated.IsZero() {
		return fmt.Sprintf("%s: never ingested", freshness.Feed)
	}

	age := freshness.Age
	var ageStr string

	switch {
	case age < time.Minute:
		ageStr = "just now"
	case age < time.Hour:
		ageStr = fmt.Sprintf("%d minutes ago", int(age.Minutes()))
	case age < 24*time.Hour:
		ageStr = fmt.Sprintf("%d hours ago", int(age.Hours()))
	default:
		ageStr = fmt.Sprintf("%d days ago", int(age.Hours()/24))
	}

	if freshness.IsFresh {
		return fmt.Sprintf("%s: updated %s", freshness.Feed, ageStr)
	}
	return fmt.Sprintf("%s: stale, updated %s", freshness.Feed, ageStr)
}
