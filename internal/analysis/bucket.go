package analysis

import (
	"encoding/json"
	"time"
)

// Bucket collects the signals of one instrument for one cycle.
//
// TrendCount counts distinct (sentiment, type) pairs: it increments on the
// first write of a pair in a cycle and never on later writes of the same
// pair, which only append to that pair's sequence.
type Bucket struct {
	signals    map[Sentiment]map[string][]Signal
	order      map[Sentiment][]string
	trendCount int
	dropped    int
	cycleAt    time.Time
}

// NewBucket returns an empty bucket stamped with the cycle time.
func NewBucket(at time.Time) *Bucket {
	b := &Bucket{}
	b.Reset(at)
	return b
}

// Reset empties the bucket for a new cycle.
func (b *Bucket) Reset(at time.Time) {
	b.signals = make(map[Sentiment]map[string][]Signal, len(Sentiments))
	b.order = make(map[Sentiment][]string, len(Sentiments))
	for _, s := range Sentiments {
		b.signals[s] = make(map[string][]Signal)
	}
	b.trendCount = 0
	b.dropped = 0
	b.cycleAt = at
}

// Add records a signal. It is the only way detectors mutate the bucket.
// Unknown sentiments are ignored; nil payloads are dropped and counted.
func (b *Bucket) Add(sentiment Sentiment, analysisType string, payload Payload) {
	byType, ok := b.signals[sentiment]
	if !ok {
		return
	}
	if payload == nil {
		b.dropped++
		return
	}
	sig := Signal{Type: analysisType, Payload: payload}
	existing, seen := byType[analysisType]
	if !seen {
		byType[analysisType] = []Signal{sig}
		b.order[sentiment] = append(b.order[sentiment], analysisType)
		b.trendCount++
		return
	}
	byType[analysisType] = append(existing, sig)
}

// Get returns a copy of the signals of one type under one sentiment.
func (b *Bucket) Get(sentiment Sentiment, analysisType string) []Signal {
	sigs := b.signals[sentiment][analysisType]
	if len(sigs) == 0 {
		return nil
	}
	out := make([]Signal, len(sigs))
	copy(out, sigs)
	return out
}

// Has reports whether a type was written under a sentiment.
func (b *Bucket) Has(sentiment Sentiment, analysisType string) bool {
	_, ok := b.signals[sentiment][analysisType]
	return ok
}

// Types returns the types written under a sentiment in first-write order.
func (b *Bucket) Types(sentiment Sentiment) []string {
	types := b.order[sentiment]
	out := make([]string, len(types))
	copy(out, types)
	return out
}

// Count returns the number of distinct types under a sentiment.
func (b *Bucket) Count(sentiment Sentiment) int {
	return len(b.order[sentiment])
}

// Len returns the total number of signal payloads across all sentiments.
func (b *Bucket) Len() int {
	n := 0
	for _, byType := range b.signals {
		for _, sigs := range byType {
			n += len(sigs)
		}
	}
	return n
}

// TrendCount returns the distinct (sentiment, type) count of this cycle.
func (b *Bucket) TrendCount() int {
	return b.trendCount
}

// Dropped returns how many writes this cycle carried a nil payload.
func (b *Bucket) Dropped() int {
	return b.dropped
}

// CycleAt returns the cycle timestamp.
func (b *Bucket) CycleAt() time.Time {
	return b.cycleAt
}

// IsEmpty reports whether no signal was recorded.
func (b *Bucket) IsEmpty() bool {
	return b.trendCount == 0
}

// Entry is one type's signals, used for ordered iteration.
type Entry struct {
	Type    string   `json:"type"`
	Signals []Signal `json:"signals"`
}

// Entries returns the sentiment's signals in first-write order.
func (b *Bucket) Entries(sentiment Sentiment) []Entry {
	types := b.order[sentiment]
	entries := make([]Entry, 0, len(types))
	for _, t := range types {
		entries = append(entries, Entry{Type: t, Signals: b.Get(sentiment, t)})
	}
	return entries
}

// MarshalJSON renders the bucket in deterministic order.
func (b *Bucket) MarshalJSON() ([]byte, error) {
	out := struct {
		CycleAt    time.Time `json:"cycle_at"`
		TrendCount int       `json:"trend_count"`
		Bullish    []Entry   `json:"bullish"`
		Bearish    []Entry   `json:"bearish"`
		Neutral    []Entry   `json:"neutral"`
	}{
		CycleAt:    b.cycleAt,
		TrendCount: b.trendCount,
		Bullish:    b.Entries(Bullish),
		Bearish:    b.Entries(Bearish),
		Neutral:    b.Entries(Neutral),
	}
	return json.Marshal(out)
}
