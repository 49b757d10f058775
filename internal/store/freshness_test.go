package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreshnessTracker(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2024, 1, 18, 11, 0, 0, 0, time.UTC)
	ft := NewFreshnessTracker(s, DefaultFreshnessConfig()).WithClock(func() time.Time { return now })

	never := ft.Freshness(FeedChain, "NIFTY")
	assert.False(t, never.IsFresh)
	assert.Equal(t, "chain: never ingested", FormatFreshness(never))
	assert.Empty(t, ft.Stale("NIFTY"))

	require.NoError(t, ft.MarkIngested(FeedChain, "NIFTY", now.Add(-3*time.Minute)))
	require.NoError(t, ft.MarkIngested(FeedFutures, "NIFTY", now.Add(-25*time.Minute)))

	fresh := ft.Freshness(FeedChain, "NIFTY")
	assert.True(t, fresh.IsFresh)
	assert.Equal(t, "chain: updated 3 minutes ago", FormatFreshness(fresh))

	stale := ft.Stale("NIFTY")
	require.Len(t, stale, 1)
	assert.Equal(t, FeedFutures, stale[0].Feed)
	assert.Equal(t, "futures: stale, updated 25 minutes ago", FormatFreshness(stale[0]))

	// Other symbols are tracked separately.
	assert.Empty(t, ft.Stale("BANKNIFTY"))
}
