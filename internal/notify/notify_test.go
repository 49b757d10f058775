package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fno-signals/internal/analysis"
	"fno-signals/internal/config"
)

type notePayload string

func (p notePayload) Summary() string { return string(p) }

func scoredState(priority analysis.Priority) *analysis.InstrumentState {
	st := analysis.NewInstrumentState("NIFTY", analysis.Index, analysis.Intraday, analysis.DefaultHistoryConfig())
	st.BeginCycle(time.Date(2024, 1, 18, 9, 20, 0, 0, time.UTC), "cycle-1")
	st.Record(analysis.Bullish, analysis.TypeFuturesBuildup, notePayload("Long buildup: price +0.67%, OI +10.00%"))
	st.Record(analysis.Neutral, analysis.TypeOIRange, notePayload("Range 18000-18100"))
	st.Score = &analysis.ScoreResult{
		TotalScore:    11.2,
		Priority:      priority,
		Alignment:     analysis.AlignmentConfirmationBullish,
		Dominant:      analysis.Bullish,
		ConfidencePct: 80,
	}
	return st
}

func TestNewNotification(t *testing.T) {
	n, ok := NewNotification(scoredState(analysis.PriorityHigh))
	require.True(t, ok)
	assert.Equal(t, "cycle-1", n.CycleID)
	assert.Equal(t, analysis.PriorityHigh, n.Priority)
	require.Len(t, n.Signals, 2)
	assert.Equal(t, analysis.Bullish, n.Signals[0].Sentiment)
	assert.Equal(t, analysis.Neutral, n.Signals[1].Sentiment)
	assert.Equal(t, "HIGH NIFTY BULLISH (score 11.2, CONFIRMATION_BULLISH)", n.Title())

	unscored := analysis.NewInstrumentState("NIFTY", analysis.Index, analysis.Intraday, analysis.DefaultHistoryConfig())
	_, ok = NewNotification(unscored)
	assert.False(t, ok)
}

func TestWebhookNotifier_PostsJSON(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n, _ := NewNotification(scoredState(analysis.PriorityHigh))
	w := NewWebhookNotifier(config.WebhookConfig{URL: srv.URL})
	require.True(t, w.IsEnabled())
	require.NoError(t, w.Send(context.Background(), n))

	assert.Equal(t, "HIGH", got["priority"])
	assert.Equal(t, "NIFTY", got["symbol"])
	assert.Contains(t, got["title"], "NIFTY")
	assert.Len(t, got["signals"], 2)
}

func TestWebhookNotifier_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, _ := NewNotification(scoredState(analysis.PriorityHigh))
	require.NoError(t, NewWebhookNotifier(config.WebhookConfig{URL: srv.URL}).Send(context.Background(), n))
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhookNotifier_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	n, _ := NewNotification(scoredState(analysis.PriorityHigh))
	err := NewWebhookNotifier(config.WebhookConfig{URL: srv.URL}).Send(context.Background(), n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

type recordingChannel struct {
	sent []Notification
}

func (r *recordingChannel) Name() string    { return "recording" }
func (r *recordingChannel) IsEnabled() bool { return true }
func (r *recordingChannel) Send(ctx context.Context, n Notification) error {
	r.sent = append(r.sent, n)
	return nil
}

func TestMultiNotifier_PriorityFloor(t *testing.T) {
	mn, err := NewMultiNotifier(config.NotifyConfig{MinPriority: "high"}, analysis.PriorityLow)
	require.NoError(t, err)
	rec := &recordingChannel{}
	mn.AddChannel(rec)
	mn.AddChannel(NewLogNotifier(zerolog.Nop()))

	medium, _ := NewNotification(scoredState(analysis.PriorityMedium))
	critical, _ := NewNotification(scoredState(analysis.PriorityCritical))
	require.NoError(t, mn.Send(context.Background(), medium))
	require.NoError(t, mn.Send(context.Background(), critical))

	require.Len(t, rec.sent, 1)
	assert.Equal(t, analysis.PriorityCritical, rec.sent[0].Priority)
}

func TestMultiNotifier_CollectsChannelErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	mn, err := NewMultiNotifier(config.NotifyConfig{Enabled: true, Webhook: config.WebhookConfig{URL: srv.URL}}, analysis.PriorityLow)
	require.NoError(t, err)
	rec := &recordingChannel{}
	mn.AddChannel(rec)

	n, _ := NewNotification(scoredState(analysis.PriorityLow))
	err = mn.Send(context.Background(), n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook:")
	assert.Len(t, rec.sent, 1, "later channels still run")
}

func TestNewMultiNotifier_RejectsBadPriority(t *testing.T) {
	_, err := NewMultiNotifier(config.NotifyConfig{MinPriority: "loud"}, analysis.PriorityLow)
	assert.Error(t, err)
}
