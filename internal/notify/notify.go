// Package notify delivers notifying cycles to external channels.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fno-signals/internal/analysis"
	"fno-signals/internal/config"
	apperrors "fno-signals/internal/errors"
	"fno-signals/internal/logging"
	"fno-signals/pkg/utils"
)

// Notification is one notifying cycle, flattened for delivery.
type Notification struct {
	CycleID    string                   `json:"cycle_id"`
	Symbol     string                   `json:"symbol"`
	Mode       analysis.Mode            `json:"mode"`
	Class      analysis.InstrumentClass `json:"class"`
	CycleAt    time.Time                `json:"cycle_at"`
	Priority   analysis.Priority        `json:"priority"`
	Score      float64                  `json:"score"`
	Alignment  analysis.Alignment       `json:"alignment"`
	Dominant   analysis.Sentiment       `json:"dominant_sentiment"`
	Confidence float64                  `json:"confidence_pct"`
	Signals    []SignalLine             `json:"signals"`
}

// SignalLine is one recorded signal with its payload summary.
type SignalLine struct {
	Sentiment analysis.Sentiment `json:"sentiment"`
	Type      string             `json:"type"`
	Summary   string             `json:"summary"`
}

// Title renders a one-line headline.
func (n Notification) Title() string {
	return fmt.Sprintf("%s %s %s (score %s, %s)", n.Priority, n.Symbol, n.Dominant, utils.FormatScore(n.Score), n.Alignment)
}

// NewNotification flattens a scored cycle. It returns false for cycles that
// were never scored.
func NewNotification(st *analysis.InstrumentState) (Notification, bool) {
	if st == nil || st.Score == nil {
		return Notification{}, false
	}
	n := Notification{
		CycleID:    st.CycleID,
		Symbol:     st.Symbol,
		Mode:       st.Mode,
		Class:      st.Class,
		CycleAt:    st.Bucket.CycleAt(),
		Priority:   st.Score.Priority,
		Score:      st.Score.TotalScore,
		Alignment:  st.Score.Alignment,
		Dominant:   st.Score.Dominant,
		Confidence: st.Score.ConfidencePct,
	}
	for _, s := range analysis.Sentiments {
		for _, e := range st.Bucket.Entries(s) {
			for _, sig := range e.Signals {
				n.Signals = append(n.Signals, SignalLine{Sentiment: s, Type: e.Type, Summary: sig.Payload.Summary()})
			}
		}
	}
	return n, true
}

// Channel is one delivery target.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
	IsEnabled() bool
}

// MultiNotifier sends notifications at or above a priority to every enabled
// channel.
type MultiNotifier struct {
	channels    []Channel
	minPriority analysis.Priority
	mu          sync.RWMutex
}

// NewMultiNotifier creates a notifier from configuration. fallback is used
// when notify.min_priority is empty.
func NewMultiNotifier(cfg config.NotifyConfig, fallback analysis.Priority) (*MultiNotifier, error) {
	mn := &MultiNotifier{minPriority: fallback}
	if cfg.MinPriority != "" {
		p, err := analysis.ParsePriority(cfg.MinPriority)
		if err != nil {
			return nil, err
		}
		mn.minPriority = p
	}
	if cfg.Enabled {
		mn.channels = append(mn.channels, WithBreaker(NewWebhookNotifier(cfg.Webhook), DefaultBreakerConfig()))
	}
	return mn, nil
}

// AddChannel adds a notification channel.
func (mn *MultiNotifier) AddChannel(ch Channel) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// Send delivers n to every enabled channel. Every channel is attempted;
// the returned error lists the ones that failed.
func (mn *MultiNotifier) Send(ctx context.Context, n Notification) error {
	if n.Priority < mn.minPriority {
		return nil
	}

	mn.mu.RLock()
	channels := mn.channels
	mn.mu.RUnlock()

	var errs []string
	for _, ch := range channels {
		if !ch.IsEnabled() {
			continue
		}
		if err := ch.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", ch.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// WebhookNotifier posts notifications as JSON.
type WebhookNotifier struct {
	url     string
	enabled bool
	client  *http.Client
	retry   utils.RetryConfig
}

// NewWebhookNotifier creates a new WebhookNotifier.
func NewWebhookNotifier(cfg config.WebhookConfig) *WebhookNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retry := utils.DefaultRetryConfig()
	retry.Retryable = func(err error) bool {
		var perm *permanentError
		return !apperrors.As(err, &perm)
	}
	return &WebhookNotifier{
		url:     cfg.URL,
		enabled: cfg.URL != "",
		client:  &http.Client{Timeout: timeout},
		retry:   retry,
	}
}

// Name returns the name of the notifier.
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// IsEnabled returns whether the notifier is enabled.
func (w *WebhookNotifier) IsEnabled() bool {
	return w.enabled
}

// permanentError marks failures a retry cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Send posts n, retrying network errors and 5xx responses.
func (w *WebhookNotifier) Send(ctx context.Context, n Notification) error {
	if !w.enabled {
		return nil
	}

	body, err := json.Marshal(struct {
		Title string `json:"title"`
		Notification
	}{n.Title(), n})
	if err != nil {
		return apperrors.Wrap(err, "marshaling webhook payload")
	}

	return utils.Retry(ctx, w.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return &permanentError{apperrors.Wrap(err, "creating webhook request")}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "fno-signals/1.0")

		resp, err := w.client.Do(req)
		if err != nil {
			return apperrors.Wrap(err, "sending webhook")
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("webhook returned status %d", resp.StatusCode)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return &permanentError{fmt.Errorf("webhook returned status %d", resp.StatusCode)}
		}
		return nil
	})
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logging.WithOperation(logger, "notify")}
}

// Name returns the name of the notifier.
func (l *LogNotifier) Name() string { return "log" }

// IsEnabled always returns true.
func (l *LogNotifier) IsEnabled() bool { return true }

// Send logs the headline and one line per signal.
func (l *LogNotifier) Send(ctx context.Context, n Notification) error {
	logger := logging.WithCycle(logging.WithSymbol(l.logger, n.Symbol), n.CycleID)
	logging.LogDecision(logger, n.Symbol, n.Priority.String(), string(n.Alignment), n.Score, n.Confidence, true)
	for _, s := range n.Signals {
		logging.LogSignal(logger, string(s.Sentiment), s.Type, s.Summary)
	}
	return nil
}
