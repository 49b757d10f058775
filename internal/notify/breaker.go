package notify

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CircuitState represents the state of a channel breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"
	CircuitOpen     CircuitState = "OPEN"
	CircuitHalfOpen CircuitState = "HALF_OPEN"
)

// ErrCircuitOpen is returned while a channel's breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig holds channel breaker settings.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker.
	FailureThreshold int
	// Cooldown is how long an open breaker rejects sends before letting one
	// probe through.
	Cooldown time.Duration
}

// DefaultBreakerConfig returns the default breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		Cooldown:         2 * time.Minute,
	}
}

// BreakerChannel stops calling a channel after repeated failures until its
// cooldown ends.
type BreakerChannel struct {
	Channel
	config BreakerConfig
	now    func() time.Time

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
	rejected int64
}

// WithBreaker wraps ch in a breaker.
func WithBreaker(ch Channel, config BreakerConfig) *BreakerChannel {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 1
	}
	return &BreakerChannel{
		Channel: ch,
		config:  config,
		now:     time.Now,
		state:   CircuitClosed,
	}
}

// Send forwards n unless the breaker is open. A half-open breaker lets one
// send through; its outcome closes or re-opens the breaker.
func (b *BreakerChannel) Send(ctx context.Context, n Notification) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := b.Channel.Send(ctx, n)
	b.record(err)
	return err
}

func (b *BreakerChannel) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == CircuitOpen {
		if b.now().Sub(b.openedAt) < b.config.Cooldown {
			b.rejected++
			return ErrCircuitOpen
		}
		b.state = CircuitHalfOpen
	}
	return nil
}

func (b *BreakerChannel) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.state = CircuitClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == CircuitHalfOpen || b.failures >= b.config.FailureThreshold {
		b.state = CircuitOpen
		b.openedAt = b.now()
		b.failures = 0
	}
}

// State returns the current breaker state.
func (b *BreakerChannel) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Rejected returns how many sends the open breaker refused.
func (b *BreakerChannel) Rejected() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rejected
}
