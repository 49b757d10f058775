package analysis

import (
	"time"

	"fno-signals/internal/models"
)

// History is the bounded per-instrument buffer of chain snapshots. Only the
// worker that owns the instrument appends to it.
type History interface {
	Append(snap models.ChainSnapshot)
	Snapshots() []models.ChainSnapshot
	Len() int
}

// HistoryConfig bounds both buffer kinds.
type HistoryConfig struct {
	IntradayCapacity  int           `mapstructure:"intraday_capacity"`
	PositionalWindow  time.Duration `mapstructure:"positional_window"`
	PositionalMaxRows int           `mapstructure:"positional_max_rows"`
}

// DefaultHistoryConfig returns the default retention bounds.
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		IntradayCapacity:  15,
		PositionalWindow:  120 * time.Hour,
		PositionalMaxRows: 200,
	}
}

// NewHistory returns the buffer kind used by a mode.
func NewHistory(mode Mode, cfg HistoryConfig) History {
	if mode == Positional {
		return NewWindowHistory(cfg.PositionalWindow, cfg.PositionalMaxRows)
	}
	return NewRingHistory(cfg.IntradayCapacity)
}

// RingHistory keeps the most recent snapshots up to a fixed capacity.
type RingHistory struct {
	capacity int
	snaps    []models.ChainSnapshot
}

// NewRingHistory creates a ring buffer. Non-positive capacity means 15.
func NewRingHistory(capacity int) *RingHistory {
	if capacity <= 0 {
		capacity = 15
	}
	return &RingHistory{
		capacity: capacity,
		snaps:    make([]models.ChainSnapshot, 0, capacity),
	}
}

// Append adds a snapshot, evicting the oldest once over capacity.
func (h *RingHistory) Append(snap models.ChainSnapshot) {
	h.snaps = append(h.snaps, snap)
	if over := len(h.snaps) - h.capacity; over > 0 {
		h.snaps = append(h.snaps[:0:0], h.snaps[over:]...)
	}
}

// Snapshots returns the retained snapshots, oldest first.
func (h *RingHistory) Snapshots() []models.ChainSnapshot {
	out := make([]models.ChainSnapshot, len(h.snaps))
	copy(out, h.snaps)
	return out
}

// Len returns the number of retained snapshots.
func (h *RingHistory) Len() int {
	return len(h.snaps)
}

// Capacity returns the maximum number of retained snapshots.
func (h *RingHistory) Capacity() int {
	return h.capacity
}

// WindowHistory keeps snapshots younger than a window, capped by row count.
type WindowHistory struct {
	window  time.Duration
	maxRows int
	snaps   []models.ChainSnapshot
}

// NewWindowHistory creates a time-windowed buffer.
func NewWindowHistory(window time.Duration, maxRows int) *WindowHistory {
	if window <= 0 {
		window = 120 * time.Hour
	}
	if maxRows <= 0 {
		maxRows = 200
	}
	return &WindowHistory{window: window, maxRows: maxRows}
}

// Append adds a snapshot then drops, oldest first, everything outside the
// window measured from the newest capture and everything over the row cap.
func (h *WindowHistory) Append(snap models.ChainSnapshot) {
	h.snaps = append(h.snaps, snap)

	cutoff := snap.CapturedAt.Add(-h.window)
	drop := 0
	for drop < len(h.snaps)-1 && h.snaps[drop].CapturedAt.Before(cutoff) {
		drop++
	}
	if over := len(h.snaps) - drop - h.maxRows; over > 0 {
		drop += over
	}
	if drop > 0 {
		h.snaps = append(h.snaps[:0:0], h.snaps[drop:]...)
	}
}

// Snapshots returns the retained snapshots, oldest first.
func (h *WindowHistory) Snapshots() []models.ChainSnapshot {
	out := make([]models.ChainSnapshot, len(h.snaps))
	copy(out, h.snaps)
	return out
}

// Len returns the number of retained snapshots.
func (h *WindowHistory) Len() int {
	return len(h.snaps)
}
