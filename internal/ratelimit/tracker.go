package ratelimit

import (
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int
}

// Tracker counts approved transfers per sender in fixed windows. It is
// safe for concurrent use and outlives policy reloads.
type Tracker struct {
	mu      sync.Mutex
	senders map[string]*window
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{senders: make(map[string]*window)}
}

// Snapshot reads the count for sender. If the window has expired, the
// counter and the window start are reset.
func (t *Tracker) Snapshot(sender string, span time.Duration, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current(sender, span, now).count
}

// Increment records one transfer for sender.
func (t *Tracker) Increment(sender string, span time.Duration, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current(sender, span, now).count++
}

func (t *Tracker) current(sender string, span time.Duration, now time.Time) *window {
	w := t.senders[sender]
	if w == nil {
		w = &window{start: now}
		t.senders[sender] = w
	}
	if now.Sub(w.start) >= span {
		w.start = now
		w.count = 0
	}
	return w
}
