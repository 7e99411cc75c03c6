package ratelimit

import (
	"fmt"
	"strings"
	"time"
)

// CheckResult is the outcome of a velocity check.
type CheckResult struct {
	Exceeded bool
	Current  int
	Limit    int
	Reason   string
}

// Check compares the current count against the limit.
func Check(count int, limit *Limit) CheckResult {
	if !limit.active() {
		return CheckResult{}
	}
	if count >= limit.MaxTransfers {
		return CheckResult{
			Exceeded: true,
			Current:  count,
			Limit:    limit.MaxTransfers,
			Reason: fmt.Sprintf("%d/%d transfers in %s window",
				count, limit.MaxTransfers, limit.Window),
		}
	}
	return CheckResult{Current: count, Limit: limit.MaxTransfers}
}

// Limiter applies a Config to a Tracker.
type Limiter struct {
	cfg     Config
	tracker *Tracker
	now     func() time.Time
}

// NewLimiter returns nil when cfg has no active limit.
func NewLimiter(cfg Config, tracker *Tracker) *Limiter {
	if !cfg.HasLimits() || tracker == nil {
		return nil
	}
	return &Limiter{cfg: cfg, tracker: tracker, now: time.Now}
}

// Exceeded reports whether sender has used up its allowance. It does not
// count anything; Record does.
func (l *Limiter) Exceeded(sender string) (string, bool) {
	if l == nil {
		return "", false
	}
	sender = strings.TrimSpace(sender)
	limit := l.cfg.For(sender)
	if !limit.active() {
		return "", false
	}
	r := Check(l.tracker.Snapshot(sender, limit.Window, l.now()), limit)
	return r.Reason, r.Exceeded
}

// Record counts one approved transfer from sender.
func (l *Limiter) Record(sender string) {
	if l == nil {
		return
	}
	sender = strings.TrimSpace(sender)
	limit := l.cfg.For(sender)
	if !limit.active() {
		return
	}
	l.tracker.Increment(sender, limit.Window, l.now())
}

// WithClock replaces time.Now, for replaying recorded transfers.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	if l != nil {
		l.now = now
	}
	return l
}
