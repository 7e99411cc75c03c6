package budget

import (
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Tokens converts base units to whole tokens without rounding.
func Tokens(amount uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals))
}

type usage struct {
	start time.Time
	spent decimal.Decimal
}

// Tracker sums approved spending per sender in fixed windows. It is safe
// for concurrent use and outlives policy reloads.
type Tracker struct {
	mu      sync.Mutex
	senders map[string]*usage
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{senders: make(map[string]*usage)}
}

// Snapshot reads what sender has spent in the current window.
func (t *Tracker) Snapshot(sender string, window time.Duration, now time.Time) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current(sender, window, now).spent
}

// Add records tokens spent by sender.
func (t *Tracker) Add(sender string, tokens decimal.Decimal, window time.Duration, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	u := t.current(sender, window, now)
	u.spent = u.spent.Add(tokens)
}

func (t *Tracker) current(sender string, window time.Duration, now time.Time) *usage {
	u := t.senders[sender]
	if u == nil {
		u = &usage{start: now}
		t.senders[sender] = u
	}
	if now.Sub(u.start) >= window {
		u.start = now
		u.spent = decimal.Zero
	}
	return u
}
