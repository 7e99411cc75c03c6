package budget

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CheckResult is the outcome of a budget check.
type CheckResult struct {
	Exceeded bool
	Spent    decimal.Decimal
	Limit    decimal.Decimal
	Reason   string
}

// Check reports whether spending tokens on top of spent crosses the budget.
func Check(spent, tokens decimal.Decimal, b *Budget) CheckResult {
	if !b.HasLimits() {
		return CheckResult{}
	}
	if spent.Add(tokens).GreaterThan(b.MaxTokens) {
		return CheckResult{
			Exceeded: true,
			Spent:    spent,
			Limit:    b.MaxTokens,
			Reason: fmt.Sprintf("%s already sent + %s exceeds %s per %s",
				spent, tokens, b.MaxTokens, b.Window),
		}
	}
	return CheckResult{Spent: spent, Limit: b.MaxTokens}
}

// Enforcer applies a Config to a Tracker.
type Enforcer struct {
	cfg     Config
	tracker *Tracker
	now     func() time.Time
}

// NewEnforcer returns nil when cfg has no enforced budget.
func NewEnforcer(cfg Config, tracker *Tracker) *Enforcer {
	if !cfg.HasLimits() || tracker == nil {
		return nil
	}
	return &Enforcer{cfg: cfg, tracker: tracker, now: time.Now}
}

// Exceeds reports whether the transfer would push sender over budget.
// It does not record anything; Record does.
func (e *Enforcer) Exceeds(sender string, amount uint64, decimals uint8) (string, bool) {
	if e == nil {
		return "", false
	}
	sender = strings.TrimSpace(sender)
	b := e.cfg.For(sender)
	if !b.HasLimits() {
		return "", false
	}
	spent := e.tracker.Snapshot(sender, b.Window, e.now())
	r := Check(spent, Tokens(amount, decimals), b)
	return r.Reason, r.Exceeded
}

// Record adds an approved transfer to sender's spending.
func (e *Enforcer) Record(sender string, amount uint64, decimals uint8) {
	if e == nil {
		return
	}
	sender = strings.TrimSpace(sender)
	b := e.cfg.For(sender)
	if !b.HasLimits() {
		return
	}
	e.tracker.Add(sender, Tokens(amount, decimals), b.Window, e.now())
}

// WithClock replaces time.Now, for replaying recorded transfers.
func (e *Enforcer) WithClock(now func() time.Time) *Enforcer {
	if e != nil {
		e.now = now
	}
	return e
}
