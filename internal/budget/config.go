package budget

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Wildcard is the Config key that applies to senders without their own entry.
const Wildcard = "*"

// Budget caps the whole tokens one sender may move within a window.
// Zero values mean unlimited.
type Budget struct {
	MaxTokens decimal.Decimal `yaml:"max_tokens" json:"max_tokens"`
	Window    time.Duration   `yaml:"window" json:"window"`
}

// HasLimits returns true if the budget is enforced.
func (b *Budget) HasLimits() bool {
	return b != nil && b.MaxTokens.IsPositive() && b.Window > 0
}

// Config maps sender addresses to budgets.
type Config map[string]*Budget

// HasLimits returns true if any sender has an enforced budget.
func (c Config) HasLimits() bool {
	for _, b := range c {
		if b.HasLimits() {
			return true
		}
	}
	return false
}

// For returns the budget for sender. Lookup order: sender, then "*".
func (c Config) For(sender string) *Budget {
	if b := c[sender]; b != nil {
		return b
	}
	return c[Wildcard]
}

// Validate rejects negative values.
func (c Config) Validate() error {
	for key, b := range c {
		if b == nil {
			continue
		}
		if b.MaxTokens.IsNegative() {
			return fmt.Errorf("budgets[%s].max_tokens must not be negative, got %s", key, b.MaxTokens)
		}
		if b.Window < 0 {
			return fmt.Errorf("budgets[%s].window must not be negative, got %s", key, b.Window)
		}
	}
	return nil
}
