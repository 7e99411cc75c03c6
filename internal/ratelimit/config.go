package ratelimit

import (
	"fmt"
	"time"
)

// Wildcard is the Config key that applies to senders without their own entry.
const Wildcard = "*"

// Limit caps approved transfers from one sender within a window.
// Zero values mean no limit.
type Limit struct {
	MaxTransfers int           `yaml:"max_transfers" json:"max_transfers"`
	Window       time.Duration `yaml:"window" json:"window"`
}

func (l *Limit) active() bool {
	return l != nil && l.MaxTransfers > 0 && l.Window > 0
}

// Config maps sender addresses to their limits.
type Config map[string]*Limit

// HasLimits returns true if any sender has a configured limit.
func (c Config) HasLimits() bool {
	for _, l := range c {
		if l.active() {
			return true
		}
	}
	return false
}

// For returns the limit for sender. Lookup order: sender, then "*".
func (c Config) For(sender string) *Limit {
	if l := c[sender]; l != nil {
		return l
	}
	return c[Wildcard]
}

// Validate rejects negative values.
func (c Config) Validate() error {
	for key, l := range c {
		if l == nil {
			continue
		}
		if l.MaxTransfers < 0 {
			return fmt.Errorf("velocity[%s].max_transfers must not be negative, got %d", key, l.MaxTransfers)
		}
		if l.Window < 0 {
			return fmt.Errorf("velocity[%s].window must not be negative, got %s", key, l.Window)
		}
	}
	return nil
}
