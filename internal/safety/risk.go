package safety

import (
	"fmt"
	"strings"
)

// RiskLevel grades a transfer. Levels only escalate during one validation.
type RiskLevel int

const (
	Low      RiskLevel = 0
	Medium   RiskLevel = 1
	High     RiskLevel = 2
	Critical RiskLevel = 3
)

// IsBlocking reports whether the level forbids the transfer outright.
func (r RiskLevel) IsBlocking() bool {
	return r == Critical
}

// RequiresConfirmation reports whether a human must explicitly confirm.
func (r RiskLevel) RequiresConfirmation() bool {
	return r >= High
}

func (r RiskLevel) String() string {
	switch r {
	case Low:
		return "LOW"
	case Medium:
		return "MEDIUM"
	case High:
		return "HIGH"
	case Critical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseRiskLevel accepts the String form in any case.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return Low, nil
	case "MEDIUM":
		return Medium, nil
	case "HIGH":
		return High, nil
	case "CRITICAL":
		return Critical, nil
	default:
		return Low, fmt.Errorf("unknown risk level %q", s)
	}
}

func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RiskLevel) UnmarshalText(b []byte) error {
	lvl, err := ParseRiskLevel(string(b))
	if err != nil {
		return err
	}
	*r = lvl
	return nil
}
