package alert

import (
	"time"

	"github.com/ppiankov/transferguard/internal/safety"
)

// AlertConfig defines a webhook alert destination.
type AlertConfig struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"` // ["block", "confirm", "confirmation_used"]
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// AlertEvent is the payload sent to webhook endpoints and sinks.
type AlertEvent struct {
	Timestamp  string   `json:"timestamp"`
	ReportID   string   `json:"report_id"`
	From       string   `json:"from"`
	To         string   `json:"to"`
	Amount     string   `json:"amount"`
	Decision   string   `json:"decision"`
	RiskLevel  string   `json:"risk_level"`
	Reasons    []string `json:"reasons,omitempty"`
	PolicyHash string   `json:"policy_hash,omitempty"`
	Type       string   `json:"type,omitempty"` // "confirmation_used" etc.
}

// NewEvent describes a report for delivery.
func NewEvent(reportID string, r *safety.Report, policyHash string) AlertEvent {
	return AlertEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		ReportID:   reportID,
		From:       r.FromDisplay,
		To:         r.ToDisplay,
		Amount:     r.AmountDisplay,
		Decision:   string(r.Decision()),
		RiskLevel:  r.RiskLevel.String(),
		Reasons:    r.Reasons(),
		PolicyHash: policyHash,
	}
}
