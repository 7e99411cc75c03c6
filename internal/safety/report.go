package safety

import (
	"fmt"
	"strings"
)

// Decision is the single-word outcome transports and logs use.
type Decision string

const (
	Approve Decision = "approve"
	Confirm Decision = "confirm"
	Block   Decision = "block"
)

// Report is the result of one validation. It is built by Evaluate and not
// modified afterwards.
type Report struct {
	Approved             bool      `json:"approved"`
	RiskLevel            RiskLevel `json:"risk_level"`
	Warnings             []string  `json:"warnings"`
	Blockers             []string  `json:"blockers"`
	FromDisplay          string    `json:"from_display"`
	ToDisplay            string    `json:"to_display"`
	AmountDisplay        string    `json:"amount_display"`
	RequiresConfirmation bool      `json:"requires_confirmation"`
}

func newReport(fromDisplay, toDisplay, amountDisplay string) *Report {
	return &Report{
		Approved:      true,
		RiskLevel:     Low,
		Warnings:      []string{},
		Blockers:      []string{},
		FromDisplay:   fromDisplay,
		ToDisplay:     toDisplay,
		AmountDisplay: amountDisplay,
	}
}

func (r *Report) addWarning(msg string, level RiskLevel) {
	r.Warnings = append(r.Warnings, msg)
	if level > r.RiskLevel {
		r.RiskLevel = level
	}
	if r.RiskLevel.RequiresConfirmation() {
		r.RequiresConfirmation = true
	}
}

// addBlocker always wins: the report is rejected at Critical.
func (r *Report) addBlocker(msg string) {
	r.Blockers = append(r.Blockers, msg)
	r.Approved = false
	r.RiskLevel = Critical
	r.RequiresConfirmation = true
}

// escalateStrict moves every warning into the blockers.
func (r *Report) escalateStrict() {
	if len(r.Warnings) == 0 {
		return
	}
	warnings := r.Warnings
	r.Warnings = []string{}
	for _, w := range warnings {
		r.addBlocker("STRICT: " + w)
	}
}

// Decision collapses the report to approve, confirm or block.
func (r *Report) Decision() Decision {
	switch {
	case !r.Approved:
		return Block
	case r.RequiresConfirmation:
		return Confirm
	default:
		return Approve
	}
}

// Reasons returns blockers followed by warnings.
func (r *Report) Reasons() []string {
	out := make([]string, 0, len(r.Blockers)+len(r.Warnings))
	out = append(out, r.Blockers...)
	return append(out, r.Warnings...)
}

// Summary renders the report for terminals and logs.
func (r *Report) Summary() string {
	status := "APPROVED"
	if !r.Approved {
		status = "BLOCKED"
	}

	lines := []string{
		fmt.Sprintf("Safety Report: %s (Risk: %s)", status, r.RiskLevel),
		fmt.Sprintf("Transfer: %s -> %s", r.FromDisplay, r.ToDisplay),
		fmt.Sprintf("Amount: %s", r.AmountDisplay),
	}

	if len(r.Warnings) > 0 {
		lines = append(lines, fmt.Sprintf("Warnings (%d):", len(r.Warnings)))
		for _, w := range r.Warnings {
			lines = append(lines, "  - "+w)
		}
	}

	if len(r.Blockers) > 0 {
		lines = append(lines, fmt.Sprintf("Blockers (%d):", len(r.Blockers)))
		for _, b := range r.Blockers {
			lines = append(lines, "  - "+b)
		}
	}

	return strings.Join(lines, "\n")
}
