package sim

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/transferguard/internal/address"
)

// DiffEntry represents one transfer whose decision changed.
type DiffEntry struct {
	Timestamp   string   `json:"ts"`
	ReportID    string   `json:"report_id"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	Amount      string   `json:"amount"`
	OldDecision string   `json:"old_decision"`
	NewDecision string   `json:"new_decision"`
	OldRisk     string   `json:"old_risk"`
	NewRisk     string   `json:"new_risk"`
	NewReasons  []string `json:"new_reasons"`
}

// SimResult holds the complete simulation output.
type SimResult struct {
	PolicyPath       string      `json:"policy_path"`
	TotalTransfers   int         `json:"total_transfers"`
	ChangedTransfers int         `json:"changed_transfers"`
	Stricter         int         `json:"stricter"`
	Looser           int         `json:"looser"`
	Skipped          int         `json:"skipped"`
	Changes          []DiffEntry `json:"changes"`
}

// rank orders decisions from most to least permissive.
func rank(decision string) int {
	switch decision {
	case "approve":
		return 0
	case "confirm":
		return 1
	default:
		return 2
	}
}

// FormatText renders the simulation result as human-readable text.
func FormatText(r *SimResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Simulating %s against %d recorded transfers...\n", r.PolicyPath, r.TotalTransfers)
	if r.Skipped > 0 {
		fmt.Fprintf(&b, "Skipped %d entries without a recorded balance.\n", r.Skipped)
	}

	if len(r.Changes) == 0 {
		b.WriteString("\nNo changes detected.\n")
		return b.String()
	}

	b.WriteString("\n")
	for _, d := range r.Changes {
		ts := d.Timestamp
		if len(ts) >= 19 {
			ts = ts[11:19]
		}
		fmt.Fprintf(&b, "  CHANGED  %s  %s → %s  %-16s %s → %s\n",
			ts, address.Shorten(d.From), address.Shorten(d.To), d.Amount, d.OldDecision, d.NewDecision)
		for _, reason := range d.NewReasons {
			fmt.Fprintf(&b, "           %s\n", reason)
		}
	}

	fmt.Fprintf(&b, "\n%d of %d transfers changed.", r.ChangedTransfers, r.TotalTransfers)
	if r.Stricter > 0 || r.Looser > 0 {
		fmt.Fprintf(&b, " %d stricter, %d looser.", r.Stricter, r.Looser)
	}
	b.WriteString("\n")

	return b.String()
}

// FormatJSON renders the simulation result as JSON.
func FormatJSON(r *SimResult) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal sim result: %w", err)
	}
	return string(data), nil
}
