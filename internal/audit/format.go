package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/transferguard/internal/address"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a ReplayResult as a human-readable text timeline.
func FormatTimeline(result *ReplayResult) string {
	if len(result.Entries) == 0 {
		return "No audit entries found.\n"
	}

	var b strings.Builder

	s := result.Summary
	b.WriteString(fmt.Sprintf("Audit: %s–%s UTC\n", formatDateRange(s.FirstTimestamp), formatTimeOnly(s.LastTimestamp)))
	b.WriteString(separator + "\n")

	for _, e := range result.Entries {
		tag := ""
		if e.Type == "confirmation_used" {
			tag = "  [confirmed]"
		}
		b.WriteString(fmt.Sprintf("%-10s %-8s %-8s %-11s -> %-11s %-22s%s\n",
			formatTimeOnly(e.Timestamp),
			strings.ToUpper(e.Decision),
			e.Risk,
			address.Shorten(e.Transfer.From),
			address.Shorten(e.Transfer.To),
			truncate(e.Transfer.Display, 22),
			tag))
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(s))

	return b.String()
}

// FormatJSON renders a ReplayResult as indented JSON.
func FormatJSON(result *ReplayResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay result: %w", err)
	}
	return string(data), nil
}

func formatDateRange(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(s ReplaySummary) string {
	parts := []string{}
	if s.ApproveCount > 0 {
		parts = append(parts, fmt.Sprintf("%d approve", s.ApproveCount))
	}
	if s.ConfirmCount > 0 {
		parts = append(parts, fmt.Sprintf("%d confirm", s.ConfirmCount))
	}
	if s.BlockCount > 0 {
		parts = append(parts, fmt.Sprintf("%d block", s.BlockCount))
	}
	if s.ConfirmedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d confirmed", s.ConfirmedCount))
	}
	return fmt.Sprintf("Summary: %s | Max risk: %s\n", strings.Join(parts, ", "), s.MaxRisk)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
