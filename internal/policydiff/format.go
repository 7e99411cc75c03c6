package policydiff

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatText renders the diff result as human-readable text.
func FormatText(r *DiffResult) string {
	if !r.HasChanges {
		return fmt.Sprintf("Policy diff: %s → %s\n\nNo changes detected.\n", r.OldPath, r.NewPath)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Policy diff: %s → %s\n", r.OldPath, r.NewPath)

	topLevel := filterTopLevel(r.Changes)
	alerts := filterChanges(r.Changes, "alerts")

	if len(topLevel) > 0 {
		b.WriteString("\n")
		for _, c := range topLevel {
			fmt.Fprintf(&b, "  %-28s %s → %s", c.Field+":", c.Old, c.New)
			if c.Comment != "" {
				fmt.Fprintf(&b, "  (%s)", c.Comment)
			}
			b.WriteString("\n")
		}
	}

	if len(r.LimitChanges) > 0 {
		b.WriteString("\n  Velocity:\n")
		for _, lc := range r.LimitChanges {
			mark := "~"
			switch lc.Type {
			case "added":
				mark = "+"
			case "removed":
				mark = "-"
			}
			fmt.Fprintf(&b, "    %s %s: %s", mark, lc.Sender, lc.Limit)
			if lc.Comment != "" {
				fmt.Fprintf(&b, "  (%s)", lc.Comment)
			}
			b.WriteString("\n")
		}
	}

	if len(alerts) > 0 {
		b.WriteString("\n")
		for _, c := range alerts {
			switch c.Comment {
			case "added":
				fmt.Fprintf(&b, "  %s: + %s\n", c.Field, c.New)
			case "removed":
				fmt.Fprintf(&b, "  %s: - %s\n", c.Field, c.Old)
			}
		}
	}

	return b.String()
}

// FormatJSON renders the diff result as JSON.
func FormatJSON(r *DiffResult) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal diff result: %w", err)
	}
	return string(data), nil
}

func filterChanges(changes []Change, fields ...string) []Change {
	var out []Change
	for _, c := range changes {
		for _, f := range fields {
			if c.Field == f {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func filterTopLevel(changes []Change) []Change {
	var out []Change
	for _, c := range changes {
		if c.Field != "alerts" {
			out = append(out, c)
		}
	}
	return out
}
