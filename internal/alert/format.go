package alert

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, event AlertEvent) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(event)
	case "pagerduty":
		return formatPagerDuty(event)
	default:
		return formatGeneric(event)
	}
}

func formatGeneric(event AlertEvent) ([]byte, error) {
	return json.Marshal(event)
}

func formatSlack(event AlertEvent) ([]byte, error) {
	reasons := "none"
	if len(event.Reasons) > 0 {
		reasons = "• " + strings.Join(event.Reasons, "\n• ")
	}

	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("transferguard: %s", event.Decision),
				},
			},
			map[string]any{
				"type": "section",
				"fields": []any{
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Transfer:* %s -> %s", event.From, event.To)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Amount:* %s", event.Amount)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Risk:* %s", event.RiskLevel)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Report:* %s", event.ReportID)},
				},
			},
			map[string]any{
				"type": "section",
				"text": map[string]any{"type": "mrkdwn", "text": reasons},
			},
		},
	}
	return json.Marshal(payload)
}

func formatPagerDuty(event AlertEvent) ([]byte, error) {
	payload := map[string]any{
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":  fmt.Sprintf("transferguard %s: %s -> %s (%s)", event.Decision, event.From, event.To, event.Amount),
			"severity": severityFor(event.RiskLevel),
			"source":   "transferguard",
			"custom_details": map[string]any{
				"report_id":  event.ReportID,
				"risk_level": event.RiskLevel,
				"reasons":    event.Reasons,
				"amount":     event.Amount,
			},
		},
	}
	return json.Marshal(payload)
}

func severityFor(risk string) string {
	switch risk {
	case "CRITICAL":
		return "critical"
	case "HIGH":
		return "error"
	case "MEDIUM":
		return "warning"
	default:
		return "info"
	}
}
