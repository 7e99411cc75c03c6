package audit

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestFormatTimelineHeaderAndSummary(t *testing.T) {
	result, err := Replay(writeTestLog(t), ReplayFilter{})
	if err != nil {
		t.Fatal(err)
	}

	out := FormatTimeline(result)

	if !strings.Contains(out, "Audit: 2025-01-15 14:00:00") {
		t.Errorf("expected header with first timestamp, got:\n%s", out)
	}
	if !strings.Contains(out, "3 approve") {
		t.Errorf("expected '3 approve' in summary, got:\n%s", out)
	}
	if !strings.Contains(out, "1 block") {
		t.Errorf("expected '1 block' in summary, got:\n%s", out)
	}
	if !strings.Contains(out, "Max risk: CRITICAL") {
		t.Errorf("expected max risk in summary, got:\n%s", out)
	}
}

func TestFormatTimelineEntryColumns(t *testing.T) {
	result, err := Replay(writeTestLog(t), ReplayFilter{})
	if err != nil {
		t.Fatal(err)
	}

	out := FormatTimeline(result)

	for _, want := range []string{"APPROVE", "BLOCK", "CONFIRM", "7xKX...gAsU", "9WzD...AWWM", "20 SOL", "[confirmed]"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in timeline:\n%s", want, out)
		}
	}
}

func TestFormatJSONValid(t *testing.T) {
	result, err := Replay(writeTestLog(t), ReplayFilter{Decision: "block"})
	if err != nil {
		t.Fatal(err)
	}

	out, err := FormatJSON(result)
	if err != nil {
		t.Fatal(err)
	}

	var parsed ReplayResult
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if parsed.Summary.BlockCount != 1 {
		t.Errorf("expected block count 1, got %d", parsed.Summary.BlockCount)
	}
	if len(parsed.Entries) != 1 {
		t.Errorf("expected 1 entry, got %d", len(parsed.Entries))
	}
}

func TestFormatTimelineEmptyEntries(t *testing.T) {
	out := FormatTimeline(&ReplayResult{})
	if !strings.Contains(out, "No audit entries found") {
		t.Errorf("expected empty message, got %q", out)
	}
}
