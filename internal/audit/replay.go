package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/transferguard/internal/safety"
)

// ReplayFilter selects entries. Zero fields match everything.
type ReplayFilter struct {
	ReportID string
	Address  string // sender or recipient
	Decision string // approve, confirm, block
	From     time.Time
	To       time.Time
	Limit    int // keep only the newest N matches
}

// ReplaySummary holds decision counts for the selected entries.
type ReplaySummary struct {
	Total          int    `json:"total"`
	ApproveCount   int    `json:"approve_count"`
	ConfirmCount   int    `json:"confirm_count"`
	BlockCount     int    `json:"block_count"`
	ConfirmedCount int    `json:"confirmed_count"`
	FirstTimestamp string `json:"first_timestamp"`
	LastTimestamp  string `json:"last_timestamp"`
	MaxRisk        string `json:"max_risk"`
}

// ReplayResult holds filtered entries and their summary.
type ReplayResult struct {
	Filter  ReplayFilter  `json:"-"`
	Entries []AuditEntry  `json:"entries"`
	Summary ReplaySummary `json:"summary"`
}

// Replay reads the audit log and returns entries matching the filter,
// oldest first. Malformed lines are skipped.
func Replay(path string, filter ReplayFilter) (*ReplayResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	result := &ReplayResult{Filter: filter, Entries: []AuditEntry{}}

	scanner := newScanner(f)
	for scanner.Scan() {
		var entry AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if filter.matches(entry) {
			result.Entries = append(result.Entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	if filter.Limit > 0 && len(result.Entries) > filter.Limit {
		result.Entries = result.Entries[len(result.Entries)-filter.Limit:]
	}

	maxRisk := safety.Low
	for _, e := range result.Entries {
		updateSummary(&result.Summary, e)
		if lvl, err := safety.ParseRiskLevel(e.Risk); err == nil && lvl > maxRisk {
			maxRisk = lvl
		}
	}
	if result.Summary.Total > 0 {
		result.Summary.MaxRisk = maxRisk.String()
	}

	return result, nil
}

func (f ReplayFilter) matches(e AuditEntry) bool {
	if f.ReportID != "" && e.ReportID != f.ReportID {
		return false
	}
	if f.Address != "" && !e.Involves(f.Address) {
		return false
	}
	if f.Decision != "" && e.Decision != f.Decision {
		return false
	}
	if !f.From.IsZero() || !f.To.IsZero() {
		ts, err := time.Parse(TimestampFormat, e.Timestamp)
		if err != nil {
			return false
		}
		if !f.From.IsZero() && ts.Before(f.From) {
			return false
		}
		if !f.To.IsZero() && ts.After(f.To) {
			return false
		}
	}
	return true
}

func updateSummary(s *ReplaySummary, entry AuditEntry) {
	s.Total++

	switch safety.Decision(entry.Decision) {
	case safety.Approve:
		s.ApproveCount++
	case safety.Confirm:
		s.ConfirmCount++
	case safety.Block:
		s.BlockCount++
	}
	if entry.Type == "confirmation_used" {
		s.ConfirmedCount++
	}

	if s.FirstTimestamp == "" {
		s.FirstTimestamp = entry.Timestamp
	}
	s.LastTimestamp = entry.Timestamp
}
