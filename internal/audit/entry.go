package audit

import (
	"strings"

	"github.com/ppiankov/transferguard/internal/safety"
)

// AuditTransfer is the flattened transfer recorded in each audit entry.
type AuditTransfer struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Amount   uint64 `json:"amount"`
	Decimals uint8  `json:"decimals"`
	Display  string `json:"display"`

	// Balance is the sender balance the check used. Absent in entries
	// written without one.
	Balance *uint64 `json:"balance,omitempty"`
}

// AuditEntry is one line in the hash-chained JSONL audit log.
// All fields are structs or slices (no map[string]any) to guarantee
// deterministic json.Marshal field order for reproducible hashing.
type AuditEntry struct {
	Timestamp  string        `json:"ts"`
	ReportID   string        `json:"report_id"`
	Transfer   AuditTransfer `json:"transfer"`
	Decision   string        `json:"decision"`
	Risk       string        `json:"risk"`
	Reasons    []string      `json:"reasons"`
	PolicyHash string        `json:"policy_hash"`
	Type       string        `json:"type,omitempty"` // "confirmation_used"
	ConfirmKey string        `json:"confirm_key,omitempty"`
	PrevHash   string        `json:"prev_hash"`
}

// NewEntry describes one validation outcome.
func NewEntry(reportID string, t safety.Transfer, r *safety.Report, policyHash string) AuditEntry {
	return AuditEntry{
		ReportID: reportID,
		Transfer: AuditTransfer{
			From:     strings.TrimSpace(t.From),
			To:       strings.TrimSpace(t.To),
			Amount:   t.Amount,
			Decimals: t.Decimals,
			Display:  r.AmountDisplay,
		},
		Decision:   string(r.Decision()),
		Risk:       r.RiskLevel.String(),
		Reasons:    r.Reasons(),
		PolicyHash: policyHash,
	}
}

// Involves reports whether address is the sender or the recipient.
func (e AuditEntry) Involves(address string) bool {
	return e.Transfer.From == address || e.Transfer.To == address
}
