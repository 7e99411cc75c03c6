// Package sim replays recorded transfers against another policy.
package sim

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/transferguard/internal/audit"
	"github.com/ppiankov/transferguard/internal/budget"
	"github.com/ppiankov/transferguard/internal/denylist"
	"github.com/ppiankov/transferguard/internal/policy"
	"github.com/ppiankov/transferguard/internal/ratelimit"
	"github.com/ppiankov/transferguard/internal/safety"
)

// Simulate replays an audit log against a policy and returns decision
// diffs. Each entry is re-evaluated against the balance it recorded;
// entries without one are skipped. Velocity and spend limits start empty
// and accumulate in log order on the entry timestamps. Typed input and
// recipient re-entry are not recorded, so those checks cannot fire.
func Simulate(logPath, policyPath, denylistPath string) (*SimResult, error) {
	cfg, err := policy.LoadConfig(policyPath)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}

	var dl *denylist.Denylist
	if denylistPath != "" {
		dl, err = denylist.Load(denylistPath)
	} else {
		dl, err = cfg.LoadDenylist()
	}
	if err != nil {
		return nil, fmt.Errorf("load denylist: %w", err)
	}

	var now time.Time
	clock := func() time.Time { return now }
	limiter := ratelimit.NewLimiter(cfg.Velocity, ratelimit.NewTracker()).WithClock(clock)
	spend := budget.NewEnforcer(cfg.Budgets, budget.NewTracker()).WithClock(clock)

	opts := []safety.Option{safety.WithAddressScreen(dl)}
	if limiter != nil {
		opts = append(opts, safety.WithVelocityScreen(limiter))
	}
	if spend != nil {
		opts = append(opts, safety.WithSpendScreen(spend))
	}
	p, err := cfg.Protocol(opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	entries, err := readEntries(logPath)
	if err != nil {
		return nil, err
	}

	result := &SimResult{PolicyPath: policyPath}
	for _, entry := range entries {
		if entry.Transfer.Balance == nil {
			result.Skipped++
			continue
		}
		result.TotalTransfers++
		if ts, err := time.Parse(audit.TimestampFormat, entry.Timestamp); err == nil {
			now = ts
		}

		t := safety.Transfer{
			From:     entry.Transfer.From,
			To:       entry.Transfer.To,
			Amount:   entry.Transfer.Amount,
			Decimals: entry.Transfer.Decimals,
		}
		r := p.Evaluate(t, *entry.Transfer.Balance)
		newDecision := string(r.Decision())
		if r.Decision() == safety.Approve {
			limiter.Record(t.From)
			spend.Record(t.From, t.Amount, t.Decimals)
		}

		if newDecision == entry.Decision {
			continue
		}
		result.Changes = append(result.Changes, DiffEntry{
			Timestamp:   entry.Timestamp,
			ReportID:    entry.ReportID,
			From:        entry.Transfer.From,
			To:          entry.Transfer.To,
			Amount:      entry.Transfer.Display,
			OldDecision: entry.Decision,
			NewDecision: newDecision,
			OldRisk:     entry.Risk,
			NewRisk:     r.RiskLevel.String(),
			NewReasons:  r.Reasons(),
		})
		result.ChangedTransfers++

		if rank(newDecision) > rank(entry.Decision) {
			result.Stricter++
		} else {
			result.Looser++
		}
	}

	return result, nil
}

// readEntries returns the checks in the log. Confirmation-used entries
// repeat an earlier check and are left out.
func readEntries(logPath string) ([]audit.AuditEntry, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var entries []audit.AuditEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry audit.AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if entry.Type != "" {
			continue
		}
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return entries, nil
}
