// Package batch validates many transfers concurrently.
package batch

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/transferguard/internal/safety"
)

// DefaultConcurrency bounds balance lookups in flight.
const DefaultConcurrency = 8

// Summary counts outcomes across a batch.
type Summary struct {
	Total    int              `json:"total"`
	Approve  int              `json:"approve"`
	Confirm  int              `json:"confirm"`
	Block    int              `json:"block"`
	MaxRisk  safety.RiskLevel `json:"max_risk"`
	Blocking []int            `json:"blocking,omitempty"`
}

// Validate evaluates every transfer against the sender balance the oracle
// reports. Reports come back in input order. At most concurrency lookups
// run at once (DefaultConcurrency when <= 0). The first oracle error
// cancels the remaining lookups and is returned with the transfer index.
func Validate(ctx context.Context, p *safety.Protocol, oracle safety.BalanceOracle, transfers []safety.Transfer, concurrency int) ([]*safety.Report, error) {
	balances, err := Balances(ctx, oracle, transfers, concurrency)
	if err != nil {
		return nil, err
	}
	reports := make([]*safety.Report, len(transfers))
	for i, t := range transfers {
		reports[i] = p.EvaluateLookup(t, balances[i])
	}
	return reports, nil
}

// Balances fetches every sender balance with the same concurrency and
// error rules as Validate. Balances follow input order; an undecodable
// sender has a nil balance.
func Balances(ctx context.Context, oracle safety.BalanceOracle, transfers []safety.Transfer, concurrency int) ([]*uint64, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	balances := make([]*uint64, len(transfers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, t := range transfers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := safety.SenderBalance(gctx, oracle, t.From)
			if err != nil {
				return fmt.Errorf("batch: transfer %d: %w", i, err)
			}
			balances[i] = b
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return balances, nil
}

// ValidateOffline evaluates transfers against known balances keyed by the
// trimmed sender string. Missing senders have a zero balance.
func ValidateOffline(p *safety.Protocol, transfers []safety.Transfer, balances map[string]uint64) []*safety.Report {
	reports := make([]*safety.Report, len(transfers))
	for i, t := range transfers {
		reports[i] = p.Evaluate(t, balances[strings.TrimSpace(t.From)])
	}
	return reports
}

// Summarize counts decisions and records which indexes were blocked.
func Summarize(reports []*safety.Report) Summary {
	s := Summary{Total: len(reports)}
	for i, r := range reports {
		if r == nil {
			continue
		}
		switch r.Decision() {
		case safety.Approve:
			s.Approve++
		case safety.Confirm:
			s.Confirm++
		case safety.Block:
			s.Block++
			s.Blocking = append(s.Blocking, i)
		}
		if r.RiskLevel > s.MaxRisk {
			s.MaxRisk = r.RiskLevel
		}
	}
	return s
}
