package guard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ppiankov/transferguard/internal/amount"
	"github.com/ppiankov/transferguard/internal/safety"
)

// ErrInvalidRequest wraps malformed transport input. Transports map it to
// a client error.
var ErrInvalidRequest = errors.New("invalid request")

// Request is the transport form of a transfer check. Base-unit numbers
// travel as strings so that JSON clients keep full uint64 precision.
type Request struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
	// Amount in base units. Exactly one of Amount and Human is set.
	Amount string `json:"amount,omitempty" yaml:"amount,omitempty"`
	// Human is the amount in whole tokens as typed, e.g. "1.5". It also
	// feeds the magnitude check unless Input is set.
	Human     string `json:"human,omitempty" yaml:"human,omitempty"`
	Decimals  *uint8 `json:"decimals,omitempty" yaml:"decimals,omitempty"`
	Balance   string `json:"balance,omitempty" yaml:"balance,omitempty"` // skips the oracle when set
	Input     string `json:"input,omitempty" yaml:"input,omitempty"`
	ConfirmTo string `json:"confirm_to,omitempty" yaml:"confirm_to,omitempty"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// Transfer converts the request, defaulting decimals to the policy's.
func (r Request) Transfer(defaultDecimals uint8) (safety.Transfer, error) {
	t := safety.Transfer{
		From:      r.From,
		To:        r.To,
		Decimals:  defaultDecimals,
		Input:     r.Input,
		ConfirmTo: r.ConfirmTo,
	}
	if r.Decimals != nil {
		t.Decimals = *r.Decimals
	}

	amt := strings.TrimSpace(r.Amount)
	human := strings.TrimSpace(r.Human)
	switch {
	case amt != "" && human != "":
		return t, invalid("set only one of amount and human")
	case amt != "":
		v, err := strconv.ParseUint(amt, 10, 64)
		if err != nil {
			return t, invalid("amount %q is not a base-unit integer", r.Amount)
		}
		t.Amount = v
	case human != "":
		f, err := strconv.ParseFloat(human, 64)
		if err != nil {
			return t, invalid("human amount %q is not a number", r.Human)
		}
		v, err := amount.HumanToToken(f, t.Decimals)
		if err != nil {
			return t, invalid("human amount: %v", err)
		}
		t.Amount = v
		if t.Input == "" {
			t.Input = human
		}
	default:
		return t, invalid("amount is required")
	}
	return t, nil
}

// Handle checks a transport request. With Balance set the oracle is not
// consulted.
func (s *Service) Handle(ctx context.Context, r Request) (*Result, error) {
	t, err := r.Transfer(s.Policy().Decimals)
	if err != nil {
		return nil, err
	}
	if b := strings.TrimSpace(r.Balance); b != "" {
		bal, err := strconv.ParseUint(b, 10, 64)
		if err != nil {
			return nil, invalid("balance %q is not a base-unit integer", r.Balance)
		}
		return s.CheckWithBalance(ctx, t, bal)
	}
	return s.Check(ctx, t)
}

// HandleBatch checks many requests. Either every request carries a
// balance or none does; without balances the oracle lookups run
// concurrently through CheckBatch. Results follow input order.
func (s *Service) HandleBatch(ctx context.Context, reqs []Request, concurrency int) ([]*Result, error) {
	if len(reqs) == 0 {
		return nil, invalid("no transfers")
	}

	withBalance := 0
	for _, r := range reqs {
		if strings.TrimSpace(r.Balance) != "" {
			withBalance++
		}
	}
	switch withBalance {
	case len(reqs):
		results := make([]*Result, len(reqs))
		for i, r := range reqs {
			res, err := s.Handle(ctx, r)
			if err != nil {
				return nil, fmt.Errorf("transfer %d: %w", i, err)
			}
			results[i] = res
		}
		return results, nil
	case 0:
	default:
		return nil, invalid("balance must be set on every transfer or on none")
	}

	decimals := s.Policy().Decimals
	transfers := make([]safety.Transfer, len(reqs))
	for i, r := range reqs {
		t, err := r.Transfer(decimals)
		if err != nil {
			return nil, fmt.Errorf("transfer %d: %w", i, err)
		}
		transfers[i] = t
	}
	return s.CheckBatch(ctx, transfers, concurrency)
}
