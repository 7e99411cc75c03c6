package safety

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/ppiankov/transferguard/internal/address"
)

// BalanceOracle supplies the sender's current balance in base units.
// Implementations own timeouts and retries.
type BalanceOracle interface {
	Balance(ctx context.Context, account solana.PublicKey) (uint64, error)
}

// Validate fetches the sender's balance and evaluates the transfer.
func (p *Protocol) Validate(ctx context.Context, oracle BalanceOracle, from, to string, amt uint64, decimals uint8) (*Report, error) {
	return p.ValidateTransfer(ctx, oracle, Transfer{From: from, To: to, Amount: amt, Decimals: decimals})
}

// ValidateTransfer is Validate for a full Transfer.
//
// An undecodable sender has no balance to fetch; the report then carries
// the invalid-sender blocker and skips the balance rules. Oracle errors
// are returned as-is and no report is produced, because a guessed balance
// could yield a wrong verdict.
func (p *Protocol) ValidateTransfer(ctx context.Context, oracle BalanceOracle, t Transfer) (*Report, error) {
	balance, err := SenderBalance(ctx, oracle, t.From)
	if err != nil {
		return nil, err
	}
	return p.EvaluateLookup(t, balance), nil
}

// SenderBalance asks the oracle for from's balance. An undecodable sender
// is not looked up and yields a nil balance.
func SenderBalance(ctx context.Context, oracle BalanceOracle, from string) (*uint64, error) {
	sender, err := address.Verify(from)
	if err != nil {
		return nil, nil
	}
	balance, err := oracle.Balance(ctx, sender)
	if err != nil {
		return nil, err
	}
	return &balance, nil
}
