// Package safety combines address verification and amount validation into
// a single approve/block decision for a transfer, under a fixed policy.
//
// Evaluation has no side effects: a Protocol is never modified after New
// and can be shared by any number of concurrent callers.
package safety

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ppiankov/transferguard/internal/address"
	"github.com/ppiankov/transferguard/internal/amount"
)

// DefaultLargeAmountThresholdUSD is the USD value at which a transfer
// needs confirmation when a token price is configured.
const DefaultLargeAmountThresholdUSD = 1000.0

// AddressScreen reports whether an address is on a deny list.
type AddressScreen interface {
	Lookup(address string) (label string, listed bool)
}

// VelocityScreen reports whether a sender has used up its transfer
// allowance. It must only read; callers record transfers separately.
type VelocityScreen interface {
	Exceeded(sender string) (reason string, exceeded bool)
}

// SpendScreen reports whether a transfer would push its sender over a
// spending budget. Like VelocityScreen it must only read.
type SpendScreen interface {
	Exceeds(sender string, amount uint64, decimals uint8) (reason string, exceeded bool)
}

// Protocol is the immutable safety policy.
type Protocol struct {
	strict        bool
	thresholdUSD  float64
	tokenPriceUSD float64
	hasTokenPrice bool
	symbol        string
	screen        AddressScreen
	velocity      VelocityScreen
	spend         SpendScreen
}

// Option configures a Protocol at construction.
type Option func(*Protocol)

// WithStrictMode turns every warning into a blocker.
func WithStrictMode() Option {
	return func(p *Protocol) { p.strict = true }
}

// WithLargeAmountThreshold sets the USD confirmation threshold.
func WithLargeAmountThreshold(usd float64) Option {
	return func(p *Protocol) { p.thresholdUSD = usd }
}

// WithTokenPrice sets the USD price of one human unit of the asset.
func WithTokenPrice(usd float64) Option {
	return func(p *Protocol) {
		p.tokenPriceUSD = usd
		p.hasTokenPrice = true
	}
}

// WithSymbol makes amount displays use the symbol ("1.5 SOL").
func WithSymbol(symbol string) Option {
	return func(p *Protocol) { p.symbol = strings.TrimSpace(symbol) }
}

// WithAddressScreen blocks transfers touching listed addresses.
func WithAddressScreen(s AddressScreen) Option {
	return func(p *Protocol) { p.screen = s }
}

// WithVelocityScreen asks for confirmation once a sender exceeds its
// allowance.
func WithVelocityScreen(v VelocityScreen) Option {
	return func(p *Protocol) { p.velocity = v }
}

// WithSpendScreen blocks transfers over the sender's spending budget.
func WithSpendScreen(s SpendScreen) Option {
	return func(p *Protocol) { p.spend = s }
}

// New builds a Protocol and validates its numeric fields.
func New(opts ...Option) (*Protocol, error) {
	p := &Protocol{thresholdUSD: DefaultLargeAmountThresholdUSD}
	for _, opt := range opts {
		opt(p)
	}

	var errs []error
	if math.IsNaN(p.thresholdUSD) || math.IsInf(p.thresholdUSD, 0) || p.thresholdUSD <= 0 {
		errs = append(errs, fmt.Errorf("large amount threshold must be a positive number, got %v", p.thresholdUSD))
	}
	if p.hasTokenPrice && (math.IsNaN(p.tokenPriceUSD) || math.IsInf(p.tokenPriceUSD, 0) || p.tokenPriceUSD < 0) {
		errs = append(errs, fmt.Errorf("token price must be a non-negative number, got %v", p.tokenPriceUSD))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("safety: invalid protocol: %w", err)
	}
	return p, nil
}

// MustNew is New for static configurations known to be valid.
func MustNew(opts ...Option) *Protocol {
	p, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Protocol) StrictMode() bool                 { return p.strict }
func (p *Protocol) LargeAmountThresholdUSD() float64 { return p.thresholdUSD }
func (p *Protocol) Symbol() string                   { return p.symbol }

// TokenPriceUSD returns the configured price, if any.
func (p *Protocol) TokenPriceUSD() (float64, bool) {
	return p.tokenPriceUSD, p.hasTokenPrice
}

// Transfer is one proposed movement of funds.
type Transfer struct {
	From     string `json:"from" yaml:"from"`
	To       string `json:"to" yaml:"to"`
	Amount   uint64 `json:"amount" yaml:"amount"`
	Decimals uint8  `json:"decimals" yaml:"decimals"`

	// Input is the amount exactly as the user typed it, when known.
	// It enables the magnitude-error heuristic.
	Input string `json:"input,omitempty" yaml:"input,omitempty"`

	// ConfirmTo is the recipient typed a second time, when known.
	ConfirmTo string `json:"confirm_to,omitempty" yaml:"confirm_to,omitempty"`
}

// Fingerprint identifies the transfer for confirmation keys and audit.
func (t Transfer) Fingerprint() string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%d",
		strings.TrimSpace(t.From), strings.TrimSpace(t.To), t.Amount, t.Decimals)))
	return hex.EncodeToString(h[:])
}

// ValidateOffline checks a transfer against a balance the caller already has.
func (p *Protocol) ValidateOffline(from, to string, amt uint64, decimals uint8, balance uint64) *Report {
	return p.Evaluate(Transfer{From: from, To: to, Amount: amt, Decimals: decimals}, balance)
}

// Evaluate runs every check and aggregates the findings. Checks never
// short-circuit: one report carries every applicable issue.
func (p *Protocol) Evaluate(t Transfer, balance uint64) *Report {
	return p.evaluate(t, balance, true)
}

// EvaluateLookup evaluates t against a balance from SenderBalance. A nil
// balance was never looked up, so the rules that compare the amount with
// the balance are skipped.
func (p *Protocol) EvaluateLookup(t Transfer, balance *uint64) *Report {
	if balance == nil {
		return p.evaluate(t, 0, false)
	}
	return p.evaluate(t, *balance, true)
}

func (p *Protocol) evaluate(t Transfer, balance uint64, balanceKnown bool) *Report {
	from := strings.TrimSpace(t.From)
	to := strings.TrimSpace(t.To)

	report := newReport(address.Shorten(from), address.Shorten(to), p.formatAmount(t.Amount, t.Decimals))

	if _, err := address.Verify(from); err != nil {
		report.addBlocker("Invalid sender address: " + err.Error())
	}
	if _, err := address.Verify(to); err != nil {
		report.addBlocker("Invalid recipient address: " + err.Error())
	}

	if p.screen != nil {
		if label, listed := p.screen.Lookup(from); listed {
			report.addBlocker("Sender address is denylisted: " + label)
		}
		if label, listed := p.screen.Lookup(to); listed {
			report.addBlocker("Recipient address is denylisted: " + label)
		}
	}

	if from == to {
		report.addWarning("Sending to yourself", Medium)
	}

	if p.velocity != nil {
		if reason, exceeded := p.velocity.Exceeded(from); exceeded {
			report.addWarning("Sender velocity limit reached: "+reason, High)
		}
	}

	if t.ConfirmTo != "" {
		if cmp := address.Compare(to, t.ConfirmTo); !cmp.Matches {
			report.addBlocker(confirmMismatch(cmp))
		}
	}

	validation := amount.Validate(t.Amount, t.Decimals, balance)
	for _, w := range validation.Warnings {
		if !balanceKnown && w.Kind.ComparesBalance() {
			continue
		}
		if w.Kind.Blocking() {
			report.addBlocker(w.Message)
			continue
		}
		report.addWarning(w.Message, levelForKind(w.Kind))
	}

	if t.Input != "" {
		human := amount.TokenToHuman(t.Amount, t.Decimals)
		if check := amount.DetectMagnitudeError(t.Input, human, t.Decimals); check.LikelyError {
			report.addWarning("Possible magnitude error: "+check.Explanation, Medium)
		}
	}

	if p.spend != nil {
		if reason, exceeded := p.spend.Exceeds(from, t.Amount, t.Decimals); exceeded {
			report.addBlocker("Spend budget exceeded: " + reason)
		}
	}

	if p.hasTokenPrice {
		usd := amount.TokenToHuman(t.Amount, t.Decimals) * p.tokenPriceUSD
		if amount.RequiresConfirmation(usd, p.thresholdUSD) {
			report.addWarning(fmt.Sprintf("Large transfer: ~$%.2f USD exceeds $%.0f threshold",
				usd, p.thresholdUSD), High)
		}
	}

	if p.strict {
		report.escalateStrict()
	}

	return report
}

func (p *Protocol) formatAmount(amt uint64, decimals uint8) string {
	if p.symbol != "" {
		return amount.FormatWithSymbol(amt, decimals, p.symbol)
	}
	return amount.Format(amt, decimals)
}

func levelForKind(k amount.WarningKind) RiskLevel {
	switch k {
	case amount.KindEntireBalance:
		return High
	case amount.KindMostOfBalance:
		return Medium
	default:
		return Low
	}
}

func confirmMismatch(cmp address.Comparison) string {
	if cmp.LikelyTypo {
		positions := make([]string, len(cmp.DifferencePositions))
		for i, pos := range cmp.DifferencePositions {
			positions[i] = fmt.Sprintf("%d", pos+1)
		}
		return fmt.Sprintf("Recipient confirmation mismatch: %d character(s) differ at position %s (likely typo)",
			cmp.DifferenceCount, strings.Join(positions, ", "))
	}
	return fmt.Sprintf("Recipient confirmation mismatch: addresses differ at %d positions", cmp.DifferenceCount)
}
