// Package amount converts between human and base-unit amounts and checks
// a transfer amount against the sender's balance.
package amount

import "fmt"

// Severity grades a non-blocking amount warning.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// WarningKind identifies which amount rule produced a warning.
type WarningKind string

const (
	KindEntireBalance  WarningKind = "entire_balance"
	KindMostOfBalance  WarningKind = "most_of_balance"
	KindZeroAmount     WarningKind = "zero_amount"
	KindExceedsBalance WarningKind = "exceeds_balance"
)

// Blocking reports whether a warning of this kind makes the transfer invalid.
func (k WarningKind) Blocking() bool {
	return k == KindZeroAmount || k == KindExceedsBalance
}

// ComparesBalance reports whether the rule needs the sender's balance.
// Only the zero-amount rule stands on the amount alone.
func (k WarningKind) ComparesBalance() bool {
	return k != KindZeroAmount
}

// Warning is one classified finding from Validate.
type Warning struct {
	Kind     WarningKind `json:"kind"`
	Severity Severity    `json:"severity"`
	Message  string      `json:"message"`
}

// Validation is the outcome of checking an amount against a balance.
type Validation struct {
	IsValid              bool      `json:"is_valid"`
	Warnings             []Warning `json:"warnings"`
	RequiresConfirmation bool      `json:"requires_confirmation"`
	HumanReadable        string    `json:"human_readable"`
	Amount               uint64    `json:"amount"`
}

// Messages returns the warning texts in order.
func (v Validation) Messages() []string {
	out := make([]string, len(v.Warnings))
	for i, w := range v.Warnings {
		out[i] = w.Message
	}
	return out
}

// Balance-fraction thresholds, in percent.
const (
	entireBalancePct = 99.0
	mostOfBalancePct = 90.0
)

// Validate checks amount against balance. Rules are cumulative:
// a zero balance with a positive amount yields only the exceeds warning,
// a zero amount never trips the balance-fraction rules.
func Validate(amount uint64, decimals uint8, balance uint64) Validation {
	var warnings []Warning
	requiresConfirmation := false

	if balance > 0 {
		pct := float64(amount) / float64(balance) * 100.0

		switch {
		case pct > entireBalancePct:
			warnings = append(warnings, Warning{
				Kind:     KindEntireBalance,
				Severity: SeverityHigh,
				Message:  "Sending entire balance. No funds will remain for fees.",
			})
			requiresConfirmation = true
		case pct > mostOfBalancePct:
			warnings = append(warnings, Warning{
				Kind:     KindMostOfBalance,
				Severity: SeverityMedium,
				Message: fmt.Sprintf("Sending %.1f%% of balance. Only %s will remain.",
					pct, Format(balance-amount, decimals)),
			})
			requiresConfirmation = true
		}
	}

	if amount == 0 {
		warnings = append(warnings, Warning{
			Kind:     KindZeroAmount,
			Severity: SeverityHigh,
			Message:  "Amount is zero.",
		})
	}

	if amount > balance {
		warnings = append(warnings, Warning{
			Kind:     KindExceedsBalance,
			Severity: SeverityHigh,
			Message: fmt.Sprintf("Amount (%s) exceeds balance (%s).",
				Format(amount, decimals), Format(balance, decimals)),
		})
	}

	return Validation{
		IsValid:              amount <= balance && amount > 0,
		Warnings:             warnings,
		RequiresConfirmation: requiresConfirmation,
		HumanReadable:        Format(amount, decimals),
		Amount:               amount,
	}
}
