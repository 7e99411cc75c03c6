package amount

import (
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of base units in one SOL.
const LamportsPerSOL uint64 = 1_000_000_000

// MaxDecimals is the largest scale whose power of ten fits in a uint64.
const MaxDecimals uint8 = 19

var maxBaseUnits = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// HumanToToken converts a human amount (1.5 SOL) to base units (lamports).
// The float is read at its shortest decimal representation before scaling,
// which absorbs binary representation error such as 0.001 * 1e9.
// Rounding is half away from zero. Scales above MaxDecimals are rejected
// with Overflow whatever the amount.
func HumanToToken(human float64, decimals uint8) (uint64, error) {
	if human < 0 {
		return 0, &Error{Kind: NegativeAmount, Value: human, Decimals: decimals}
	}
	if math.IsNaN(human) || math.IsInf(human, 0) {
		return 0, &Error{Kind: NotANumber, Value: human, Decimals: decimals}
	}
	if decimals > MaxDecimals {
		return 0, &Error{Kind: Overflow, Value: human, Decimals: decimals}
	}

	scaled := decimal.NewFromFloat(human).Shift(int32(decimals)).Round(0)
	if scaled.GreaterThan(maxBaseUnits) {
		return 0, &Error{Kind: Overflow, Value: human, Decimals: decimals}
	}
	return scaled.BigInt().Uint64(), nil
}

// TokenToHuman converts base units to a float human amount.
// Amounts above 2^53 base units lose precision; display paths use Format.
func TokenToHuman(amount uint64, decimals uint8) float64 {
	return float64(amount) / math.Pow10(int(decimals))
}

// Decimal returns the exact human amount as a decimal.
func Decimal(amount uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals))
}

// Format renders amount with exactly decimals fractional digits.
func Format(amount uint64, decimals uint8) string {
	return Decimal(amount, decimals).StringFixed(int32(decimals))
}

// FormatWithSymbol renders amount without trailing fractional zeros,
// followed by the symbol: "1.5 SOL".
func FormatWithSymbol(amount uint64, decimals uint8, symbol string) string {
	s := Format(amount, decimals)
	if decimals > 0 {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s + " " + symbol
}

// RequiresConfirmation reports whether a USD value meets the threshold.
// The boundary is inclusive.
func RequiresConfirmation(amountUSD, threshold float64) bool {
	return amountUSD >= threshold
}
