// Package address verifies base58 account addresses before funds move
// to them, and compares addresses to surface likely typos.
package address

import (
	"strings"
	"unicode/utf8"

	"github.com/gagliardetto/solana-go"
)

// Accepted address length range, in characters.
const (
	MinLength = 32
	MaxLength = 44
)

// Verification is the full result of a successful Verify.
type Verification struct {
	Address      solana.PublicKey `json:"address"`
	IsValid      bool             `json:"is_valid"`
	ShortDisplay string           `json:"short_display"`
}

// Verify validates an address string and returns the decoded key.
// Leading and trailing whitespace is ignored so pasted addresses work.
func Verify(s string) (solana.PublicKey, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return solana.PublicKey{}, &Error{Kind: EmptyAddress, Input: s}
	}

	n := utf8.RuneCountInString(trimmed)
	if n < MinLength || n > MaxLength {
		return solana.PublicKey{}, &Error{
			Kind:   InvalidLength,
			Input:  trimmed,
			MinLen: MinLength,
			MaxLen: MaxLength,
			Got:    n,
		}
	}

	var invalid []rune
	for _, r := range trimmed {
		if !IsBase58Char(r) {
			invalid = append(invalid, r)
		}
	}
	if len(invalid) > 0 {
		return solana.PublicKey{}, &Error{Kind: InvalidCharacters, Input: trimmed, Invalid: invalid}
	}

	pk, err := solana.PublicKeyFromBase58(trimmed)
	if err != nil {
		return solana.PublicKey{}, &Error{Kind: ParseFailure, Input: trimmed, Cause: err}
	}
	return pk, nil
}

// VerifyFull verifies the address and returns it with its short display form.
func VerifyFull(s string) (Verification, error) {
	pk, err := Verify(s)
	if err != nil {
		return Verification{}, err
	}
	return Verification{
		Address:      pk,
		IsValid:      true,
		ShortDisplay: FormatShort(pk),
	}, nil
}

// FormatShort renders a key as "7xKX...gAsU" for human confirmation.
func FormatShort(pk solana.PublicKey) string {
	return Shorten(pk.String())
}

// Shorten keeps the first and last four characters of s.
// Strings of eight characters or fewer are returned unchanged.
func Shorten(s string) string {
	r := []rune(s)
	if len(r) <= 8 {
		return s
	}
	return string(r[:4]) + "..." + string(r[len(r)-4:])
}

// IsBase58Char reports whether r belongs to the base58 alphabet,
// which omits the look-alike glyphs 0, O, I and l.
func IsBase58Char(r rune) bool {
	switch {
	case r >= '1' && r <= '9':
		return true
	case r >= 'A' && r <= 'H', r >= 'J' && r <= 'N', r >= 'P' && r <= 'Z':
		return true
	case r >= 'a' && r <= 'k', r >= 'm' && r <= 'z':
		return true
	}
	return false
}
