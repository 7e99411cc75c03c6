package address

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies why an address failed verification.
type ErrorKind int

const (
	EmptyAddress ErrorKind = iota
	InvalidLength
	InvalidCharacters
	ParseFailure
)

// Sentinels for errors.Is matching against an *Error of the same kind.
var (
	ErrEmptyAddress      = errors.New("address is empty")
	ErrInvalidLength     = errors.New("address has invalid length")
	ErrInvalidCharacters = errors.New("address has invalid characters")
	ErrParseFailure      = errors.New("address cannot be decoded")
)

func (k ErrorKind) String() string {
	switch k {
	case EmptyAddress:
		return "empty_address"
	case InvalidLength:
		return "invalid_length"
	case InvalidCharacters:
		return "invalid_characters"
	case ParseFailure:
		return "parse_failure"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Error is the structured verification failure. Fields are populated
// according to Kind so callers can render their own messages.
type Error struct {
	Kind    ErrorKind
	Input   string
	MinLen  int
	MaxLen  int
	Got     int
	Invalid []rune
	Cause   error
}

func (e *Error) Error() string {
	switch e.Kind {
	case EmptyAddress:
		return "Address cannot be empty"
	case InvalidLength:
		return fmt.Sprintf("Invalid length: expected %d-%d characters, got %d", e.MinLen, e.MaxLen, e.Got)
	case InvalidCharacters:
		quoted := make([]string, len(e.Invalid))
		for i, r := range e.Invalid {
			quoted[i] = fmt.Sprintf("%q", r)
		}
		return fmt.Sprintf("Invalid base58 characters: [%s]. Base58 does not include 0, O, I, or l",
			strings.Join(quoted, ", "))
	case ParseFailure:
		if e.Cause != nil {
			return fmt.Sprintf("Failed to parse address: %v", e.Cause)
		}
		return "Failed to parse address"
	default:
		return "invalid address"
	}
}

// Unwrap exposes the decoder error for ParseFailure.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrEmptyAddress:
		return e.Kind == EmptyAddress
	case ErrInvalidLength:
		return e.Kind == InvalidLength
	case ErrInvalidCharacters:
		return e.Kind == InvalidCharacters
	case ErrParseFailure:
		return e.Kind == ParseFailure
	}
	return false
}
