package amount

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed unit conversion.
type ErrorKind int

const (
	NegativeAmount ErrorKind = iota
	NotANumber
	Overflow
)

var (
	ErrNegativeAmount = errors.New("amount is negative")
	ErrNotANumber     = errors.New("amount is not a finite number")
	ErrOverflow       = errors.New("amount overflows base units")
)

func (k ErrorKind) String() string {
	switch k {
	case NegativeAmount:
		return "negative_amount"
	case NotANumber:
		return "not_a_number"
	case Overflow:
		return "overflow"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Error reports why a human amount could not be converted to base units.
type Error struct {
	Kind     ErrorKind
	Value    float64
	Decimals uint8
}

func (e *Error) Error() string {
	switch e.Kind {
	case NegativeAmount:
		return "Amount cannot be negative"
	case NotANumber:
		return "Amount must be a valid number"
	case Overflow:
		if e.Decimals > MaxDecimals {
			return fmt.Sprintf("Decimals %d exceed the maximum of %d", e.Decimals, MaxDecimals)
		}
		return fmt.Sprintf("Amount too large, would overflow at %d decimals", e.Decimals)
	default:
		return "invalid amount"
	}
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNegativeAmount:
		return e.Kind == NegativeAmount
	case ErrNotANumber:
		return e.Kind == NotANumber
	case ErrOverflow:
		return e.Kind == Overflow
	}
	return false
}
