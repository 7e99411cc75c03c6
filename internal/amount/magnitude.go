package amount

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MagnitudeCheck is advisory output of DetectMagnitudeError.
type MagnitudeCheck struct {
	LikelyError    bool    `json:"likely_error"`
	IntendedAmount float64 `json:"intended_amount"`
	ActualAmount   float64 `json:"actual_amount"`
	Explanation    string  `json:"explanation"`
}

// DetectMagnitudeError looks at what the user typed and guesses whether
// they entered the wrong order of magnitude. Pattern match only; it can
// be wrong in both directions and must never block a transfer.
//
// The European-notation rule (1000 meant as 1.000) takes precedence over
// the extra-zeros rule.
func DetectMagnitudeError(input string, actual float64, _ uint8) MagnitudeCheck {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return MagnitudeCheck{
			ActualAmount: actual,
			Explanation:  "Could not parse input",
		}
	}

	check := MagnitudeCheck{
		IntendedAmount: parsed,
		ActualAmount:   actual,
	}
	typed := strconv.FormatFloat(parsed, 'f', -1, 64)

	if parsed >= 1000 {
		european := parsed / 1000
		if european >= 0.001 && european <= 100 {
			check.LikelyError = true
			check.IntendedAmount = european
			check.Explanation = fmt.Sprintf(
				"Did you mean %.3f instead of %s? (European decimal notation)", european, typed)
		}
	}

	if parsed >= 100 && parsed == math.Floor(parsed) {
		zeros := int(math.Floor(math.Log10(parsed))) - 1
		if zeros < 0 {
			zeros = 0
		}
		if zeros >= 2 {
			possible := parsed / math.Pow10(zeros)
			if possible >= 0.1 && possible <= 10 && !check.LikelyError {
				check.LikelyError = true
				check.IntendedAmount = possible
				check.Explanation = fmt.Sprintf(
					"Large round number detected. Did you mean %.1f instead of %s?", possible, typed)
			}
		}
	}

	return check
}
