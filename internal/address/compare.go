package address

import "strings"

// Comparison describes how two address strings differ.
type Comparison struct {
	Matches             bool  `json:"matches"`
	DifferenceCount     int   `json:"difference_count"`
	DifferencePositions []int `json:"difference_positions"`
	LikelyTypo          bool  `json:"likely_typo"`
}

// maxTypoDifferences is the largest difference count still treated as a
// probable single-character substitution or transposition.
const maxTypoDifferences = 2

// Compare checks two addresses character by character after trimming.
// A position present in only one string counts as a difference.
func Compare(a, b string) Comparison {
	ta := strings.TrimSpace(a)
	tb := strings.TrimSpace(b)

	if ta == tb {
		return Comparison{Matches: true, DifferencePositions: []int{}}
	}

	ra := []rune(ta)
	rb := []rune(tb)
	n := max(len(ra), len(rb))

	positions := []int{}
	for i := 0; i < n; i++ {
		if i >= len(ra) || i >= len(rb) || ra[i] != rb[i] {
			positions = append(positions, i)
		}
	}

	count := len(positions)
	return Comparison{
		Matches:             false,
		DifferenceCount:     count,
		DifferencePositions: positions,
		LikelyTypo:          count > 0 && count <= maxTypoDifferences,
	}
}
