package denylist

import (
	"testing"
)

func FuzzLookup(f *testing.F) {
	dl := NewDefault()
	_ = dl.AddPattern("7xKX*gAsU", "lookalike")

	seeds := []string{
		"",
		"11111111111111111111111111111111",
		"7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
		"7xKX.*gAsU",
		"(((",
		"   ",
	}
	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, address string) {
		// Must not panic on any input
		dl.Lookup(address)
	})
}
