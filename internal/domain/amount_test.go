package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := map[string]string{
		"":         "0",
		"abc":      "0",
		"12":       "12",
		"12,5":     "12.5",
		"1,500.25": "1500.25",
		" 3 000 ":  "3000",
		"1 000":    "1000",
	}
	for in, want := range cases {
		if got := ParseAmount(in); !got.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("ParseAmount(%q) = %s, want %s", in, got, want)
		}
	}
}
