package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount reads a cell as a decimal. Blank or non-numeric input is zero;
// a comma decimal separator and spaces used as digit grouping are accepted.
func ParseAmount(raw string) decimal.Decimal {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return decimal.Zero
	}
	cleaned = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "").Replace(cleaned)
	if strings.Contains(cleaned, ".") {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	} else {
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}
