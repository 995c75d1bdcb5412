// Package money converts between integer minor units and decimal amounts.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ToDecimal converts cents into a currency-unit decimal.
func ToDecimal(cents int) decimal.Decimal {
	return decimal.NewFromInt(int64(cents)).Div(hundred)
}

// FromDecimal converts a currency-unit decimal to cents, rounding half away from zero.
func FromDecimal(amount decimal.Decimal) int {
	return int(amount.Mul(hundred).Round(0).IntPart())
}

// ParseAmount parses a gateway amount such as "1299.50" into cents.
func ParseAmount(value string) (int, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", value, err)
	}
	return FromDecimal(amount), nil
}

// Format renders cents with two fraction digits, e.g. 129950 -> "1299.50".
func Format(cents int) string {
	return ToDecimal(cents).StringFixed(2)
}

// FormatWithCurrency renders cents for display, e.g. "ZAR 1299.50".
func FormatWithCurrency(cents int, currency string) string {
	return fmt.Sprintf("%s %s", currency, Format(cents))
}

// Percent returns pct percent of cents rounded half up to a whole cent.
func Percent(cents int, pct decimal.Decimal) int {
	return int(decimal.NewFromInt(int64(cents)).Mul(pct).Div(hundred).Round(0).IntPart())
}

// PercentCeil returns pct percent of cents rounded up to a whole cent.
func PercentCeil(cents int, pct decimal.Decimal) int {
	return int(decimal.NewFromInt(int64(cents)).Mul(pct).Div(hundred).Ceil().IntPart())
}

// DivRound divides cents into n parts and rounds each half up to a whole cent.
func DivRound(cents, n int) int {
	if n <= 0 {
		return 0
	}
	return int(decimal.NewFromInt(int64(cents)).Div(decimal.NewFromInt(int64(n))).Round(0).IntPart())
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
