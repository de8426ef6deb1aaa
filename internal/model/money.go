package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseAmount converts a WooCommerce decimal string ("19.99") to a decimal.
// WooCommerce REST responses carry every price field as a string in major units.
// Empty or malformed input yields zero so a single bad field never aborts a request.
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ToMinor converts a major-unit amount to minor units (cents).
// Rounds half away from zero, matching Klarna's line-level rounding contract.
// Examples: 19.99 → 1999, 0.005 → 1, -0.005 → -1
func ToMinor(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// DivMinor converts a major-unit amount to minor units and divides it by n,
// rounding once at the end. A non-positive n is treated as 1.
// Examples: (39.98, 2) → 1999, (10.00, 3) → 333
func DivMinor(d decimal.Decimal, n int) int64 {
	if n <= 0 {
		n = 1
	}
	return d.Mul(hundred).Div(decimal.NewFromInt(int64(n))).Round(0).IntPart()
}

// ParseCents converts decimal string amounts (dollars) to cents (int64).
// Examples: "99.00" → 9900, "1234.56" → 123456, "" → 0
func ParseCents(s string) int64 {
	return ToMinor(ParseAmount(s))
}

// BasisPoints returns part/whole expressed in hundredths of a percent
// (25% → 2500), the unit Klarna uses for tax_rate. Zero whole yields 0.
func BasisPoints(part, whole decimal.Decimal) int64 {
	if whole.IsZero() {
		return 0
	}
	return part.Div(whole).Mul(decimal.NewFromInt(10000)).Round(0).IntPart()
}

// FormatMoney renders an amount for order notes, e.g. "12.50 EUR".
func FormatMoney(d decimal.Decimal, currency string) string {
	if currency == "" {
		return d.StringFixed(2)
	}
	return fmt.Sprintf("%s %s", d.StringFixed(2), currency)
}
