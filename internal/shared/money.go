package shared

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RoundINR rounds a monetary amount to two decimal places, half up.
func RoundINR(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatINR renders an amount with the rupee sign and Indian digit grouping
// (₹12,34,567.89).
func FormatINR(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().Round(2).StringFixed(2)
	intPart, fracPart, _ := strings.Cut(s, ".")

	grouped := groupIndian(intPart)
	out := "₹" + grouped + "." + fracPart
	if neg {
		out = "-" + out
	}
	return out
}

// groupIndian inserts commas in the 3-then-2 Indian pattern.
func groupIndian(digits string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}
	head := digits[:n-3]
	tail := digits[n-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(parts, ",") + "," + tail
}
