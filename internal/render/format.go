package render

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money formats an amount as shown on the page, e.g. "R$ 123.45".
func Money(d decimal.Decimal) string {
	return "R$ " + d.StringFixed(2)
}

// Freight shows "Free" for a waived freight.
func Freight(d decimal.Decimal) string {
	if d.IsZero() {
		return "Free"
	}
	return Money(d)
}

func Discount(d decimal.Decimal) string {
	if d.IsPositive() {
		return "- " + Money(d)
	}
	return Money(decimal.Zero)
}

func selectedLabel(count int) string {
	if count == 1 {
		return "1 item selected"
	}
	return fmt.Sprintf("%d items selected", count)
}
