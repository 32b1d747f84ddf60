package cart

import "github.com/shopspring/decimal"

// Business thresholds for freight and discount.
var (
	FreeShippingThreshold = decimal.RequireFromString("200.00")
	FlatFreight           = decimal.RequireFromString("15.90")
	DiscountThreshold     = decimal.RequireFromString("300.00")
	DiscountRate          = decimal.RequireFromString("0.10")
)

// Totals is the computed summary of a cart and its selection.
type Totals struct {
	Subtotal         decimal.Decimal `json:"subtotal"`
	SelectedSubtotal decimal.Decimal `json:"selectedSubtotal"`
	SelectedCount    int             `json:"selectedCount"`
	SelectedLines    int             `json:"selectedLines"`
	ItemCount        int             `json:"itemCount"`
	Freight          decimal.Decimal `json:"freight"`
	Discount         decimal.Decimal `json:"discount"`
	Total            decimal.Decimal `json:"total"`
}

// ComputeTotals derives subtotal, freight, discount and grand total. Freight
// is waived strictly above FreeShippingThreshold and the discount applies
// strictly above DiscountThreshold.
func ComputeTotals(c Cart, sel Selection) Totals {
	t := Totals{
		Subtotal:         decimal.Zero,
		SelectedSubtotal: decimal.Zero,
	}
	for _, line := range c {
		lineTotal := line.Total()
		t.Subtotal = t.Subtotal.Add(lineTotal)
		t.ItemCount += line.Quantity
		if sel.Has(line.ID) {
			t.SelectedSubtotal = t.SelectedSubtotal.Add(lineTotal)
			t.SelectedCount += line.Quantity
			t.SelectedLines++
		}
	}

	t.Freight = FlatFreight
	if t.Subtotal.GreaterThan(FreeShippingThreshold) {
		t.Freight = decimal.Zero
	}
	t.Discount = decimal.Zero
	if t.Subtotal.GreaterThan(DiscountThreshold) {
		t.Discount = t.Subtotal.Mul(DiscountRate).Round(2)
	}
	t.Total = t.Subtotal.Add(t.Freight).Sub(t.Discount)
	return t
}
