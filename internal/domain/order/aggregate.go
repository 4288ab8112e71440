package order

import (
	"github.com/shopspring/decimal"

	"github.com/gkstays/booking/internal/domain/discount"
)

// Totals holds the order-level financial fields derived from the current
// line set.
type Totals struct {
	Subtotal          decimal.Decimal
	TaxAmount         decimal.Decimal
	DiscountAmount    decimal.Decimal
	Total             decimal.Decimal
	CommissionAmount  decimal.Decimal
	CommissionPercent decimal.Decimal
	DiscountDetails   []discount.Detail
	Taxes             []TaxLine
	CommissionRates   []CommissionRate
}

// Aggregate derives order-level totals and de-duplicated summaries purely
// from the given lines. It must run after every line-set mutation, before
// the order is persisted, so stored aggregates always match current lines.
func Aggregate(lines []Line) Totals {
	t := Totals{
		Subtotal:         decimal.Zero,
		TaxAmount:        decimal.Zero,
		DiscountAmount:   decimal.Zero,
		Total:            decimal.Zero,
		CommissionAmount: decimal.Zero,
	}

	seenCodes := make(map[string]bool)
	taxIdx := make(map[string]int)
	seenRates := make(map[string]bool)

	for i := range lines {
		l := &lines[i]

		t.Subtotal = t.Subtotal.Add(l.Subtotal)
		t.TaxAmount = t.TaxAmount.Add(l.TaxAmount)
		t.DiscountAmount = t.DiscountAmount.Add(l.DiscountAmount)
		t.Total = t.Total.Add(l.Total)
		t.CommissionAmount = t.CommissionAmount.Add(l.CommissionAmount)

		// Discount summary: first occurrence of a code wins; the amounts of
		// later lines still count into the sums above.
		if l.Discount != nil && !seenCodes[l.Discount.Code] {
			seenCodes[l.Discount.Code] = true
			t.DiscountDetails = append(t.DiscountDetails, *l.Discount)
		}

		// Tax summary: same-type entries merge by summing amounts, keeping
		// the percentage of the first occurrence.
		for _, tax := range l.Taxes {
			if idx, ok := taxIdx[tax.Type]; ok {
				t.Taxes[idx].Amount = t.Taxes[idx].Amount.Add(tax.Amount)
				continue
			}
			taxIdx[tax.Type] = len(t.Taxes)
			t.Taxes = append(t.Taxes, tax)
		}

		// Commission summary: one entry per (product, variant) pair, first
		// seen wins. This is reporting only, not a re-derivation.
		if l.CommissionPercent != nil && l.Product != nil {
			variantName := "default"
			if l.Variant != nil {
				variantName = l.Variant.Name
			}
			key := l.Product.Name + "\x00" + variantName
			if !seenRates[key] {
				seenRates[key] = true
				t.CommissionRates = append(t.CommissionRates, CommissionRate{
					ProductName: l.Product.Name,
					VariantName: variantName,
					Percentage:  *l.CommissionPercent,
					Amount:      l.CommissionAmount,
				})
			}
		}
	}

	if t.Subtotal.IsPositive() {
		t.CommissionPercent = t.CommissionAmount.Div(t.Subtotal).Mul(hundred).Round(2)
	} else {
		t.CommissionPercent = decimal.Zero
	}

	return t
}

// applyTotals copies derived order-level fields onto the order.
func (o *Order) applyTotals(t Totals) {
	o.Subtotal = t.Subtotal
	o.TaxAmount = t.TaxAmount
	o.DiscountAmount = t.DiscountAmount
	o.Total = t.Total
	o.CommissionAmount = t.CommissionAmount
	o.CommissionPercent = t.CommissionPercent
	o.DiscountDetails = t.DiscountDetails
	o.Taxes = t.Taxes
	o.CommissionRates = t.CommissionRates
}
