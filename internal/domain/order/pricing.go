package order

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/gkstays/booking/internal/domain/discount"
)

var hundred = decimal.NewFromInt(100)

// PricingConfig carries the tax regime applied to every line. The GST rate
// is configuration rather than a constant so regimes can change without a
// code change.
type PricingConfig struct {
	GSTPercent decimal.Decimal
}

// DefaultPricingConfig returns the standard 18% GST regime.
func DefaultPricingConfig() PricingConfig {
	return PricingConfig{GSTPercent: decimal.NewFromInt(18)}
}

// LineInput holds the stay inputs a line's financial fields are derived
// from. It carries no derived values.
type LineInput struct {
	Currency          string
	PricePerNight     decimal.Decimal
	Rooms             int
	Nights            int
	ExtraBed          *ExtraBed
	FoodOptions       []FoodOption
	CommissionPercent *decimal.Decimal
}

// PricedLine holds the financial fields derived from a LineInput. These are
// re-derived on every persistence of a line; a stored total that was not
// just recomputed is never trusted.
type PricedLine struct {
	Subtotal          decimal.Decimal
	Taxes             []TaxLine
	TaxAmount         decimal.Decimal
	DiscountAmount    decimal.Decimal
	Total             decimal.Decimal
	CommissionPercent *decimal.Decimal
	CommissionAmount  decimal.Decimal
}

// PriceLine computes one line's financial fields from its stay inputs and
// an optional resolved discount. It is pure: referential validation of
// product/variant ids happens in the orchestrator before pricing.
//
//	subtotal = (pricePerNight + extraBed + sum(foodOptions)) * nights * rooms
//	taxAmount = round(subtotal * gst / 100, 2)
//	total = max(0, subtotal + taxAmount - discountAmount)
func PriceLine(in LineInput, d *discount.Detail, cfg PricingConfig) PricedLine {
	multiplier := decimal.NewFromInt(int64(in.Nights) * int64(in.Rooms))

	subtotal := in.PricePerNight.Mul(multiplier)
	if in.ExtraBed != nil && in.ExtraBed.Available {
		subtotal = subtotal.Add(in.ExtraBed.PricePerNight.Mul(multiplier))
	}
	for _, opt := range in.FoodOptions {
		subtotal = subtotal.Add(opt.AdditionalPrice.Mul(multiplier))
	}

	taxAmount := subtotal.Mul(cfg.GSTPercent).Div(hundred).Round(2)
	taxes := []TaxLine{{
		Type:       fmt.Sprintf("GST %s%%", cfg.GSTPercent),
		Percentage: cfg.GSTPercent,
		Amount:     taxAmount,
	}}

	discountAmount := lineDiscount(subtotal, d)

	total := subtotal.Add(taxAmount).Sub(discountAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	priced := PricedLine{
		Subtotal:       subtotal,
		Taxes:          taxes,
		TaxAmount:      taxAmount,
		DiscountAmount: discountAmount,
		Total:          total,
	}

	if in.CommissionPercent != nil {
		pct := *in.CommissionPercent
		priced.CommissionPercent = &pct
		priced.CommissionAmount = total.Mul(pct).Div(hundred).Round(2)
	}

	return priced
}

// lineDiscount computes the per-line discount amount. The discount only
// applies when the line subtotal meets the discount's minimum; the amount
// is capped at MaxDiscount when set and never exceeds the subtotal.
func lineDiscount(subtotal decimal.Decimal, d *discount.Detail) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	if d.MinAmount != nil && subtotal.LessThan(*d.MinAmount) {
		return decimal.Zero
	}
	return discount.Amount(d, subtotal).Round(2)
}

// input reconstructs the LineInput a stored line was priced from, so lines
// can be re-priced on update without a second resolution pass.
func (l *Line) input() LineInput {
	return LineInput{
		Currency:          l.Currency,
		PricePerNight:     l.PricePerNight,
		Rooms:             l.Rooms,
		Nights:            l.Nights,
		ExtraBed:          l.ExtraBed,
		FoodOptions:       l.FoodOptions,
		CommissionPercent: l.CommissionPercent,
	}
}

// applyPricing copies derived financial fields onto the line.
func (l *Line) applyPricing(p PricedLine) {
	l.Subtotal = p.Subtotal
	l.Taxes = p.Taxes
	l.TaxAmount = p.TaxAmount
	l.DiscountAmount = p.DiscountAmount
	l.Total = p.Total
	l.CommissionPercent = p.CommissionPercent
	l.CommissionAmount = p.CommissionAmount
}
