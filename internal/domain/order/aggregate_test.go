package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gkstays/booking/internal/domain/discount"
)

// pricedTestLine builds a line with derived fields already set, the way the
// pricer leaves them.
func pricedTestLine(subtotal, tax, disc string) Line {
	l := Line{
		Subtotal:       dec(subtotal),
		TaxAmount:      dec(tax),
		DiscountAmount: dec(disc),
		Taxes: []TaxLine{{
			Type:       "GST 18%",
			Percentage: dec("18"),
			Amount:     dec(tax),
		}},
	}
	l.Total = l.Subtotal.Add(l.TaxAmount).Sub(l.DiscountAmount)
	return l
}

func TestAggregate_Sums(t *testing.T) {
	lines := []Line{
		pricedTestLine("4000", "720", "0"),
		pricedTestLine("6000", "1080", "200"),
	}

	got := Aggregate(lines)

	assert.True(t, dec("10000").Equal(got.Subtotal), "subtotal: got %s", got.Subtotal)
	assert.True(t, dec("1800").Equal(got.TaxAmount))
	assert.True(t, dec("200").Equal(got.DiscountAmount))
	assert.True(t, dec("11600").Equal(got.Total))

	// Order aggregate invariant: every aggregate equals the line sum.
	sumTotals := decimal.Zero
	for _, l := range lines {
		sumTotals = sumTotals.Add(l.Total)
	}
	assert.True(t, sumTotals.Equal(got.Total))
}

func TestAggregate_Empty(t *testing.T) {
	got := Aggregate(nil)

	assert.True(t, got.Subtotal.IsZero())
	assert.True(t, got.Total.IsZero())
	assert.True(t, got.CommissionPercent.IsZero())
	assert.Empty(t, got.Taxes)
}

func TestAggregate_DiscountDetailsDedupedByCode(t *testing.T) {
	d1 := &discount.Detail{Code: "SAVE10", Type: discount.TypePercentage, Value: dec("10"), Description: "first"}
	d2 := &discount.Detail{Code: "SAVE10", Type: discount.TypePercentage, Value: dec("10"), Description: "second"}

	l1 := pricedTestLine("4000", "720", "400")
	l1.Discount = d1
	l2 := pricedTestLine("6000", "1080", "600")
	l2.Discount = d2

	got := Aggregate([]Line{l1, l2})

	require.Len(t, got.DiscountDetails, 1)
	// First occurrence wins.
	assert.Equal(t, "first", got.DiscountDetails[0].Description)
	// Both line amounts still count into the aggregate.
	assert.True(t, dec("1000").Equal(got.DiscountAmount))
}

func TestAggregate_TaxesMergedByType(t *testing.T) {
	got := Aggregate([]Line{
		pricedTestLine("4000", "720", "0"),
		pricedTestLine("6000", "1080", "0"),
	})

	require.Len(t, got.Taxes, 1)
	assert.Equal(t, "GST 18%", got.Taxes[0].Type)
	assert.True(t, dec("1800").Equal(got.Taxes[0].Amount))
	assert.True(t, dec("18").Equal(got.Taxes[0].Percentage))
}

func TestAggregate_CommissionRatesPerProductVariant(t *testing.T) {
	pct := dec("10")

	l1 := pricedTestLine("4000", "720", "0")
	l1.Product = &ProductSnapshot{Name: "Hillside Villa"}
	l1.CommissionPercent = &pct
	l1.CommissionAmount = dec("472")

	// Same product without a variant: same summary key, first seen wins.
	l2 := pricedTestLine("4000", "720", "0")
	l2.Product = &ProductSnapshot{Name: "Hillside Villa"}
	l2.CommissionPercent = &pct
	l2.CommissionAmount = dec("472")

	l3 := pricedTestLine("6000", "1080", "0")
	l3.Product = &ProductSnapshot{Name: "Hillside Villa"}
	l3.Variant = &VariantSnapshot{Name: "Deluxe"}
	l3.CommissionPercent = &pct
	l3.CommissionAmount = dec("708")

	got := Aggregate([]Line{l1, l2, l3})

	require.Len(t, got.CommissionRates, 2)
	assert.Equal(t, "default", got.CommissionRates[0].VariantName)
	// First-seen amount retained, not summed.
	assert.True(t, dec("472").Equal(got.CommissionRates[0].Amount))
	assert.Equal(t, "Deluxe", got.CommissionRates[1].VariantName)

	// The aggregate commission still sums every line.
	assert.True(t, dec("1652").Equal(got.CommissionAmount))
}

func TestAggregate_OrderCommissionPercent(t *testing.T) {
	pct := dec("10")
	l := pricedTestLine("4000", "720", "0")
	l.CommissionPercent = &pct
	l.CommissionAmount = dec("472")

	got := Aggregate([]Line{l})

	// 472 / 4000 * 100 = 11.8
	assert.True(t, dec("11.8").Equal(got.CommissionPercent),
		"commission percent: got %s", got.CommissionPercent)
}
