package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gkstays/booking/internal/domain/discount"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestPriceLine(t *testing.T) {
	cfg := DefaultPricingConfig()

	tests := []struct {
		name         string
		in           LineInput
		discount     *discount.Detail
		wantSubtotal string
		wantTax      string
		wantDiscount string
		wantTotal    string
	}{
		{
			name: "two nights one room no extras",
			in: LineInput{
				PricePerNight: dec("2000"),
				Nights:        2,
				Rooms:         1,
			},
			wantSubtotal: "4000",
			wantTax:      "720",
			wantDiscount: "0",
			wantTotal:    "4720",
		},
		{
			name: "ten percent discount capped at 300",
			in: LineInput{
				PricePerNight: dec("2000"),
				Nights:        2,
				Rooms:         1,
			},
			discount: &discount.Detail{
				Code:        "SAVE10",
				Type:        discount.TypePercentage,
				Value:       dec("10"),
				MaxDiscount: decPtr("300"),
			},
			wantSubtotal: "4000",
			wantTax:      "720",
			wantDiscount: "300",
			wantTotal:    "4420",
		},
		{
			name: "extra bed multiplies by nights and rooms",
			in: LineInput{
				PricePerNight: dec("1500"),
				Nights:        3,
				Rooms:         2,
				ExtraBed:      &ExtraBed{Available: true, PricePerNight: dec("500")},
			},
			// (1500 + 500) * 6 = 12000
			wantSubtotal: "12000",
			wantTax:      "2160",
			wantDiscount: "0",
			wantTotal:    "14160",
		},
		{
			name: "unavailable extra bed is ignored",
			in: LineInput{
				PricePerNight: dec("1000"),
				Nights:        1,
				Rooms:         1,
				ExtraBed:      &ExtraBed{Available: false, PricePerNight: dec("500")},
			},
			wantSubtotal: "1000",
			wantTax:      "180",
			wantDiscount: "0",
			wantTotal:    "1180",
		},
		{
			name: "food options billed per room-night",
			in: LineInput{
				PricePerNight: dec("1000"),
				Nights:        2,
				Rooms:         1,
				FoodOptions: []FoodOption{
					{Plan: "breakfast", AdditionalPrice: dec("200")},
					{Plan: "dinner", AdditionalPrice: dec("350")},
				},
			},
			// (1000 + 200 + 350) * 2 = 3100
			wantSubtotal: "3100",
			wantTax:      "558",
			wantDiscount: "0",
			wantTotal:    "3658",
		},
		{
			name: "discount below line minimum does not apply",
			in: LineInput{
				PricePerNight: dec("1000"),
				Nights:        1,
				Rooms:         1,
			},
			discount: &discount.Detail{
				Code:      "BIG",
				Type:      discount.TypeFixed,
				Value:     dec("100"),
				MinAmount: decPtr("5000"),
			},
			wantSubtotal: "1000",
			wantTax:      "180",
			wantDiscount: "0",
			wantTotal:    "1180",
		},
		{
			name: "fixed discount clamped to subtotal and total floored at zero",
			in: LineInput{
				PricePerNight: dec("100"),
				Nights:        1,
				Rooms:         1,
			},
			discount: &discount.Detail{
				Code:  "HUGE",
				Type:  discount.TypeFixed,
				Value: dec("100000"),
			},
			wantSubtotal: "100",
			wantTax:      "18",
			wantDiscount: "100",
			wantTotal:    "18",
		},
		{
			name: "tax rounded to two decimals",
			in: LineInput{
				PricePerNight: dec("333.33"),
				Nights:        1,
				Rooms:         1,
			},
			// 333.33 * 0.18 = 59.9994 -> 60.00
			wantSubtotal: "333.33",
			wantTax:      "60",
			wantDiscount: "0",
			wantTotal:    "393.33",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PriceLine(tt.in, tt.discount, cfg)

			assert.True(t, dec(tt.wantSubtotal).Equal(got.Subtotal),
				"subtotal: want %s, got %s", tt.wantSubtotal, got.Subtotal)
			assert.True(t, dec(tt.wantTax).Equal(got.TaxAmount),
				"tax: want %s, got %s", tt.wantTax, got.TaxAmount)
			assert.True(t, dec(tt.wantDiscount).Equal(got.DiscountAmount),
				"discount: want %s, got %s", tt.wantDiscount, got.DiscountAmount)
			assert.True(t, dec(tt.wantTotal).Equal(got.Total),
				"total: want %s, got %s", tt.wantTotal, got.Total)

			// Line total invariant holds for every priced line.
			expect := got.Subtotal.Add(got.TaxAmount).Sub(got.DiscountAmount)
			if expect.IsNegative() {
				expect = decimal.Zero
			}
			assert.True(t, expect.Equal(got.Total))

			// Discount never exceeds the pre-tax subtotal.
			assert.True(t, got.DiscountAmount.LessThanOrEqual(got.Subtotal))
		})
	}
}

func TestPriceLine_TaxLineShape(t *testing.T) {
	got := PriceLine(LineInput{
		PricePerNight: dec("2000"),
		Nights:        2,
		Rooms:         1,
	}, nil, DefaultPricingConfig())

	require.Len(t, got.Taxes, 1)
	assert.Equal(t, "GST 18%", got.Taxes[0].Type)
	assert.True(t, dec("18").Equal(got.Taxes[0].Percentage))
	assert.True(t, got.TaxAmount.Equal(got.Taxes[0].Amount))
}

func TestPriceLine_ConfigurableTaxRate(t *testing.T) {
	got := PriceLine(LineInput{
		PricePerNight: dec("1000"),
		Nights:        1,
		Rooms:         1,
	}, nil, PricingConfig{GSTPercent: dec("12")})

	require.Len(t, got.Taxes, 1)
	assert.Equal(t, "GST 12%", got.Taxes[0].Type)
	assert.True(t, dec("120").Equal(got.TaxAmount))
}

func TestPriceLine_Commission(t *testing.T) {
	got := PriceLine(LineInput{
		PricePerNight:     dec("2000"),
		Nights:            2,
		Rooms:             1,
		CommissionPercent: decPtr("10"),
	}, nil, DefaultPricingConfig())

	require.NotNil(t, got.CommissionPercent)
	// 10% of total 4720
	assert.True(t, dec("472").Equal(got.CommissionAmount),
		"commission: got %s", got.CommissionAmount)
}

func TestPriceLine_NoCommissionWhenUnset(t *testing.T) {
	got := PriceLine(LineInput{
		PricePerNight: dec("2000"),
		Nights:        1,
		Rooms:         1,
	}, nil, DefaultPricingConfig())

	assert.Nil(t, got.CommissionPercent)
	assert.True(t, got.CommissionAmount.IsZero())
}

// Tax determinism: identical inputs always yield exactly round(subtotal*0.18, 2).
func TestPriceLine_TaxDeterminism(t *testing.T) {
	in := LineInput{PricePerNight: dec("1234.56"), Nights: 3, Rooms: 2}
	cfg := DefaultPricingConfig()

	first := PriceLine(in, nil, cfg)
	for range 50 {
		got := PriceLine(in, nil, cfg)
		assert.True(t, first.TaxAmount.Equal(got.TaxAmount))
	}
	want := first.Subtotal.Mul(dec("0.18")).Round(2)
	assert.True(t, want.Equal(first.TaxAmount))
}
