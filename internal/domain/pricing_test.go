package domain

import "testing"

func TestComputeTotalsShippingRule(t *testing.T) {
	rule := PricingRule{FreeShippingThreshold: 5000, ShippingFee: 599, Currency: "USD"}

	cases := []struct {
		name         string
		entries      []CartEntry
		wantSubtotal int64
		wantShipping int64
		wantTotal    int64
	}{
		{
			name: "above threshold ships free",
			entries: []CartEntry{
				{Line: CartLine{Quantity: 1}, Product: Product{Price: 5500}},
			},
			wantSubtotal: 5500,
			wantShipping: 0,
			wantTotal:    5500,
		},
		{
			name: "below threshold pays flat fee",
			entries: []CartEntry{
				{Line: CartLine{Quantity: 2}, Product: Product{Price: 1000}},
			},
			wantSubtotal: 2000,
			wantShipping: 599,
			wantTotal:    2599,
		},
		{
			name: "exactly at threshold still pays fee",
			entries: []CartEntry{
				{Line: CartLine{Quantity: 1}, Product: Product{Price: 5000}},
			},
			wantSubtotal: 5000,
			wantShipping: 599,
			wantTotal:    5599,
		},
		{
			name:         "empty cart owes nothing",
			entries:      nil,
			wantSubtotal: 0,
			wantShipping: 0,
			wantTotal:    0,
		},
		{
			name: "sale price wins when lower",
			entries: []CartEntry{
				{Line: CartLine{Quantity: 3}, Product: Product{Price: 1200, SalePrice: 800}},
			},
			wantSubtotal: 2400,
			wantShipping: 599,
			wantTotal:    2999,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			totals := ComputeTotals(tc.entries, rule)
			if totals.Subtotal != tc.wantSubtotal {
				t.Fatalf("subtotal = %d, want %d", totals.Subtotal, tc.wantSubtotal)
			}
			if totals.Shipping != tc.wantShipping {
				t.Fatalf("shipping = %d, want %d", totals.Shipping, tc.wantShipping)
			}
			if totals.Total != tc.wantTotal {
				t.Fatalf("total = %d, want %d", totals.Total, tc.wantTotal)
			}
		})
	}
}

func TestEffectivePrice(t *testing.T) {
	cases := []struct {
		name    string
		product Product
		want    int64
	}{
		{name: "no sale price", product: Product{Price: 900}, want: 900},
		{name: "sale price lower", product: Product{Price: 900, SalePrice: 650}, want: 650},
		{name: "sale price not lower is ignored", product: Product{Price: 900, SalePrice: 1200}, want: 900},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.product.EffectivePrice(); got != tc.want {
				t.Fatalf("effective price = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestTotalsForItems(t *testing.T) {
	rule := PricingRule{FreeShippingThreshold: 5000, ShippingFee: 599, Currency: "USD"}

	items := []OrderItem{
		{UnitPrice: 1500, Quantity: 2},
		{UnitPrice: 700, Quantity: 1},
	}

	totals := TotalsForItems(items, rule)
	if totals.Subtotal != 3700 {
		t.Fatalf("subtotal = %d, want 3700", totals.Subtotal)
	}
	if totals.Shipping != 599 {
		t.Fatalf("shipping = %d, want 599", totals.Shipping)
	}
	if totals.Total != 4299 {
		t.Fatalf("total = %d, want 4299", totals.Total)
	}
}
