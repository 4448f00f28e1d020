package domain

// CartTotals summarizes the money amounts computed for a cart or order.
// All amounts are integer minor units in a single currency.
type CartTotals struct {
	Subtotal int64
	Shipping int64
	Total    int64
}

// PricingRule holds the storefront-wide shipping pricing knobs.
type PricingRule struct {
	// FreeShippingThreshold is the subtotal above which shipping is free.
	FreeShippingThreshold int64
	// ShippingFee is the flat fee charged below the threshold.
	ShippingFee int64
	// Currency is the ISO 4217 code all amounts are denominated in.
	Currency string
}

// ShippingFor returns the shipping charge for the given subtotal. Shipping is
// free strictly above the threshold; an empty cart ships for free.
func (r PricingRule) ShippingFor(subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}
	if subtotal > r.FreeShippingThreshold {
		return 0
	}
	return r.ShippingFee
}

// ComputeTotals derives cart totals from the loaded entries under the rule.
func ComputeTotals(entries []CartEntry, rule PricingRule) CartTotals {
	var subtotal int64
	for _, entry := range entries {
		subtotal += entry.LineTotal()
	}

	shipping := rule.ShippingFor(subtotal)

	return CartTotals{
		Subtotal: subtotal,
		Shipping: shipping,
		Total:    subtotal + shipping,
	}
}

// TotalsForItems derives order totals from placed order items under the rule.
func TotalsForItems(items []OrderItem, rule PricingRule) CartTotals {
	var subtotal int64
	for _, item := range items {
		subtotal += item.LineTotal()
	}

	shipping := rule.ShippingFor(subtotal)

	return CartTotals{
		Subtotal: subtotal,
		Shipping: shipping,
		Total:    subtotal + shipping,
	}
}
