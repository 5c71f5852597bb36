package domain

// Pricing holds the configured shipping rules. All amounts are in cents.
type Pricing struct {
	ShippingFee     int64 `json:"shipping_fee"`
	FreeShippingMin int64 `json:"free_shipping_min"`
}

// Totals are the derived display and checkout values for a cart. They are
// recomputed on every read and never stored.
type Totals struct {
	ItemCount int   `json:"item_count"`
	Subtotal  int64 `json:"subtotal"`
	Shipping  int64 `json:"shipping"`
	Total     int64 `json:"total"`
}

// Totals derives the aggregate values for the cart under the given pricing.
// The flat shipping fee is waived once the subtotal reaches the free-shipping
// minimum. An empty cart ships nothing and owes nothing.
func (c *Cart) Totals(p Pricing) Totals {
	subtotal := c.Subtotal()

	var shipping int64
	if len(c.Items) > 0 && subtotal < p.FreeShippingMin {
		shipping = p.ShippingFee
	}

	return Totals{
		ItemCount: c.ItemCount(),
		Subtotal:  subtotal,
		Shipping:  shipping,
		Total:     subtotal + shipping,
	}
}
