package domain

import (
	apperrors "github.com/joa111/ecom-mang/pkg/errors"
)

// StockUnknown marks a line item whose stock bound has not been fetched.
// Unknown stock is treated as unbounded.
const StockUnknown = 0

// Product is the catalog snapshot captured when an item is added to the cart.
// UnitPrice is in cents. StockQuantity is advisory only; checkout revalidates.
type Product struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	UnitPrice     int64  `json:"unit_price"`
	StockQuantity int    `json:"stock_quantity"`
	ImageURL      string `json:"image_url,omitempty"`
}

// LineItem is one product-and-quantity entry within a cart.
type LineItem struct {
	ProductID     string `json:"product_id"`
	Name          string `json:"name"`
	UnitPrice     int64  `json:"unit_price"`
	Quantity      int    `json:"quantity"`
	StockQuantity int    `json:"stock_quantity,omitempty"`
	ImageURL      string `json:"image_url,omitempty"`
}

// Cart holds the in-memory line items for one session. Product IDs are unique
// within a cart; items keep insertion order. All mutations are synchronous and
// perform no I/O.
type Cart struct {
	Items []LineItem `json:"items"`
}

// NewCart creates an empty cart.
func NewCart() *Cart {
	return &Cart{Items: []LineItem{}}
}

// clampToStock bounds qty by stock when the stock bound is known.
func clampToStock(qty, stock int) int {
	if stock != StockUnknown && qty > stock {
		return stock
	}
	return qty
}

// FindIndex returns the index of the line item for the given product ID,
// or -1 if the cart has no such item.
func (c *Cart) FindIndex(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// AddItem adds qty units of the given product. If the product is already in
// the cart its quantity is increased and the catalog snapshot refreshed;
// otherwise a new line item is appended. The resulting quantity is clamped to
// the product's stock bound when known. Clamping is not an error: the applied
// post-clamp quantity and a clamped flag are returned so the caller can
// surface a notice.
func (c *Cart) AddItem(p Product, qty int) (applied int, clamped bool, err error) {
	if qty < 1 {
		return 0, false, apperrors.InvalidQuantity("quantity to add must be at least 1")
	}

	if i := c.FindIndex(p.ID); i >= 0 {
		want := c.Items[i].Quantity + qty
		applied = clampToStock(want, p.StockQuantity)
		c.Items[i].Quantity = applied
		c.Items[i].Name = p.Name
		c.Items[i].UnitPrice = p.UnitPrice
		c.Items[i].StockQuantity = p.StockQuantity
		c.Items[i].ImageURL = p.ImageURL
		return applied, applied < want, nil
	}

	applied = clampToStock(qty, p.StockQuantity)
	c.Items = append(c.Items, LineItem{
		ProductID:     p.ID,
		Name:          p.Name,
		UnitPrice:     p.UnitPrice,
		Quantity:      applied,
		StockQuantity: p.StockQuantity,
		ImageURL:      p.ImageURL,
	})
	return applied, applied < qty, nil
}

// RemoveItem decreases the quantity of the given product by qty. When the
// result drops to zero or below, the line item is deleted entirely; a cart
// never holds a zero-quantity row. Removing an absent product returns
// ErrNotFound.
func (c *Cart) RemoveItem(productID string, qty int) (remaining int, err error) {
	if qty < 1 {
		return 0, apperrors.InvalidQuantity("quantity to remove must be at least 1")
	}

	i := c.FindIndex(productID)
	if i < 0 {
		return 0, apperrors.NotFound("cart item", productID)
	}

	remaining = c.Items[i].Quantity - qty
	if remaining <= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return 0, nil
	}

	c.Items[i].Quantity = remaining
	return remaining, nil
}

// SetQuantity replaces the stored quantity for the given product. A negative
// quantity is rejected with ErrInvalidQuantity; zero deletes the line item;
// any other value is clamped to the item's stock bound when known.
func (c *Cart) SetQuantity(productID string, qty int) (applied int, clamped bool, err error) {
	if qty < 0 {
		return 0, false, apperrors.InvalidQuantity("quantity must not be negative")
	}

	i := c.FindIndex(productID)
	if i < 0 {
		return 0, false, apperrors.NotFound("cart item", productID)
	}

	if qty == 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return 0, false, nil
	}

	applied = clampToStock(qty, c.Items[i].StockQuantity)
	c.Items[i].Quantity = applied
	return applied, applied < qty, nil
}

// Clear empties the cart. Used after a successful checkout.
func (c *Cart) Clear() {
	c.Items = []LineItem{}
}

// ItemCount returns the sum of quantities across all line items.
func (c *Cart) ItemCount() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// Subtotal returns the sum of unit price times quantity over all line items,
// in cents.
func (c *Cart) Subtotal() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

// Clone returns a deep copy of the cart. The reconciler hands copies to
// callers so the live cart is never shared outside its session.
func (c *Cart) Clone() *Cart {
	items := make([]LineItem, len(c.Items))
	copy(items, c.Items)
	return &Cart{Items: items}
}
