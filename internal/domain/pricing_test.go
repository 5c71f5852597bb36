package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPricing = Pricing{ShippingFee: 1000, FreeShippingMin: 15000}

// ============================================================================
// Totals Tests
// ============================================================================

func TestTotals_EmptyCart(t *testing.T) {
	totals := NewCart().Totals(testPricing)

	assert.Equal(t, 0, totals.ItemCount)
	assert.Equal(t, int64(0), totals.Subtotal)
	assert.Equal(t, int64(0), totals.Shipping, "an empty cart ships nothing")
	assert.Equal(t, int64(0), totals.Total)
}

func TestTotals_BelowFreeShippingMin(t *testing.T) {
	cart := NewCart()
	_, _, err := cart.AddItem(product("a", 14999, 0), 1)
	require.NoError(t, err)

	totals := cart.Totals(testPricing)

	assert.Equal(t, int64(14999), totals.Subtotal)
	assert.Equal(t, int64(1000), totals.Shipping)
	assert.Equal(t, int64(15999), totals.Total)
}

func TestTotals_AtFreeShippingMin(t *testing.T) {
	cart := NewCart()
	_, _, err := cart.AddItem(product("a", 15000, 0), 1)
	require.NoError(t, err)

	totals := cart.Totals(testPricing)

	assert.Equal(t, int64(15000), totals.Subtotal)
	assert.Equal(t, int64(0), totals.Shipping, "fee is waived once subtotal reaches the minimum")
	assert.Equal(t, int64(15000), totals.Total)
}

func TestTotals_AboveFreeShippingMin(t *testing.T) {
	cart := NewCart()
	_, _, err := cart.AddItem(product("a", 10000, 0), 2)
	require.NoError(t, err)

	totals := cart.Totals(testPricing)

	assert.Equal(t, int64(20000), totals.Subtotal)
	assert.Equal(t, int64(0), totals.Shipping)
	assert.Equal(t, int64(20000), totals.Total)
}

func TestTotals_MultipleItems(t *testing.T) {
	cart := NewCart()
	_, _, err := cart.AddItem(product("a", 2500, 0), 2)
	require.NoError(t, err)
	_, _, err = cart.AddItem(product("b", 1000, 0), 3)
	require.NoError(t, err)

	totals := cart.Totals(testPricing)

	assert.Equal(t, 5, totals.ItemCount)
	assert.Equal(t, int64(8000), totals.Subtotal)
	assert.Equal(t, int64(1000), totals.Shipping)
	assert.Equal(t, int64(9000), totals.Total)
}

func TestTotals_ZeroFreeShippingMin(t *testing.T) {
	cart := NewCart()
	_, _, err := cart.AddItem(product("a", 1, 0), 1)
	require.NoError(t, err)

	totals := cart.Totals(Pricing{ShippingFee: 1000, FreeShippingMin: 0})

	assert.Equal(t, int64(0), totals.Shipping, "minimum of zero waives shipping for any non-empty cart")
}
