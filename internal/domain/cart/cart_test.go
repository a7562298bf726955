package cart

import (
	"testing"

	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddItemReplacesSameProduct(t *testing.T) {
	c, err := New("c1")
	require.NoError(t, err)

	require.NoError(t, c.AddItem(saga.CartItem{SellerID: "s1", ProductID: "p1", Quantity: 1, UnitPrice: 10}))
	require.NoError(t, c.AddItem(saga.CartItem{SellerID: "s1", ProductID: "p1", Quantity: 3, UnitPrice: 10}))
	require.NoError(t, c.AddItem(saga.CartItem{SellerID: "s2", ProductID: "p1", Quantity: 1, UnitPrice: 7}))

	require.Len(t, c.Items, 2)
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.ErrorIs(t, c.AddItem(saga.CartItem{SellerID: "s1", ProductID: "p2"}), ErrInvalidQuantity)
}

func TestApplyPriceIsVersionGated(t *testing.T) {
	c, _ := New("c1")
	_ = c.AddItem(saga.CartItem{SellerID: "s1", ProductID: "p1", Quantity: 1, UnitPrice: 10, Version: "v1"})

	assert.Equal(t, 0, c.ApplyPrice("s1", "p1", "v2", 99))
	assert.Equal(t, 10.0, c.Items[0].UnitPrice)

	assert.Equal(t, 1, c.ApplyPrice("s1", "p1", "v1", 12))
	assert.Equal(t, 12.0, c.Items[0].UnitPrice)
}

func TestReplicaDivergence(t *testing.T) {
	r := ProductReplica{SellerID: "s1", ProductID: "p1", Price: 10, Version: "v1"}

	assert.True(t, r.Diverges(saga.CartItem{Version: "v1", UnitPrice: 9}))
	assert.False(t, r.Diverges(saga.CartItem{Version: "v1", UnitPrice: 10}))
	// a line priced against another version is not divergent, only stale
	assert.False(t, r.Diverges(saga.CartItem{Version: "v0", UnitPrice: 9}))
}

func TestSealClearsAndReopens(t *testing.T) {
	c, _ := New("c1")
	_ = c.AddItem(saga.CartItem{SellerID: "s1", ProductID: "p1", Quantity: 1})
	c.MarkCheckoutSent()
	assert.Equal(t, StatusCheckoutSent, c.Status)

	c.Seal(true)
	assert.Equal(t, StatusOpen, c.Status)
	assert.Empty(t, c.Items)
}
