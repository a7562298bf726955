package seller

import (
	"testing"

	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/order"
	"github.com/stretchr/testify/assert"
)

func TestAdvanceNeverRegresses(t *testing.T) {
	e := NewEntry("c1", 1, order.Item{SellerID: "s1", ProductID: "p1", Quantity: 1, TotalAmount: 5, FreightValue: 2})
	assert.Equal(t, 7.0, e.TotalInvoice)
	assert.Equal(t, "c1_1", e.NaturalKey)

	assert.True(t, e.Advance(order.StatusReadyForShipment))
	assert.False(t, e.Advance(order.StatusPaymentProcessed))
	assert.Equal(t, order.StatusReadyForShipment, e.OrderStatus)
	assert.True(t, e.Advance(order.StatusDelivered))
}

func TestPaymentFailedIsTerminal(t *testing.T) {
	e := NewEntry("c1", 1, order.Item{SellerID: "s1"})
	assert.True(t, e.Advance(order.StatusPaymentFailed))
	assert.False(t, e.Advance(order.StatusReadyForShipment))
}

func TestBuildDashboardCountsOpenEntries(t *testing.T) {
	a := NewEntry("c1", 1, order.Item{SellerID: "s1", ProductID: "p1", Quantity: 2, TotalAmount: 10, TotalItems: 12, TotalIncentive: 2, FreightValue: 1})
	b := NewEntry("c1", 1, order.Item{SellerID: "s1", ProductID: "p2", Quantity: 1, TotalAmount: 3, TotalItems: 3})
	done := NewEntry("c2", 1, order.Item{SellerID: "s1", ProductID: "p1", Quantity: 5, TotalAmount: 50})
	done.Advance(order.StatusDelivered)
	other := NewEntry("c3", 1, order.Item{SellerID: "s2", Quantity: 9})

	d := BuildDashboard("s1", []OrderEntry{a, b, done, other})

	assert.Equal(t, 1, d.View.CountOrders)
	assert.Equal(t, 3, d.View.CountItems)
	assert.Equal(t, 13.0, d.View.TotalAmount)
	assert.Equal(t, 14.0, d.View.TotalInvoice)
	assert.Len(t, d.Entries, 2)
}
