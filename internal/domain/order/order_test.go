package order

import (
	"testing"
	"time"

	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

func TestInvoiceTotalsCapVoucherAtLineSubtotal(t *testing.T) {
	o, items, err := Invoice("c1", 7, []saga.CartItem{
		{SellerID: "s1", ProductID: "p1", UnitPrice: 10, Quantity: 2, Voucher: 5, FreightValue: 1},
		{SellerID: "s2", ProductID: "p2", UnitPrice: 3, Quantity: 1, Voucher: 10, FreightValue: 2},
	}, now, now)
	require.NoError(t, err)

	assert.Equal(t, 23.0, o.TotalItems)
	assert.Equal(t, 8.0, o.TotalIncentive)
	assert.Equal(t, 15.0, o.TotalAmount)
	assert.Equal(t, 3.0, o.TotalFreight)
	assert.Equal(t, 18.0, o.TotalInvoice)
	assert.Equal(t, StatusInvoiced, o.Status)
	assert.Equal(t, "c1-20240309-7", o.InvoiceNumber)

	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].OrderItemID)
	assert.Equal(t, 15.0, items[0].TotalAmount)
	assert.Equal(t, 0.0, items[1].TotalAmount)
	assert.Equal(t, 3.0, items[1].TotalIncentive)
	assert.Equal(t, now.Add(ShippingWindow), items[1].ShippingLimitDate)
}

func TestInvoiceRequiresLines(t *testing.T) {
	_, _, err := Invoice("c1", 1, nil, now, now)
	assert.ErrorIs(t, err, ErrNoItems)
}

func TestPaymentTransitions(t *testing.T) {
	o, _, _ := Invoice("c1", 1, []saga.CartItem{{UnitPrice: 1, Quantity: 1}}, now, now)

	changed, err := o.ConfirmPayment(now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusPaymentProcessed, o.Status)
	assert.Equal(t, now.Add(time.Minute), o.PaymentDate)

	changed, err = o.ConfirmPayment(now.Add(2 * time.Minute))
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = o.FailPayment(now)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestFailedPaymentRejectsShipment(t *testing.T) {
	o, _, _ := Invoice("c1", 1, []saga.CartItem{{UnitPrice: 1, Quantity: 1}}, now, now)
	changed, err := o.FailPayment(now)
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = o.AdvanceShipment(StatusReadyForShipment, now)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestShipmentTrackOnlyMovesForward(t *testing.T) {
	o, _, _ := Invoice("c1", 1, []saga.CartItem{{UnitPrice: 1, Quantity: 1}}, now, now)

	// shipment approval can overtake the payment confirmation
	changed, err := o.AdvanceShipment(StatusReadyForShipment, now)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = o.ConfirmPayment(now.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, StatusReadyForShipment, o.Status)
	assert.False(t, o.PaymentDate.IsZero())

	carrier := now.Add(time.Hour)
	changed, _ = o.AdvanceShipment(StatusInTransit, carrier)
	assert.True(t, changed)
	assert.Equal(t, carrier, o.DeliveredCarrierDate)

	changed, _ = o.AdvanceShipment(StatusReadyForShipment, now)
	assert.False(t, changed)
	assert.Equal(t, StatusInTransit, o.Status)

	changed, _ = o.AdvanceShipment(StatusDelivered, carrier.Add(time.Hour))
	assert.True(t, changed)
	assert.Equal(t, StatusDelivered, o.Status)

	_, err = o.AdvanceShipment(StatusPaymentProcessed, now)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestPurchaseDateIsCheckoutTime(t *testing.T) {
	checkedOut := now.Add(-time.Minute)
	o, _, err := Invoice("c1", 1, []saga.CartItem{{UnitPrice: 1, Quantity: 1}}, checkedOut, now)
	require.NoError(t, err)
	assert.Equal(t, checkedOut, o.PurchaseDate)
	assert.Equal(t, now, o.CreatedAt)

	o, _, err = Invoice("c1", 1, []saga.CartItem{{UnitPrice: 1, Quantity: 1}}, time.Time{}, now)
	require.NoError(t, err)
	assert.Equal(t, now, o.PurchaseDate)
}
