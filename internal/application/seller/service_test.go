package seller

import (
	"context"
	"testing"
	"time"

	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/order"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
	domain "github.com/Zhima-Mochi/marketplace-saga/internal/domain/seller"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/shipment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/observability/zaplogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func invoiced() order.InvoiceIssued {
	return order.InvoiceIssued{
		Checkout: saga.CustomerCheckout{CustomerID: "c1"},
		OrderID:  1,
		Items: []order.Item{
			{SellerID: "s1", ProductID: "p1", Quantity: 2, TotalItems: 20, TotalAmount: 15, TotalIncentive: 5, FreightValue: 1},
			{SellerID: "s2", ProductID: "p2", Quantity: 1, TotalItems: 3, TotalAmount: 0, TotalIncentive: 3, FreightValue: 2},
		},
	}
}

func TestProjectionFollowsTheOrder(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewSellerStore(), nil)
	at := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

	require.NoError(t, svc.ProcessInvoice(ctx, invoiced()))
	d, err := svc.QueryDashboard(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, d.View.CountOrders)
	assert.Equal(t, 2, d.View.CountItems)
	assert.Equal(t, 16.0, d.View.TotalInvoice)

	require.NoError(t, svc.ProcessShipmentNotification(ctx, shipment.ShipmentNotification{
		CustomerID: "c1", OrderID: 1, Status: shipment.StatusApproved, EventDate: at,
	}))
	// late payment must not pull the view back
	require.NoError(t, svc.ProcessPaymentConfirmed(ctx, payment.PaymentConfirmed{Checkout: saga.CustomerCheckout{CustomerID: "c1"}, OrderID: 1}))

	d, err = svc.QueryDashboard(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, d.Entries, 1)
	e := d.Entries[0]
	assert.Equal(t, order.StatusReadyForShipment, e.OrderStatus)
	assert.Equal(t, domain.DeliveryReadyToShip, e.DeliveryStatus)
	assert.Equal(t, at, e.ShipmentDate)

	require.NoError(t, svc.ProcessDeliveryNotification(ctx, shipment.DeliveryNotification{
		CustomerID: "c1", OrderID: 1, PackageID: 1, SellerID: "s1", ProductID: "p1",
		Status: shipment.PackageDelivered, DeliveryDate: at,
	}))
	require.NoError(t, svc.ProcessShipmentNotification(ctx, shipment.ShipmentNotification{
		CustomerID: "c1", OrderID: 1, Status: shipment.StatusConcluded, EventDate: at,
	}))

	d, err = svc.QueryDashboard(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, d.Entries)
	assert.Equal(t, 0, d.View.CountOrders)
}

func TestFailedPaymentLeavesDashboard(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewSellerStore(), nil)
	require.NoError(t, svc.ProcessInvoice(ctx, invoiced()))

	require.NoError(t, svc.ProcessPaymentFailed(ctx, payment.PaymentFailed{Checkout: saga.CustomerCheckout{CustomerID: "c1"}, OrderID: 1}))
	require.NoError(t, svc.ProcessShipmentNotification(ctx, shipment.ShipmentNotification{CustomerID: "c1", OrderID: 1, Status: shipment.StatusApproved}))

	d, err := svc.QueryDashboard(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, d.Entries)
}

func TestDeliveryForUnknownEntry(t *testing.T) {
	svc := NewService(memory.NewSellerStore(), nil)

	err := svc.ProcessDeliveryNotification(context.Background(), shipment.DeliveryNotification{
		CustomerID: "c9", OrderID: 1, SellerID: "s1", ProductID: "p1", Status: shipment.PackageDelivered,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStatusBeforeInvoiceIsReported(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.WarnLevel)
	tel := infraobs.New(nil, zaplogger.FromZap(zap.New(core)), nil)
	svc := NewService(memory.NewSellerStore(), tel)

	require.NoError(t, svc.ProcessPaymentConfirmed(ctx, payment.PaymentConfirmed{Checkout: saga.CustomerCheckout{CustomerID: "c1"}, OrderID: 1}))

	warned := logs.FilterMessage("seller_entries_missing").All()
	require.Len(t, warned, 1)
	fields := warned[0].ContextMap()
	assert.Equal(t, "c1", fields["customer_id"])
	assert.EqualValues(t, 1, fields["order_id"])
	assert.Equal(t, string(order.StatusPaymentProcessed), fields["target_status"])
}
