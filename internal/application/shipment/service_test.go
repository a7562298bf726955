package shipment

import (
	"context"
	"testing"
	"time"

	"github.com/Zhima-Mochi/marketplace-saga/internal/application/apptest"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/order"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
	domain "github.com/Zhima-Mochi/marketplace-saga/internal/domain/shipment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*Service, *apptest.Recorder) {
	rec := &apptest.Recorder{}
	svc := NewService(memory.NewShipmentStore(), rec, Options{DeliveryConcurrency: 2}, nil)
	now := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, rec
}

func paid(customer string, orderID int, sellers ...string) payment.PaymentConfirmed {
	items := make([]order.Item, 0, len(sellers))
	for i, s := range sellers {
		items = append(items, order.Item{SellerID: s, ProductID: string(rune('a' + i)), Quantity: 1, FreightValue: 2})
	}
	return payment.PaymentConfirmed{
		Checkout:   saga.CustomerCheckout{CustomerID: customer, City: "Recife"},
		OrderID:    orderID,
		Items:      items,
		InstanceID: "i-" + customer,
	}
}

func TestProcessShipmentOpensApprovedShipment(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService()

	require.NoError(t, svc.ProcessShipment(ctx, paid("c1", 1, "A", "A", "B")))

	sh, pkgs, err := svc.GetShipment(ctx, domain.Key{CustomerID: "c1", OrderID: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, sh.Status)
	assert.Equal(t, 3, sh.PackageCount)
	assert.Equal(t, 6.0, sh.TotalFreightValue)
	assert.Equal(t, "Recife", sh.City)
	require.Len(t, pkgs, 3)
	for i, p := range pkgs {
		assert.Equal(t, i+1, p.PackageID)
		assert.Equal(t, domain.PackageShipped, p.Status)
	}

	notes := apptest.Of[domain.ShipmentNotification](rec)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.StatusApproved, notes[0].Status)
	marks := rec.Marks()
	require.Len(t, marks, 1)
	assert.Equal(t, saga.MarkSuccess, marks[0].Status)
	assert.Equal(t, "shipment", marks[0].Origin)
}

func TestUpdateShipmentSweepsOldestOrderPerSeller(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService()
	require.NoError(t, svc.ProcessShipment(ctx, paid("c1", 1, "A", "A", "B")))
	require.NoError(t, svc.ProcessShipment(ctx, paid("c2", 1, "A")))
	rec.Reset()

	sweep, err := svc.UpdateShipment(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, Sweep{Sellers: 2, Delivered: 3, Concluded: 1}, sweep)

	first, _, err := svc.GetShipment(ctx, domain.Key{CustomerID: "c1", OrderID: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConcluded, first.Status)
	second, _, err := svc.GetShipment(ctx, domain.Key{CustomerID: "c2", OrderID: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, second.Status)

	assert.Len(t, apptest.Of[domain.DeliveryNotification](rec), 3)
	var statuses []domain.Status
	for _, n := range apptest.Of[domain.ShipmentNotification](rec) {
		assert.Equal(t, "u1", n.InstanceID)
		statuses = append(statuses, n.Status)
	}
	assert.ElementsMatch(t, []domain.Status{domain.StatusDeliveryInProgress, domain.StatusConcluded}, statuses)

	rec.Reset()
	sweep, err = svc.UpdateShipment(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, Sweep{Sellers: 1, Delivered: 1, Concluded: 1}, sweep)
	second, pkgs, err := svc.GetShipment(ctx, domain.Key{CustomerID: "c2", OrderID: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConcluded, second.Status)
	assert.Equal(t, domain.PackageDelivered, pkgs[0].Status)
	assert.False(t, pkgs[0].DeliveryDate.IsZero())

	rec.Reset()
	sweep, err = svc.UpdateShipment(ctx, "u3")
	require.NoError(t, err)
	assert.Equal(t, Sweep{}, sweep)
	assert.Empty(t, rec.Events())
}

func TestPartialSweepKeepsShipmentInProgress(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService()
	require.NoError(t, svc.ProcessShipment(ctx, paid("c0", 1, "B")))
	require.NoError(t, svc.ProcessShipment(ctx, paid("c1", 1, "A", "A", "B")))
	rec.Reset()

	notesFor := func(customer string) []domain.Status {
		var out []domain.Status
		for _, n := range apptest.Of[domain.ShipmentNotification](rec) {
			if n.CustomerID == customer {
				out = append(out, n.Status)
			}
		}
		return out
	}

	sweep, err := svc.UpdateShipment(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, Sweep{Sellers: 2, Delivered: 3, Concluded: 1}, sweep)

	c1 := domain.Key{CustomerID: "c1", OrderID: 1}
	sh, pkgs, err := svc.GetShipment(ctx, c1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeliveryInProgress, sh.Status)
	assert.Equal(t, domain.PackageDelivered, pkgs[0].Status)
	assert.Equal(t, domain.PackageDelivered, pkgs[1].Status)
	assert.Equal(t, domain.PackageShipped, pkgs[2].Status)
	assert.Equal(t, []domain.Status{domain.StatusDeliveryInProgress}, notesFor("c1"))

	c0, _, err := svc.GetShipment(ctx, domain.Key{CustomerID: "c0", OrderID: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConcluded, c0.Status)

	rec.Reset()
	sweep, err = svc.UpdateShipment(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, Sweep{Sellers: 1, Delivered: 1, Concluded: 1}, sweep)

	sh, _, err = svc.GetShipment(ctx, c1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConcluded, sh.Status)
	assert.Equal(t, []domain.Status{domain.StatusConcluded}, notesFor("c1"))
	assert.Len(t, apptest.Of[domain.DeliveryNotification](rec), 1)
}
