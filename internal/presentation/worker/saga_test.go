package workerpresentation

import (
	"context"
	"errors"
	"testing"
	"time"

	appcart "github.com/Zhima-Mochi/marketplace-saga/internal/application/cart"
	apporder "github.com/Zhima-Mochi/marketplace-saga/internal/application/order"
	apppayment "github.com/Zhima-Mochi/marketplace-saga/internal/application/payment"
	appseller "github.com/Zhima-Mochi/marketplace-saga/internal/application/seller"
	appshipment "github.com/Zhima-Mochi/marketplace-saga/internal/application/shipment"
	appstock "github.com/Zhima-Mochi/marketplace-saga/internal/application/stock"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/marketplace-saga/internal/domain/outbox"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/stock"
	"github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type system struct {
	bus      *outbox.Bus
	monitor  *Monitor
	cart     *appcart.Service
	stock    *appstock.Service
	order    *apporder.Service
	shipment *appshipment.Service
	seller   *appseller.Service
}

func newSystem(t *testing.T) system {
	t.Helper()
	bus := outbox.NewBus(nil, nil, outbox.Options{})
	d := NewDispatcher(bus, bus, nil)
	s := system{
		bus:      bus,
		monitor:  NewMonitor(0, nil),
		cart:     appcart.NewService(memory.NewCartStore(), memory.NewReplicaStore(), bus, appcart.Options{Streaming: true}, nil),
		stock:    appstock.NewService(memory.NewStockStore(), bus, appstock.Options{RaiseStockFailed: true}, nil),
		order:    apporder.NewService(memory.NewOrderStore(), bus, nil),
		shipment: appshipment.NewService(memory.NewShipmentStore(), bus, appshipment.Options{}, nil),
		seller:   appseller.NewService(memory.NewSellerStore(), nil),
	}
	payment := apppayment.NewService(memory.NewPaymentStore(), nil, bus, nil)

	appcart.NewWorker(s.cart, d).Start()
	appstock.NewWorker(s.stock, d).Start()
	apporder.NewWorker(s.order, d).Start()
	apppayment.NewWorker(payment, d).Start()
	appshipment.NewWorker(s.shipment, d).Start()
	appseller.NewWorker(s.seller, d).Start()
	s.monitor.Start(bus)

	bus.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		bus.Stop(ctx)
	})
	return s
}

func (s system) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.bus.Drain(ctx))
}

func (s system) checkout(t *testing.T, customer, instance string, qty int) {
	t.Helper()
	ctx := context.Background()
	_, err := s.cart.AddItem(ctx, customer, saga.CartItem{
		SellerID: "1", ProductID: "100", ProductName: "mug", UnitPrice: 10, FreightValue: 2, Quantity: qty, Version: "v1",
	})
	require.NoError(t, err)
	require.NoError(t, s.cart.NotifyCheckout(ctx, saga.CustomerCheckout{
		CustomerID: customer, InstanceID: instance, PaymentType: saga.Boleto,
	}))
	s.drain(t)
}

func seedStock(t *testing.T, s system, qty int) {
	t.Helper()
	it, err := stock.NewItem("1", "100", qty, "v1")
	require.NoError(t, err)
	require.NoError(t, s.stock.CreateStockItem(context.Background(), it))
}

func TestCheckoutRunsToShipment(t *testing.T) {
	ctx := context.Background()
	s := newSystem(t)
	seedStock(t, s, 10)

	s.checkout(t, "c1", "i1", 4)

	marks := s.monitor.Marks("i1")
	require.Len(t, marks, 1)
	assert.Equal(t, saga.MarkSuccess, marks[0].Status)
	assert.Equal(t, "shipment", marks[0].Origin)

	it, err := s.stock.GetItem(ctx, "1", "100")
	require.NoError(t, err)
	assert.Equal(t, 6, it.QtyAvailable)
	assert.Equal(t, 0, it.QtyReserved)

	key := order.Key{CustomerID: "c1", OrderID: 1}
	o, _, err := s.order.GetOrder(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, order.StatusReadyForShipment, o.Status)
	assert.False(t, o.PaymentDate.IsZero())

	d, err := s.seller.QueryDashboard(ctx, "1")
	require.NoError(t, err)
	assert.Len(t, d.Entries, 1)

	_, err = s.shipment.UpdateShipment(ctx, "u1")
	require.NoError(t, err)
	s.drain(t)

	o, _, err = s.order.GetOrder(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, o.Status)
	d, err = s.seller.QueryDashboard(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, d.Entries)
}

func TestCheckoutBeyondStockIsNotAccepted(t *testing.T) {
	ctx := context.Background()
	s := newSystem(t)
	seedStock(t, s, 3)

	s.checkout(t, "c1", "i1", 5)

	marks := s.monitor.Marks("i1")
	require.Len(t, marks, 1)
	assert.Equal(t, saga.MarkNotAccepted, marks[0].Status)
	assert.Equal(t, "stock", marks[0].Origin)

	_, _, err := s.order.GetOrder(ctx, order.Key{CustomerID: "c1", OrderID: 1})
	assert.ErrorIs(t, err, order.ErrNotFound)
	it, _ := s.stock.GetItem(ctx, "1", "100")
	assert.Equal(t, 0, it.QtyReserved)
}

type probe struct{}

func (probe) EventName() string { return "probe" }

func TestFailedStepPublishesItsMark(t *testing.T) {
	bus := outbox.NewBus(nil, nil, outbox.Options{})
	d := NewDispatcher(bus, bus, nil)
	m := NewMonitor(0, nil)
	m.Start(bus)
	plain := errors.New("transient")
	d.Route("probe", "test.abort", func(ctx context.Context, e domoutbox.Event) error {
		return saga.Abort(saga.PriceUpdate, "p1", "seller-1", "cart", plain)
	})
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	require.NoError(t, bus.Publish(context.Background(), probe{}))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Drain(ctx))

	marks := m.Marks("p1")
	require.Len(t, marks, 1)
	assert.Equal(t, saga.MarkAbort, marks[0].Status)
	assert.Equal(t, saga.PriceUpdate, marks[0].Type)

	assert.Equal(t, plain, d.Compensate(context.Background(), plain))
	assert.NoError(t, d.Compensate(context.Background(), nil))
}

func TestMonitorEvictsOldestInstance(t *testing.T) {
	m := NewMonitor(2, nil)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, m.handle(context.Background(), saga.NewMark(saga.CustomerSession, id, "k", saga.MarkSuccess, "shipment")))
	}
	assert.Empty(t, m.Marks("a"))
	assert.Len(t, m.Marks("c"), 1)
}
