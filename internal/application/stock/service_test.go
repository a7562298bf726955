package stock

import (
	"context"
	"sync"
	"testing"

	"github.com/Zhima-Mochi/marketplace-saga/internal/application/apptest"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/cart"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/order"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/product"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
	domain "github.com/Zhima-Mochi/marketplace-saga/internal/domain/stock"
	"github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, opts Options) (*Service, *memory.StockStore, *apptest.Recorder) {
	t.Helper()
	store := memory.NewStockStore()
	rec := &apptest.Recorder{}
	return NewService(store, rec, opts, nil), store, rec
}

func seed(t *testing.T, store *memory.StockStore, seller, prod string, qty int, version string) {
	t.Helper()
	it, err := domain.NewItem(seller, prod, qty, version)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(context.Background(), it))
}

func reserve(customer, instance string, lines ...saga.CartItem) cart.ReserveStock {
	return cart.ReserveStock{
		Checkout:   saga.CustomerCheckout{CustomerID: customer},
		Items:      lines,
		InstanceID: instance,
	}
}

func TestReserveConfirmScenario(t *testing.T) {
	ctx := context.Background()
	svc, store, rec := newTestService(t, Options{RaiseStockFailed: true})
	seed(t, store, "1", "100", 10, "v1")

	require.NoError(t, svc.ReserveStock(ctx, reserve("c1", "i1",
		saga.CartItem{SellerID: "1", ProductID: "100", Quantity: 4, Version: "v1"})))

	it, _ := store.Get(ctx, domain.Key{SellerID: "1", ProductID: "100"})
	assert.Equal(t, 4, it.QtyReserved)
	confirmed := apptest.Of[domain.StockConfirmed](rec)
	require.Len(t, confirmed, 1)
	assert.Len(t, confirmed[0].Items, 1)

	rec.Reset()
	require.NoError(t, svc.ReserveStock(ctx, reserve("c2", "i2",
		saga.CartItem{SellerID: "1", ProductID: "100", Quantity: 7, Version: "v1"})))

	failed := apptest.Of[domain.ReserveStockFailed](rec)
	require.Len(t, failed, 1)
	require.Len(t, failed[0].UnavailableItems, 1)
	assert.Equal(t, domain.OutOfStock, failed[0].UnavailableItems[0].Status)
	assert.Equal(t, 10, failed[0].UnavailableItems[0].QtyAvailable)
	assert.Empty(t, apptest.Of[domain.StockConfirmed](rec))

	marks := rec.Marks()
	require.Len(t, marks, 1)
	assert.Equal(t, saga.MarkNotAccepted, marks[0].Status)
	assert.Equal(t, "i2", marks[0].InstanceID)

	require.NoError(t, svc.ConfirmReservation(ctx, payment.PaymentConfirmed{
		OrderID: 1,
		Items:   []order.Item{{SellerID: "1", ProductID: "100", Quantity: 4}},
	}))
	it, _ = store.Get(ctx, domain.Key{SellerID: "1", ProductID: "100"})
	assert.Equal(t, 6, it.QtyAvailable)
	assert.Equal(t, 0, it.QtyReserved)
	assert.Equal(t, 1, it.OrderCount)
}

func TestReservePartialSuccess(t *testing.T) {
	ctx := context.Background()
	svc, store, rec := newTestService(t, Options{RaiseStockFailed: true})
	seed(t, store, "1", "100", 10, "v1")
	seed(t, store, "1", "200", 10, "v2")

	require.NoError(t, svc.ReserveStock(ctx, reserve("c1", "i1",
		saga.CartItem{SellerID: "1", ProductID: "100", Quantity: 2, Version: "v1"},
		saga.CartItem{SellerID: "1", ProductID: "200", Quantity: 2, Version: "stale"},
		saga.CartItem{SellerID: "9", ProductID: "999", Quantity: 1, Version: "v1"},
	)))

	confirmed := apptest.Of[domain.StockConfirmed](rec)
	require.Len(t, confirmed, 1)
	assert.Equal(t, "100", confirmed[0].Items[0].ProductID)

	failed := apptest.Of[domain.ReserveStockFailed](rec)
	require.Len(t, failed, 1)
	require.Len(t, failed[0].UnavailableItems, 2)
	for _, f := range failed[0].UnavailableItems {
		assert.Equal(t, domain.Unavailable, f.Status)
	}
	assert.Empty(t, rec.Marks())

	other, _ := store.Get(ctx, domain.Key{SellerID: "1", ProductID: "200"})
	assert.Equal(t, 0, other.QtyReserved)
}

func TestReserveStockFailedCanBeSuppressed(t *testing.T) {
	ctx := context.Background()
	svc, store, rec := newTestService(t, Options{})
	seed(t, store, "1", "100", 1, "v1")

	require.NoError(t, svc.ReserveStock(ctx, reserve("c1", "i1",
		saga.CartItem{SellerID: "1", ProductID: "100", Quantity: 5, Version: "v1"})))

	assert.Empty(t, apptest.Of[domain.ReserveStockFailed](rec))
	require.Len(t, rec.Marks(), 1)
}

func TestReserveWithNoRowsFailsWithErrorMark(t *testing.T) {
	svc, _, rec := newTestService(t, Options{})

	err := svc.ReserveStock(context.Background(), reserve("c1", "i1",
		saga.CartItem{SellerID: "1", ProductID: "100", Quantity: 1, Version: "v1"}))

	f, ok := saga.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, saga.MarkError, f.Mark.Status)
	assert.Equal(t, saga.CustomerSession, f.Mark.Type)
	assert.Equal(t, "c1", f.Mark.ParticipantKey)
	assert.Empty(t, rec.Events())
}

func TestReserveCancelConservesReserved(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, Options{})
	seed(t, store, "1", "100", 10, "v1")

	require.NoError(t, svc.ReserveStock(ctx, reserve("c1", "i1",
		saga.CartItem{SellerID: "1", ProductID: "100", Quantity: 3, Version: "v1"})))
	require.NoError(t, svc.CancelReservation(ctx, payment.PaymentFailed{
		Items: []order.Item{{SellerID: "1", ProductID: "100", Quantity: 3}},
	}))

	it, _ := store.Get(ctx, domain.Key{SellerID: "1", ProductID: "100"})
	assert.Equal(t, 0, it.QtyReserved)
	assert.Equal(t, 10, it.QtyAvailable)
}

func TestConfirmReportsUnknownItemsButAppliesTheRest(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, Options{})
	seed(t, store, "1", "100", 10, "v1")
	require.NoError(t, svc.ReserveStock(ctx, reserve("c1", "i1",
		saga.CartItem{SellerID: "1", ProductID: "100", Quantity: 2, Version: "v1"})))

	err := svc.ConfirmReservation(ctx, payment.PaymentConfirmed{Items: []order.Item{
		{SellerID: "1", ProductID: "100", Quantity: 2},
		{SellerID: "1", ProductID: "404", Quantity: 1},
	}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	it, _ := store.Get(ctx, domain.Key{SellerID: "1", ProductID: "100"})
	assert.Equal(t, 8, it.QtyAvailable)
	assert.Equal(t, 0, it.QtyReserved)
}

func TestConcurrentReservationsNeverOvercommit(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, Options{})
	seed(t, store, "1", "100", 10, "v1")

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.ReserveStock(ctx, reserve("c", "i",
				saga.CartItem{SellerID: "1", ProductID: "100", Quantity: 1, Version: "v1"}))
		}()
	}
	wg.Wait()

	it, _ := store.Get(ctx, domain.Key{SellerID: "1", ProductID: "100"})
	assert.Equal(t, 10, it.QtyReserved)
}

func TestIncreaseStock(t *testing.T) {
	ctx := context.Background()
	svc, store, rec := newTestService(t, Options{})
	seed(t, store, "1", "100", 1, "v1")

	it, err := svc.IncreaseStock(ctx, "1", "100", 4)
	require.NoError(t, err)
	assert.Equal(t, 5, it.QtyAvailable)
	assert.Len(t, apptest.Of[domain.StockReplenished](rec), 1)

	_, err = svc.IncreaseStock(ctx, "1", "404", 4)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApplyProductUpdate(t *testing.T) {
	ctx := context.Background()
	svc, store, rec := newTestService(t, Options{})
	seed(t, store, "1", "100", 10, "v1")

	require.NoError(t, svc.ApplyProductUpdate(ctx, product.ProductUpdated{SellerID: "1", ProductID: "100", Version: "v2"}))
	it, _ := store.Get(ctx, domain.Key{SellerID: "1", ProductID: "100"})
	assert.Equal(t, "v2", it.Version)
	assert.Equal(t, 10, it.QtyAvailable)

	marks := rec.Marks()
	require.Len(t, marks, 1)
	assert.Equal(t, saga.MarkSuccess, marks[0].Status)
	assert.Equal(t, saga.UpdateProduct, marks[0].Type)
	assert.Equal(t, "v2", marks[0].InstanceID)

	err := svc.ApplyProductUpdate(ctx, product.ProductUpdated{SellerID: "1", ProductID: "404", Version: "v2"})
	f, ok := saga.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, saga.MarkAbort, f.Mark.Status)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResetRestoresDefaultInventory(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, Options{DefaultInventory: 100})
	seed(t, store, "1", "100", 3, "v1")
	require.NoError(t, svc.ReserveStock(ctx, reserve("c1", "i1",
		saga.CartItem{SellerID: "1", ProductID: "100", Quantity: 2, Version: "v1"})))

	require.NoError(t, svc.Reset(ctx))
	it, _ := store.Get(ctx, domain.Key{SellerID: "1", ProductID: "100"})
	assert.Equal(t, 100, it.QtyAvailable)
	assert.Equal(t, 0, it.QtyReserved)
}
