package cart

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/Zhima-Mochi/marketplace-saga/internal/application/apptest"
	domain "github.com/Zhima-Mochi/marketplace-saga/internal/domain/cart"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/product"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
	"github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc      *Service
	carts    *memory.CartStore
	replicas *memory.ReplicaStore
	rec      *apptest.Recorder
}

func newFixture(opts Options) fixture {
	f := fixture{
		carts:    memory.NewCartStore(),
		replicas: memory.NewReplicaStore(),
		rec:      &apptest.Recorder{},
	}
	f.svc = NewService(f.carts, f.replicas, f.rec, opts, nil)
	return f
}

func line(product string, price float64, version string) saga.CartItem {
	return saga.CartItem{SellerID: "1", ProductID: product, UnitPrice: price, Quantity: 1, Version: version}
}

func TestNotifyCheckoutSealsAndPublishes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{Streaming: true})
	_, err := f.svc.AddItem(ctx, "c1", line("100", 10, "v1"))
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, "c1", line("200", 5, "v1"))
	require.NoError(t, err)

	require.NoError(t, f.svc.NotifyCheckout(ctx, saga.CustomerCheckout{CustomerID: "c1", InstanceID: "i1"}))

	c, err := f.svc.GetCart(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, c.Status)
	assert.Empty(t, c.Items)

	reserve := apptest.Of[domain.ReserveStock](f.rec)
	require.Len(t, reserve, 1)
	assert.Equal(t, "i1", reserve[0].InstanceID)
	assert.Len(t, reserve[0].Items, 2)
}

func TestNotifyCheckoutWithoutStreamingPublishesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})
	_, err := f.svc.AddItem(ctx, "c1", line("100", 10, "v1"))
	require.NoError(t, err)

	require.NoError(t, f.svc.NotifyCheckout(ctx, saga.CustomerCheckout{CustomerID: "c1", InstanceID: "i1"}))
	assert.Empty(t, f.rec.Events())
}

func TestControllerChecksDropDivergentLines(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{Streaming: true, ControllerChecks: true})
	require.NoError(t, f.replicas.Upsert(ctx, domain.ProductReplica{SellerID: "1", ProductID: "100", Price: 12, Version: "v1"}))
	require.NoError(t, f.replicas.Upsert(ctx, domain.ProductReplica{SellerID: "1", ProductID: "200", Price: 5, Version: "v1"}))

	_, _ = f.svc.AddItem(ctx, "c1", line("100", 10, "v1"))
	_, _ = f.svc.AddItem(ctx, "c1", line("200", 5, "v1"))
	// Different version: not comparable, kept.
	_, _ = f.svc.AddItem(ctx, "c1", saga.CartItem{SellerID: "1", ProductID: "300", UnitPrice: 1, Quantity: 1, Version: "v9"})

	require.NoError(t, f.svc.NotifyCheckout(ctx, saga.CustomerCheckout{CustomerID: "c1", InstanceID: "i1"}))

	reserve := apptest.Of[domain.ReserveStock](f.rec)
	require.Len(t, reserve, 1)
	var got []string
	for _, it := range reserve[0].Items {
		got = append(got, it.ProductID)
	}
	assert.ElementsMatch(t, []string{"200", "300"}, got)
}

func TestNotifyCheckoutFailuresCarryAbortMark(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{Streaming: true})

	err := f.svc.NotifyCheckout(ctx, saga.CustomerCheckout{CustomerID: "ghost", InstanceID: "i1"})
	fail, ok := saga.AsFailure(err)
	require.True(t, ok)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, saga.MarkAbort, fail.Mark.Status)
	assert.Equal(t, saga.CustomerSession, fail.Mark.Type)
	assert.Equal(t, "ghost", fail.Mark.ParticipantKey)
	assert.Equal(t, "cart", fail.Mark.Origin)

	_, _ = f.svc.AddItem(ctx, "c2", line("100", 10, "v1"))
	require.NoError(t, f.svc.SealCart(ctx, "c2", true))
	err = f.svc.NotifyCheckout(ctx, saga.CustomerCheckout{CustomerID: "c2", InstanceID: "i2"})
	assert.ErrorIs(t, err, domain.ErrNoItems)
	assert.Empty(t, f.rec.Events())
}

func TestApplyPriceUpdateIsVersionGated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})
	require.NoError(t, f.replicas.Upsert(ctx, domain.ProductReplica{SellerID: "1", ProductID: "100", Price: 10, Version: "v1"}))
	_, _ = f.svc.AddItem(ctx, "c1", line("100", 10, "v1"))

	require.NoError(t, f.svc.ApplyPriceUpdate(ctx, product.PriceUpdated{SellerID: "1", ProductID: "100", Price: 99, Version: "v0", InstanceID: "p1"}))
	r, _ := f.replicas.Get(ctx, "1", "100")
	assert.Equal(t, 10.0, r.Price)

	require.NoError(t, f.svc.ApplyPriceUpdate(ctx, product.PriceUpdated{SellerID: "1", ProductID: "100", Price: 11, Version: "v1", InstanceID: "p2"}))
	r, _ = f.replicas.Get(ctx, "1", "100")
	assert.Equal(t, 11.0, r.Price)
	c, _ := f.svc.GetCart(ctx, "c1")
	assert.Equal(t, 11.0, c.Items[0].UnitPrice)

	marks := f.rec.Marks()
	require.Len(t, marks, 2)
	for _, m := range marks {
		assert.Equal(t, saga.PriceUpdate, m.Type)
		assert.Equal(t, saga.MarkSuccess, m.Status)
		assert.Equal(t, "1", m.ParticipantKey)
	}
}

func TestApplyProductUpdatedUpsertsReplica(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})

	require.NoError(t, f.svc.ApplyProductUpdated(ctx, product.ProductUpdated{SellerID: "1", ProductID: "100", Name: "mug", Price: 7, Version: "v1"}))
	first, err := f.replicas.Get(ctx, "1", "100")
	require.NoError(t, err)

	require.NoError(t, f.svc.ApplyProductUpdated(ctx, product.ProductUpdated{SellerID: "1", ProductID: "100", Name: "big mug", Price: 9, Version: "v2"}))
	r, err := f.replicas.Get(ctx, "1", "100")
	require.NoError(t, err)
	assert.Equal(t, "big mug", r.Name)
	assert.Equal(t, "v2", r.Version)
	assert.Equal(t, first.CreatedAt, r.CreatedAt)
}

func TestAddItemReplacesSameProduct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})
	_, err := f.svc.AddItem(ctx, "c1", line("100", 10, "v1"))
	require.NoError(t, err)
	upd := line("100", 10, "v1")
	upd.Quantity = 3
	c, err := f.svc.AddItem(ctx, "c1", upd)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)

	_, err = f.svc.AddItem(ctx, "", upd)
	assert.ErrorIs(t, err, domain.ErrCustomerRequired)
}

func TestConcurrentFirstAddsKeepEveryLine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.AddItem(ctx, "c1", line(strconv.Itoa(i), 1, "v1"))
		}()
	}
	wg.Wait()

	c, err := f.svc.GetCart(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, c.Items, 20)
}
