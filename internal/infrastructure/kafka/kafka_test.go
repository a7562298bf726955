package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/outbox"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/product"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/stock"
	busoutbox "github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/outbox"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

// fakeReader hands out its messages in order and cancels the run once they are gone.
type fakeReader struct {
	msgs      []kafka.Message
	cancel    context.CancelFunc
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestNewClientParsesBrokers(t *testing.T) {
	c := NewClient(" k1:9092, ,k2:9092 ", "mp")
	assert.True(t, c.Enabled())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Brokers)
	assert.False(t, NewClient("", "").Enabled())
}

func TestTopicNaming(t *testing.T) {
	assert.Equal(t, "mp.ReserveStock", Topic("mp", "ReserveStock"))
	assert.Equal(t, "ReserveStock", Topic("", "ReserveStock"))
	assert.Equal(t, []string{"mp.ProductUpdated", "mp.PriceUpdated"}, Topics("mp", CatalogEvents()...))
}

func TestSagaEventsExcludeCatalogEvents(t *testing.T) {
	events := SagaEvents()
	for _, c := range CatalogEvents() {
		assert.NotContains(t, events, c)
	}
	for _, ch := range saga.Channels() {
		assert.Contains(t, events, ch)
	}
	assert.Contains(t, events, "StockConfirmed")
}

func TestForwardWritesKeyedMessage(t *testing.T) {
	w := &fakeWriter{}
	f := NewForwarder(w, "mp", nil)

	mark := saga.NewMark(saga.CustomerSession, "i1", "c1", saga.MarkSuccess, "shipment")
	require.NoError(t, f.Forward(context.Background(), mark))

	msgs := w.written()
	require.Len(t, msgs, 1)
	m := msgs[0]
	assert.Equal(t, "mp.TransactionMark_CUSTOMER_SESSION", m.Topic)
	assert.Equal(t, "i1", string(m.Key))
	assert.Equal(t, "TransactionMark_CUSTOMER_SESSION", header(m, headerEventType))
	assert.NotEmpty(t, header(m, headerEventID))

	var got saga.TransactionMark
	require.NoError(t, json.Unmarshal(m.Value, &got))
	assert.Equal(t, mark, got)
}

func TestForwardLeavesEventsWithoutInstanceUnkeyed(t *testing.T) {
	w := &fakeWriter{}
	f := NewForwarder(w, "", nil)

	require.NoError(t, f.Forward(context.Background(), stock.StockReplenished{Item: stock.Item{SellerID: "1", ProductID: "100", QtyAvailable: 5}}))
	msgs := w.written()
	require.Len(t, msgs, 1)
	assert.Nil(t, msgs[0].Key)
	assert.Equal(t, "StockReplenished", msgs[0].Topic)
}

func TestForwardReportsWriteFailure(t *testing.T) {
	boom := errors.New("broker down")
	f := NewForwarder(&fakeWriter{err: boom}, "mp", nil)

	err := f.Forward(context.Background(), saga.NewMark(saga.PriceUpdate, "p1", "1/100", saga.MarkSuccess, "cart"))
	assert.ErrorIs(t, err, boom)
}

func TestAttachMirrorsBusEvents(t *testing.T) {
	bus := busoutbox.NewBus(nil, nil, busoutbox.Options{})
	w := &fakeWriter{}
	NewForwarder(w, "mp", nil).Attach(bus, SagaEvents()...)
	bus.Start(context.Background())
	t.Cleanup(func() { bus.Stop(context.Background()) })

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, saga.NewMark(saga.CustomerSession, "i1", "c1", saga.MarkAbort, "cart")))
	require.NoError(t, bus.Publish(ctx, product.PriceUpdated{SellerID: "1", ProductID: "100", Price: 3}))

	drainCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, bus.Drain(drainCtx))

	msgs := w.written()
	require.Len(t, msgs, 1)
	assert.Equal(t, "mp.TransactionMark_CUSTOMER_SESSION", msgs[0].Topic)
}

func TestConsumerPublishesCatalogEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	product1, _ := json.Marshal(product.ProductUpdated{SellerID: "1", ProductID: "100", Price: 9, Version: "v2"})
	price1, _ := json.Marshal(product.PriceUpdated{SellerID: "1", ProductID: "100", Price: 11, Version: "v2", InstanceID: "p1"})
	r := &fakeReader{
		cancel: cancel,
		msgs: []kafka.Message{
			{Topic: "mp.ProductUpdated", Offset: 1, Value: product1,
				Headers: []kafka.Header{{Key: headerEventType, Value: []byte("ProductUpdated")}}},
			{Topic: "mp.PriceUpdated", Offset: 2, Value: price1},
			{Topic: "mp.PriceUpdated", Offset: 3, Value: []byte("not json")},
			{Topic: "mp.Unknown", Offset: 4, Value: []byte("{}")},
		},
	}

	var got []outbox.Event
	pub := outbox.PublisherFunc(func(_ context.Context, e outbox.Event) error {
		got = append(got, e)
		return nil
	})

	require.NoError(t, NewConsumer(r, pub, "mp", nil).Run(ctx))
	require.Len(t, got, 2)
	assert.Equal(t, "v2", got[0].(product.ProductUpdated).Version)
	assert.Equal(t, 11.0, got[1].(product.PriceUpdated).Price)
	assert.Equal(t, []int64{1, 2, 3, 4}, r.committed)
}

func TestConsumerStopsWhenBusRefuses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	value, _ := json.Marshal(product.PriceUpdated{SellerID: "1", ProductID: "100", Price: 1})
	r := &fakeReader{cancel: cancel, msgs: []kafka.Message{{Topic: "PriceUpdated", Offset: 7, Value: value}}}
	pub := outbox.PublisherFunc(func(context.Context, outbox.Event) error { return busoutbox.ErrClosed })

	err := NewConsumer(r, pub, "", nil).Run(ctx)
	assert.ErrorIs(t, err, busoutbox.ErrClosed)
	assert.Empty(t, r.committed)
}
