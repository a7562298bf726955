package outbox

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	domoutbox "github.com/Zhima-Mochi/marketplace-saga/internal/domain/outbox"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability/logctx"
)

const componentOutbox = "outbox"

var ErrClosed = errors.New("outbox: bus stopped")

type Options struct {
	// Concurrency caps handler goroutines across all events.
	Concurrency int
	// HandlerTimeout bounds one handler invocation.
	HandlerTimeout time.Duration
	QueueSize      int
}

func (o *Options) defaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 64
	}
	if o.HandlerTimeout <= 0 {
		o.HandlerTimeout = 30 * time.Second
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
}

// Bus is an in-memory event bus. Every delivery of an event to a subscriber runs on its own
// goroutine, so a slow participant never holds up the others. It is not durable; the Kafka
// forwarder mirrors it onto topics when durability is needed.
type Bus struct {
	mu        sync.RWMutex
	subs      map[string][]domoutbox.Handler
	queueMu   sync.RWMutex // guards closed and the close of queue
	queue     chan domoutbox.Event
	closed    bool
	sem       chan struct{}
	timeout   time.Duration
	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	loopDone  chan struct{}
	inflight  sync.WaitGroup
	pending   atomic.Int64
	log       observability.Logger

	deliveries observability.Counter // bus_deliveries_total{event,outcome}
}

func NewBus(logger observability.Logger, tel observability.Observability, opts Options) *Bus {
	opts.defaults()
	tel = observability.OrNop(tel)
	if logger == nil {
		logger = tel.Logger()
	}
	return &Bus{
		subs:       make(map[string][]domoutbox.Handler),
		queue:      make(chan domoutbox.Event, opts.QueueSize),
		sem:        make(chan struct{}, opts.Concurrency),
		timeout:    opts.HandlerTimeout,
		loopDone:   make(chan struct{}),
		log:        logger.With(observability.F("component", componentOutbox)),
		deliveries: tel.Metrics().Counter(observability.MBusDeliveries),
	}
}

func (b *Bus) Subscribe(eventName string, h domoutbox.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], h)
}

func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		bg, cancel := context.WithCancel(ctx)
		b.cancel = cancel
		go b.dispatchLoop(bg)
		logctx.FromOr(ctx, b.log).Info("event_bus_started")
	})
}

// Stop refuses new events, lets queued ones drain, and waits for running handlers until ctx ends.
func (b *Bus) Stop(ctx context.Context) {
	b.stopOnce.Do(func() {
		b.queueMu.Lock()
		b.closed = true
		close(b.queue)
		b.queueMu.Unlock()

		done := make(chan struct{})
		go func() {
			if b.cancel != nil {
				<-b.loopDone
			}
			b.inflight.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			logctx.FromOr(ctx, b.log).Warn("event_bus_stop_timeout", observability.F("pending", b.pending.Load()))
		}
		if b.cancel != nil {
			b.cancel()
		}
		logctx.FromOr(ctx, b.log).Info("event_bus_stopped")
	})
}

func (b *Bus) Publish(ctx context.Context, e domoutbox.Event) error {
	if e == nil {
		return nil
	}
	b.queueMu.RLock()
	defer b.queueMu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	b.pending.Add(1)
	select {
	case b.queue <- e:
		logctx.FromOr(ctx, b.log).Debug("event_enqueued", observability.F("event", e.EventName()))
		return nil
	case <-ctx.Done():
		b.pending.Add(-1)
		logctx.FromOr(ctx, b.log).Warn("event_enqueue_aborted",
			observability.F("event", e.EventName()),
			observability.F("error", ctx.Err().Error()),
		)
		return ctx.Err()
	}
}

// Drain blocks until every published event and the events its handlers published in turn
// have been handled, or ctx ends.
func (b *Bus) Drain(ctx context.Context) error {
	t := time.NewTicker(5 * time.Millisecond)
	defer t.Stop()
	for {
		if b.pending.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (b *Bus) dispatchLoop(ctx context.Context) {
	defer close(b.loopDone)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-b.queue:
			if !ok {
				return
			}
			b.fanout(ctx, e)
		}
	}
}

func (b *Bus) fanout(ctx context.Context, e domoutbox.Event) {
	name := e.EventName()
	defer b.pending.Add(-1)

	b.mu.RLock()
	handlers := append([]domoutbox.Handler(nil), b.subs[name]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.log.Debug("event_dropped_no_subscriber", observability.F("event", name))
		return
	}

	ctx = context.WithoutCancel(ctx)
	for _, h := range handlers {
		b.sem <- struct{}{}
		b.inflight.Add(1)
		b.pending.Add(1)
		go b.deliver(ctx, name, e, h)
	}
}

func (b *Bus) deliver(ctx context.Context, name string, e domoutbox.Event, h domoutbox.Handler) {
	logger := b.log.With(observability.F("event", name))
	outcome := "success"
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			logger.Error("event_handler_panic",
				observability.F("panic", r),
				observability.F("stack", string(debug.Stack())),
			)
		}
		b.deliveries.Add(1, observability.L("event", name), observability.L("outcome", outcome))
		<-b.sem
		b.pending.Add(-1)
		b.inflight.Done()
	}()

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	ctx = logctx.With(ctx, logger)
	if err := h(ctx, e); err != nil {
		outcome = "error"
		logger.Warn("event_handler_error", observability.Err(err))
	}
}
