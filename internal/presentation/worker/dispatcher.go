package workerpresentation

import (
	"context"
	"time"

	domoutbox "github.com/Zhima-Mochi/marketplace-saga/internal/domain/outbox"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability/logctx"
)

const markPublishTimeout = 300 * time.Millisecond

// Dispatcher routes bus events to saga steps. A step that fails with a saga.Failure has its
// mark published here and the event counts as handled; other errors go back to the bus.
type Dispatcher struct {
	subscriber domoutbox.Subscriber
	publisher  domoutbox.Publisher
	tel        observability.Observability
	log        observability.Logger
}

func NewDispatcher(subscriber domoutbox.Subscriber, publisher domoutbox.Publisher, tel observability.Observability) *Dispatcher {
	tel = observability.OrNop(tel)
	return &Dispatcher{
		subscriber: subscriber,
		publisher:  publisher,
		tel:        tel,
		log:        tel.Logger().With(observability.F("component", "dispatcher")),
	}
}

func (d *Dispatcher) Route(eventName, useCase string, h domoutbox.Handler) {
	d.subscriber.Subscribe(eventName, func(ctx context.Context, e domoutbox.Event) error {
		ctx = WithEventContext(ctx, logctx.FromOr(ctx, d.log), d.tel, map[string]string{
			"event":    eventName,
			"use_case": useCase,
		})
		return d.Compensate(ctx, h(ctx, e))
	})
}

// Compensate publishes the mark carried by err when it is a saga.Failure and swallows it.
// Any other error is returned unchanged.
func (d *Dispatcher) Compensate(ctx context.Context, err error) error {
	f, ok := saga.AsFailure(err)
	if !ok {
		return err
	}
	logger := logctx.FromOr(ctx, d.log).With(
		observability.F("instance_id", f.Mark.InstanceID),
		observability.F("transaction_type", string(f.Mark.Type)),
		observability.F("mark_status", string(f.Mark.Status)),
		observability.F("origin", f.Mark.Origin),
	)
	if f.Mark.Status == saga.MarkError {
		logger.Error("saga_step_failed", observability.F("error", f.Error()))
	} else {
		logger.Warn("saga_step_aborted", observability.F("error", f.Error()))
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markPublishTimeout)
	defer cancel()
	if perr := d.publisher.Publish(pubCtx, f.Mark); perr != nil {
		logger.Error("compensation_mark_publish_failed", observability.F("error", perr.Error()))
		return perr
	}
	return nil
}
