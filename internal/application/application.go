package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/outbox"
)

// EventRouter binds an inbound event to a saga step. Implementations own the transport concerns:
// per-event logging context, span, metrics, and publishing the compensation mark when the
// step returns a saga failure.
type EventRouter interface {
	Route(eventName, useCase string, h outbox.Handler)
}

// ErrUnexpectedEvent is returned when a routed handler receives a payload of another type.
var ErrUnexpectedEvent = errors.New("application: unexpected event type")

// Handle adapts a typed saga step to an outbox.Handler.
func Handle[E outbox.Event](fn func(ctx context.Context, evt E) error) outbox.Handler {
	return func(ctx context.Context, e outbox.Event) error {
		evt, ok := e.(E)
		if !ok {
			return fmt.Errorf("%w: %T", ErrUnexpectedEvent, e)
		}
		return fn(ctx, evt)
	}
}
