package order

import (
	"fmt"
	"time"
)

// OrderState implements the state pattern for order lifecycle transitions.
// Returning the current state means the event is accepted but changes nothing.
type OrderState interface {
	Status() Status
	OnInvoiced(o *Order, at time.Time) (OrderState, error)
	OnPaymentConfirmed(o *Order, at time.Time) (OrderState, error)
	OnPaymentFailed(o *Order, at time.Time) (OrderState, error)
	OnShipment(o *Order, target Status, at time.Time) (OrderState, error)
}

func stateFor(s Status) (OrderState, error) {
	switch s {
	case StatusCreated:
		return createdState{}, nil
	case StatusInvoiced:
		return invoicedState{}, nil
	case StatusPaymentProcessed:
		return paymentProcessedState{}, nil
	case StatusPaymentFailed:
		return paymentFailedState{}, nil
	case StatusReadyForShipment, StatusInTransit, StatusDelivered:
		return shippingState{status: s}, nil
	}
	return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidStateTransition, s)
}

type createdState struct{}

func (createdState) Status() Status { return StatusCreated }

func (createdState) OnInvoiced(*Order, time.Time) (OrderState, error) {
	return invoicedState{}, nil
}

func (createdState) OnPaymentConfirmed(*Order, time.Time) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (createdState) OnPaymentFailed(*Order, time.Time) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (createdState) OnShipment(*Order, Status, time.Time) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

type invoicedState struct{}

func (invoicedState) Status() Status { return StatusInvoiced }

func (invoicedState) OnInvoiced(*Order, time.Time) (OrderState, error) {
	return invoicedState{}, nil
}

func (invoicedState) OnPaymentConfirmed(o *Order, at time.Time) (OrderState, error) {
	o.PaymentDate = at
	return paymentProcessedState{}, nil
}

func (invoicedState) OnPaymentFailed(*Order, time.Time) (OrderState, error) {
	return paymentFailedState{}, nil
}

// Payment and shipment notifications race each other; shipment may land first.
func (invoicedState) OnShipment(o *Order, target Status, at time.Time) (OrderState, error) {
	return shippingState{}.OnShipment(o, target, at)
}

type paymentProcessedState struct{}

func (paymentProcessedState) Status() Status { return StatusPaymentProcessed }

func (paymentProcessedState) OnInvoiced(*Order, time.Time) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (paymentProcessedState) OnPaymentConfirmed(*Order, time.Time) (OrderState, error) {
	return paymentProcessedState{}, nil
}

func (paymentProcessedState) OnPaymentFailed(*Order, time.Time) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (paymentProcessedState) OnShipment(o *Order, target Status, at time.Time) (OrderState, error) {
	return shippingState{}.OnShipment(o, target, at)
}

type paymentFailedState struct{}

func (paymentFailedState) Status() Status { return StatusPaymentFailed }

func (paymentFailedState) OnInvoiced(*Order, time.Time) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (paymentFailedState) OnPaymentConfirmed(*Order, time.Time) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (paymentFailedState) OnPaymentFailed(*Order, time.Time) (OrderState, error) {
	return paymentFailedState{}, nil
}

func (paymentFailedState) OnShipment(*Order, Status, time.Time) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

// shippingState covers the shipment track; it only moves forward.
type shippingState struct{ status Status }

func (s shippingState) Status() Status { return s.status }

func (shippingState) OnInvoiced(*Order, time.Time) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (s shippingState) OnPaymentConfirmed(o *Order, at time.Time) (OrderState, error) {
	if o.PaymentDate.IsZero() {
		o.PaymentDate = at
	}
	return s, nil
}

func (shippingState) OnPaymentFailed(*Order, time.Time) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (s shippingState) OnShipment(o *Order, target Status, at time.Time) (OrderState, error) {
	if shippingRank(target) <= shippingRank(s.status) {
		return s, nil
	}
	switch target {
	case StatusInTransit:
		o.DeliveredCarrierDate = at
	case StatusDelivered:
		o.DeliveredCustomerDate = at
	}
	return shippingState{status: target}, nil
}
