package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/marketplace-saga/internal/application"
	domain "github.com/Zhima-Mochi/marketplace-saga/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/marketplace-saga/internal/domain/outbox"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/shipment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/stock"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService = "order-service"
	origin       = "order"

	useCaseInvoice         = "order.invoice"
	useCasePaymentConfirm  = "order.payment_confirmed"
	useCasePaymentFailed   = "order.payment_failed"
	useCaseShipmentUpdated = "order.shipment_notification"
)

var (
	ErrNotFound   = domain.ErrNotFound
	ErrRepository = errors.New("order: repository failure")
)

type Service struct {
	store     domain.Store
	publisher domoutbox.Publisher
	inst      *application.Instrument
	now       func() time.Time
}

func NewService(store domain.Store, publisher domoutbox.Publisher, tel observability.Observability) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		inst:      application.NewInstrument(orderService, tel),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ProcessStockConfirmed invoices the reserved lines as the customer's next order.
func (s *Service) ProcessStockConfirmed(ctx context.Context, evt stock.StockConfirmed) (err error) {
	customerID := evt.Checkout.CustomerID
	ctx, run := s.inst.Start(ctx, useCaseInvoice, "ProcessStockConfirmed",
		attribute.String("saga.instance_id", evt.InstanceID),
		attribute.String("customer.id", customerID),
	)
	defer func() { run.End(err) }()
	run.With(
		observability.F("instance_id", evt.InstanceID),
		observability.F("customer_id", customerID),
	)

	now := s.now()
	var (
		invoiced *domain.Order
		items    []domain.Item
	)
	txErr := s.store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		id, err := tx.NextOrderID(ctx, customerID)
		if err != nil {
			return err
		}
		o, its, err := domain.Invoice(customerID, id, evt.Items, evt.Timestamp, now)
		if err != nil {
			return err
		}
		if err := tx.Insert(ctx, o, its); err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, historyOf(o, now)); err != nil {
			return err
		}
		invoiced, items = o, its
		return nil
	})
	if txErr != nil {
		run.Fail("INVOICE_TX_FAILED")
		return saga.Abort(saga.CustomerSession, evt.InstanceID, customerID, origin, wrapRepositoryError(txErr))
	}

	run.With(
		observability.F("order_id", invoiced.OrderID),
		observability.F("invoice_number", invoiced.InvoiceNumber),
	)
	run.Span().SetAttributes(attribute.Int("order.id", invoiced.OrderID))
	run.Span().AddEvent("order.invoiced", trace.WithAttributes(
		attribute.String("order.invoice_number", invoiced.InvoiceNumber),
		attribute.Float64("order.total_invoice", invoiced.TotalInvoice),
	))

	_ = run.Publish(s.publisher, domain.NewInvoiceIssued(invoiced, items, evt.Checkout, evt.InstanceID))
	return nil
}

func (s *Service) ProcessPaymentConfirmed(ctx context.Context, evt payment.PaymentConfirmed) (err error) {
	ctx, run := s.inst.Start(ctx, useCasePaymentConfirm, "ProcessPaymentConfirmed",
		attribute.String("saga.instance_id", evt.InstanceID),
		attribute.Int("order.id", evt.OrderID),
	)
	defer func() { run.End(err) }()

	key := domain.Key{CustomerID: evt.Checkout.CustomerID, OrderID: evt.OrderID}
	return s.apply(ctx, run, key, func(o *domain.Order) (bool, error) {
		return o.ConfirmPayment(evt.Date)
	})
}

func (s *Service) ProcessPaymentFailed(ctx context.Context, evt payment.PaymentFailed) (err error) {
	ctx, run := s.inst.Start(ctx, useCasePaymentFailed, "ProcessPaymentFailed",
		attribute.String("saga.instance_id", evt.InstanceID),
		attribute.Int("order.id", evt.OrderID),
	)
	defer func() { run.End(err) }()

	key := domain.Key{CustomerID: evt.Checkout.CustomerID, OrderID: evt.OrderID}
	at := s.now()
	return s.apply(ctx, run, key, func(o *domain.Order) (bool, error) {
		return o.FailPayment(at)
	})
}

// ProcessShipmentNotification follows the shipment along the order's delivery track.
func (s *Service) ProcessShipmentNotification(ctx context.Context, evt shipment.ShipmentNotification) (err error) {
	ctx, run := s.inst.Start(ctx, useCaseShipmentUpdated, "ProcessShipmentNotification",
		attribute.String("saga.instance_id", evt.InstanceID),
		attribute.Int("order.id", evt.OrderID),
		attribute.String("shipment.status", string(evt.Status)),
	)
	defer func() { run.End(err) }()

	target := orderStatusFor(evt.Status)
	key := domain.Key{CustomerID: evt.CustomerID, OrderID: evt.OrderID}
	return s.apply(ctx, run, key, func(o *domain.Order) (bool, error) {
		return o.AdvanceShipment(target, evt.EventDate)
	})
}

func orderStatusFor(st shipment.Status) domain.Status {
	switch st {
	case shipment.StatusDeliveryInProgress:
		return domain.StatusInTransit
	case shipment.StatusConcluded:
		return domain.StatusDelivered
	default:
		return domain.StatusReadyForShipment
	}
}

// apply runs step on the stored order and appends a history row when the status moved.
func (s *Service) apply(ctx context.Context, run *application.Run, key domain.Key, step func(o *domain.Order) (bool, error)) error {
	run.With(
		observability.F("customer_id", key.CustomerID),
		observability.F("order_id", key.OrderID),
	)
	var (
		changed bool
		status  domain.Status
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		o, err := tx.Get(ctx, key)
		if err != nil {
			return err
		}
		if changed, err = step(o); err != nil {
			return err
		}
		status = o.Status
		if err := tx.Update(ctx, o); err != nil {
			return err
		}
		if !changed {
			return nil
		}
		return tx.AppendHistory(ctx, historyOf(o, o.UpdatedAt))
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		run.Fail("ORDER_NOT_FOUND")
		run.Logger().Error("order_not_found", observability.F("order_key", key.String()))
		return ErrNotFound
	case errors.Is(err, domain.ErrInvalidStateTransition):
		run.Fail("STATE_TRANSITION_REJECTED")
		return err
	default:
		run.Fail("ORDER_UPDATE_FAILED")
		return wrapRepositoryError(err)
	}
	run.With(observability.F("order_status", string(status)))
	if !changed {
		run.Status("UNCHANGED")
	}
	return nil
}

func historyOf(o *domain.Order, at time.Time) domain.History {
	return domain.History{CustomerID: o.CustomerID, OrderID: o.OrderID, Status: o.Status, CreatedAt: at}
}

func (s *Service) GetOrder(ctx context.Context, key domain.Key) (*domain.Order, []domain.Item, error) {
	o, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, nil, wrapRepositoryError(err)
	}
	items, err := s.store.Items(ctx, key)
	if err != nil {
		return nil, nil, wrapRepositoryError(err)
	}
	return o, items, nil
}

func (s *Service) ListHistory(ctx context.Context, key domain.Key) ([]domain.History, error) {
	h, err := s.store.History(ctx, key)
	return h, wrapRepositoryError(err)
}

func (s *Service) Cleanup(ctx context.Context) error {
	return s.store.Cleanup(ctx)
}

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrNoItems), errors.Is(err, domain.ErrInvalidStateTransition):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}
