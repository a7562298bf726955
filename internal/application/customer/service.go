package customer

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/marketplace-saga/internal/application"
	domain "github.com/Zhima-Mochi/marketplace-saga/internal/domain/customer"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/shipment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	customerService = "customer-service"

	useCaseDelivery    = "customer.delivery_notification"
	useCasePaid        = "customer.payment_confirmed"
	useCasePaymentFail = "customer.payment_failed"
)

// Service counts payment and delivery outcomes per customer. Like the seller view it only
// consumes events.
type Service struct {
	store domain.Store
	inst  *application.Instrument
	now   func() time.Time
}

func NewService(store domain.Store, tel observability.Observability) *Service {
	return &Service{
		store: store,
		inst:  application.NewInstrument(customerService, tel),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) ProcessDeliveryNotification(ctx context.Context, evt shipment.DeliveryNotification) (err error) {
	ctx, run := s.inst.Start(ctx, useCaseDelivery, "ProcessDeliveryNotification",
		attribute.String("customer.id", evt.CustomerID),
		attribute.Int("package.id", evt.PackageID),
	)
	defer func() { run.End(err) }()

	return s.bump(ctx, run, evt.CustomerID, func(c *domain.Customer) { c.DeliveryCount++ })
}

func (s *Service) ProcessPaymentConfirmed(ctx context.Context, evt payment.PaymentConfirmed) (err error) {
	ctx, run := s.inst.Start(ctx, useCasePaid, "ProcessPaymentConfirmed",
		attribute.String("customer.id", evt.Checkout.CustomerID),
		attribute.Int("order.id", evt.OrderID),
	)
	defer func() { run.End(err) }()

	return s.bump(ctx, run, evt.Checkout.CustomerID, func(c *domain.Customer) { c.SuccessPaymentCount++ })
}

func (s *Service) ProcessPaymentFailed(ctx context.Context, evt payment.PaymentFailed) (err error) {
	ctx, run := s.inst.Start(ctx, useCasePaymentFail, "ProcessPaymentFailed",
		attribute.String("customer.id", evt.Checkout.CustomerID),
		attribute.Int("order.id", evt.OrderID),
	)
	defer func() { run.End(err) }()

	return s.bump(ctx, run, evt.Checkout.CustomerID, func(c *domain.Customer) { c.FailedPaymentCount++ })
}

func (s *Service) bump(ctx context.Context, run *application.Run, customerID string, fn func(c *domain.Customer)) error {
	run.With(observability.F("customer_id", customerID))
	if err := s.store.Upsert(ctx, customerID, s.now(), fn); err != nil {
		run.Fail("CUSTOMER_UPDATE_FAILED")
		return err
	}
	return nil
}

func (s *Service) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	return s.store.Get(ctx, customerID)
}

// Reset zeroes the counters; Cleanup forgets the customers.
func (s *Service) Reset(ctx context.Context) error {
	return s.store.Reset(ctx, s.now())
}

func (s *Service) Cleanup(ctx context.Context) error {
	return s.store.Cleanup(ctx)
}
