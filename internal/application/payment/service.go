package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/marketplace-saga/internal/application"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/marketplace-saga/internal/domain/outbox"
	domain "github.com/Zhima-Mochi/marketplace-saga/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	paymentService = "payment-service"
	origin         = "payment"

	gatewayPeer     = "payment-gateway"
	gatewayEndpoint = "payment_intents.create"

	useCaseProcess = "payment.process"
)

type Service struct {
	store     domain.Store
	gateway   domain.Gateway
	publisher domoutbox.Publisher
	inst      *application.Instrument
	now       func() time.Time
}

// NewService builds the settlement participant. A nil gateway settles every invoice.
func NewService(store domain.Store, gateway domain.Gateway, publisher domoutbox.Publisher, tel observability.Observability) *Service {
	return &Service{
		store:     store,
		gateway:   gateway,
		publisher: publisher,
		inst:      application.NewInstrument(paymentService, tel),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ProcessPayment charges an invoice and records its settlement lines.
func (s *Service) ProcessPayment(ctx context.Context, evt order.InvoiceIssued) (err error) {
	checkout := evt.Checkout
	customerID := checkout.CustomerID
	ctx, run := s.inst.Start(ctx, useCaseProcess, "ProcessPayment",
		attribute.String("saga.instance_id", evt.InstanceID),
		attribute.String("customer.id", customerID),
		attribute.Int("order.id", evt.OrderID),
		attribute.String("payment.method", string(checkout.PaymentType)),
	)
	defer func() { run.End(err) }()
	run.With(
		observability.F("instance_id", evt.InstanceID),
		observability.F("customer_id", customerID),
		observability.F("order_id", evt.OrderID),
	)

	abort := func(code string, cause error) error {
		run.Fail(code)
		return saga.Abort(saga.CustomerSession, evt.InstanceID, customerID, origin, cause)
	}

	primaryType, err := domain.TypeFor(checkout.PaymentType)
	if err != nil {
		return abort("UNSUPPORTED_METHOD", err)
	}

	var expiration time.Time
	status := domain.StatusSucceeded
	if checkout.PaymentType.IsCard() {
		if expiration, err = domain.ParseExpiration(checkout.CardExpiration); err != nil {
			run.Logger().Warn("card_expiration_invalid", observability.F("error", err.Error()))
			status = domain.StatusRequiresPaymentMethod
		}
	}
	if s.gateway != nil && status == domain.StatusSucceeded {
		intent, gerr := s.charge(run, evt, expiration)
		switch {
		case errors.Is(gerr, domain.ErrNoIntent):
			return abort("NO_INTENT", gerr)
		case gerr != nil:
			return abort("GATEWAY_UNAVAILABLE", fmt.Errorf("payment: create intent: %w", gerr))
		}
		status = domain.StatusOf(intent)
		run.With(observability.F("intent_id", intent.ID))
	}

	now := s.now()
	lines, card := buildLines(evt, primaryType, status, expiration, now)
	err = s.store.Insert(ctx, lines, card)
	if errors.Is(err, domain.ErrConflict) {
		// Redelivered invoice: the first delivery already settled and announced it.
		stored, lerr := s.store.Lines(ctx, customerID, evt.OrderID)
		if lerr != nil {
			return abort("PAYMENT_READ_FAILED", fmt.Errorf("payment: read back: %w", lerr))
		}
		run.Status("DUPLICATE")
		run.Logger().Info("payment_already_recorded",
			observability.F("payment_status", string(stored[0].Status)),
			observability.F("lines", len(stored)),
		)
		return nil
	}
	if err != nil {
		return abort("PAYMENT_INSERT_FAILED", fmt.Errorf("payment: insert: %w", err))
	}
	run.With(observability.F("payment_status", string(status)), observability.F("lines", len(lines)))

	if status == domain.StatusSucceeded {
		_ = run.Publish(s.publisher, domain.PaymentConfirmed{
			Checkout:     checkout,
			OrderID:      evt.OrderID,
			TotalInvoice: evt.TotalInvoice,
			Items:        evt.Items,
			Date:         now,
			InstanceID:   evt.InstanceID,
		})
		return nil
	}

	run.Status(string(saga.MarkNotAccepted))
	_ = run.Publish(s.publisher, domain.PaymentFailed{
		Status:      status,
		Checkout:    checkout,
		OrderID:     evt.OrderID,
		Items:       evt.Items,
		TotalAmount: evt.TotalInvoice,
		InstanceID:  evt.InstanceID,
	})
	_ = run.Publish(s.publisher, saga.NewMark(saga.CustomerSession, evt.InstanceID, customerID, saga.MarkNotAccepted, origin))
	return nil
}

// charge asks the gateway for an intent keyed by the invoice number, so a redelivered
// invoice resolves to the first charge.
func (s *Service) charge(run *application.Run, evt order.InvoiceIssued, expiration time.Time) (*domain.Intent, error) {
	checkout := evt.Checkout
	req := domain.IntentRequest{
		Amount:         evt.TotalInvoice,
		Customer:       checkout.CustomerID,
		IdempotencyKey: evt.InvoiceNumber,
	}
	if checkout.PaymentType.IsCard() {
		req.Card = &domain.CardDetails{
			Number:   checkout.CardNumber,
			Holder:   checkout.CardHolderName,
			ExpMonth: int(expiration.Month()),
			ExpYear:  expiration.Year(),
			CVC:      checkout.CardSecurityNumber,
			Brand:    checkout.CardBrand,
		}
	}

	var intent *domain.Intent
	err := run.External(gatewayPeer, gatewayEndpoint, func(ctx context.Context) error {
		var err error
		intent, err = s.gateway.CreateIntent(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, domain.ErrNoIntent
	}
	return intent, nil
}

func buildLines(evt order.InvoiceIssued, primary domain.Type, status domain.Status, expiration, now time.Time) ([]domain.Line, *domain.Card) {
	checkout := evt.Checkout
	installments := 1
	if checkout.PaymentType.IsCard() && checkout.Installments > 0 {
		installments = checkout.Installments
	}
	lines := []domain.Line{{
		CustomerID:   checkout.CustomerID,
		OrderID:      evt.OrderID,
		Sequential:   1,
		Type:         primary,
		Installments: installments,
		Value:        evt.TotalInvoice,
		Status:       status,
		CreatedAt:    now,
	}}

	var card *domain.Card
	if checkout.PaymentType.IsCard() {
		card = &domain.Card{
			CustomerID: checkout.CustomerID,
			OrderID:    evt.OrderID,
			Sequential: 1,
			CardNumber: checkout.CardNumber,
			HolderName: checkout.CardHolderName,
			Expiration: expiration,
			Brand:      checkout.CardBrand,
		}
	}

	if status != domain.StatusSucceeded {
		return lines, card
	}
	seq := 1
	for _, it := range evt.Items {
		if it.TotalIncentive <= 0 {
			continue
		}
		seq++
		lines = append(lines, domain.Line{
			CustomerID:   checkout.CustomerID,
			OrderID:      evt.OrderID,
			Sequential:   seq,
			Type:         domain.TypeVoucher,
			Installments: 1,
			Value:        it.TotalIncentive,
			Status:       status,
			CreatedAt:    now,
		})
	}
	return lines, card
}

func (s *Service) GetPayment(ctx context.Context, customerID string, orderID int) ([]domain.Line, *domain.Card, error) {
	lines, err := s.store.Lines(ctx, customerID, orderID)
	if err != nil {
		return nil, nil, err
	}
	card, err := s.store.Card(ctx, customerID, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		return lines, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return lines, card, nil
}

func (s *Service) Cleanup(ctx context.Context) error {
	return s.store.Cleanup(ctx)
}
