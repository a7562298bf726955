package seller

import (
	"context"

	"github.com/Zhima-Mochi/marketplace-saga/internal/application"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/order"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/payment"
	domain "github.com/Zhima-Mochi/marketplace-saga/internal/domain/seller"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/shipment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	sellerService = "seller-service"

	useCaseInvoiced    = "seller.invoice_issued"
	useCasePaid        = "seller.payment_confirmed"
	useCasePaymentFail = "seller.payment_failed"
	useCaseShipment    = "seller.shipment_notification"
	useCaseDelivery    = "seller.delivery_notification"
	useCaseDashboard   = "seller.dashboard"
)

// Service keeps the seller-side projection of orders. It only reads events and publishes nothing.
type Service struct {
	store domain.Store
	inst  *application.Instrument
}

func NewService(store domain.Store, tel observability.Observability) *Service {
	return &Service{store: store, inst: application.NewInstrument(sellerService, tel)}
}

func (s *Service) ProcessInvoice(ctx context.Context, evt order.InvoiceIssued) (err error) {
	ctx, run := s.inst.Start(ctx, useCaseInvoiced, "ProcessInvoice",
		attribute.String("saga.instance_id", evt.InstanceID),
		attribute.Int("order.id", evt.OrderID),
	)
	defer func() { run.End(err) }()

	entries := make([]domain.OrderEntry, 0, len(evt.Items))
	for _, it := range evt.Items {
		entries = append(entries, domain.NewEntry(evt.Checkout.CustomerID, evt.OrderID, it))
	}
	if err = s.store.Insert(ctx, entries); err != nil {
		run.Fail("ENTRY_INSERT_FAILED")
		return err
	}
	run.With(observability.F("entries", len(entries)))
	return nil
}

func (s *Service) ProcessPaymentConfirmed(ctx context.Context, evt payment.PaymentConfirmed) (err error) {
	ctx, run := s.inst.Start(ctx, useCasePaid, "ProcessPaymentConfirmed", attribute.Int("order.id", evt.OrderID))
	defer func() { run.End(err) }()

	return s.advance(ctx, run, evt.Checkout.CustomerID, evt.OrderID, order.StatusPaymentProcessed, nil)
}

func (s *Service) ProcessPaymentFailed(ctx context.Context, evt payment.PaymentFailed) (err error) {
	ctx, run := s.inst.Start(ctx, useCasePaymentFail, "ProcessPaymentFailed", attribute.Int("order.id", evt.OrderID))
	defer func() { run.End(err) }()

	return s.advance(ctx, run, evt.Checkout.CustomerID, evt.OrderID, order.StatusPaymentFailed, nil)
}

func (s *Service) ProcessShipmentNotification(ctx context.Context, evt shipment.ShipmentNotification) (err error) {
	ctx, run := s.inst.Start(ctx, useCaseShipment, "ProcessShipmentNotification",
		attribute.Int("order.id", evt.OrderID),
		attribute.String("shipment.status", string(evt.Status)),
	)
	defer func() { run.End(err) }()

	var (
		target order.Status
		extra  func(e *domain.OrderEntry)
	)
	switch evt.Status {
	case shipment.StatusApproved:
		target = order.StatusReadyForShipment
		extra = func(e *domain.OrderEntry) {
			e.ShipmentDate = evt.EventDate
			e.DeliveryStatus = domain.DeliveryReadyToShip
		}
	case shipment.StatusDeliveryInProgress:
		target = order.StatusInTransit
		extra = func(e *domain.OrderEntry) {
			if e.DeliveryStatus != domain.DeliveryDelivered {
				e.DeliveryStatus = domain.DeliveryShipped
			}
		}
	case shipment.StatusConcluded:
		target = order.StatusDelivered
	default:
		run.Fail("UNKNOWN_SHIPMENT_STATUS")
		return nil
	}
	return s.advance(ctx, run, evt.CustomerID, evt.OrderID, target, extra)
}

// advance moves every entry of the order forward to target. extra runs only on entries that moved.
func (s *Service) advance(ctx context.Context, run *application.Run, customerID string, orderID int, target order.Status, extra func(e *domain.OrderEntry)) error {
	moved := 0
	n, err := s.store.UpdateOrder(ctx, customerID, orderID, func(e *domain.OrderEntry) {
		if !e.Advance(target) {
			return
		}
		moved++
		if extra != nil {
			extra(e)
		}
	})
	if err != nil {
		run.Fail("ENTRY_UPDATE_FAILED")
		return err
	}
	run.With(
		observability.F("customer_id", customerID),
		observability.F("order_id", orderID),
		observability.F("entries", n),
		observability.F("moved", moved),
	)
	if n == 0 {
		// The invoice insert has not landed yet; this status is lost for the projection.
		run.Status("NO_ENTRIES")
		run.Logger().Warn("seller_entries_missing",
			observability.F("customer_id", customerID),
			observability.F("order_id", orderID),
			observability.F("target_status", string(target)),
		)
		return nil
	}
	if moved == 0 {
		run.Status("UNCHANGED")
	}
	return nil
}

func (s *Service) ProcessDeliveryNotification(ctx context.Context, evt shipment.DeliveryNotification) (err error) {
	ctx, run := s.inst.Start(ctx, useCaseDelivery, "ProcessDeliveryNotification",
		attribute.Int("order.id", evt.OrderID),
		attribute.Int("package.id", evt.PackageID),
	)
	defer func() { run.End(err) }()

	key := domain.EntryKey{CustomerID: evt.CustomerID, OrderID: evt.OrderID, SellerID: evt.SellerID, ProductID: evt.ProductID}
	err = s.store.UpdateEntry(ctx, key, func(e *domain.OrderEntry) {
		e.PackageID = evt.PackageID
		e.DeliveryDate = evt.DeliveryDate
		e.DeliveryStatus = deliveryStatusFor(evt.Status)
	})
	if err != nil {
		run.Fail("ENTRY_NOT_FOUND")
		run.Logger().Error("seller_entry_missing",
			observability.F("customer_id", evt.CustomerID),
			observability.F("order_id", evt.OrderID),
			observability.F("product_id", evt.ProductID),
		)
	}
	return err
}

func deliveryStatusFor(st shipment.PackageStatus) domain.DeliveryStatus {
	if st == shipment.PackageDelivered {
		return domain.DeliveryDelivered
	}
	return domain.DeliveryShipped
}

// QueryDashboard aggregates the seller's in-progress orders.
func (s *Service) QueryDashboard(ctx context.Context, sellerID string) (_ domain.Dashboard, err error) {
	ctx, run := s.inst.Start(ctx, useCaseDashboard, "QueryDashboard", attribute.String("seller.id", sellerID))
	defer func() { run.End(err) }()

	entries, err := s.store.ForSeller(ctx, sellerID)
	if err != nil {
		run.Fail("ENTRIES_LOAD_FAILED")
		return domain.Dashboard{}, err
	}
	d := domain.BuildDashboard(sellerID, entries)
	run.With(observability.F("open_entries", len(d.Entries)))
	return d, nil
}

func (s *Service) Cleanup(ctx context.Context) error {
	return s.store.Cleanup(ctx)
}
