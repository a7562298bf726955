package shipment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Zhima-Mochi/marketplace-saga/internal/application"
	domoutbox "github.com/Zhima-Mochi/marketplace-saga/internal/domain/outbox"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
	domain "github.com/Zhima-Mochi/marketplace-saga/internal/domain/shipment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	shipmentService = "shipment-service"
	origin          = "shipment"

	useCaseProcess = "shipment.process"
	useCaseUpdate  = "shipment.update"

	defaultDeliveryConcurrency = 4
)

type Options struct {
	// DeliveryConcurrency caps how many sellers UpdateShipment sweeps at once.
	DeliveryConcurrency int
}

type Service struct {
	store     domain.Store
	publisher domoutbox.Publisher
	opts      Options
	inst      *application.Instrument
	now       func() time.Time
}

func NewService(store domain.Store, publisher domoutbox.Publisher, opts Options, tel observability.Observability) *Service {
	if opts.DeliveryConcurrency <= 0 {
		opts.DeliveryConcurrency = defaultDeliveryConcurrency
	}
	return &Service{
		store:     store,
		publisher: publisher,
		opts:      opts,
		inst:      application.NewInstrument(shipmentService, tel),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ProcessShipment opens an approved shipment with one shipped package per paid line.
func (s *Service) ProcessShipment(ctx context.Context, evt payment.PaymentConfirmed) (err error) {
	checkout := evt.Checkout
	ctx, run := s.inst.Start(ctx, useCaseProcess, "ProcessShipment",
		attribute.String("saga.instance_id", evt.InstanceID),
		attribute.String("customer.id", checkout.CustomerID),
		attribute.Int("order.id", evt.OrderID),
	)
	defer func() { run.End(err) }()
	run.With(
		observability.F("instance_id", evt.InstanceID),
		observability.F("customer_id", checkout.CustomerID),
		observability.F("order_id", evt.OrderID),
	)

	now := s.now()
	sh := &domain.Shipment{
		CustomerID:   checkout.CustomerID,
		OrderID:      evt.OrderID,
		PackageCount: len(evt.Items),
		RequestDate:  now,
		Status:       domain.StatusApproved,
		FirstName:    checkout.FirstName,
		LastName:     checkout.LastName,
		Street:       checkout.Street,
		Complement:   checkout.Complement,
		ZipCode:      checkout.ZipCode,
		City:         checkout.City,
		State:        checkout.State,
	}
	pkgs := make([]domain.Package, 0, len(evt.Items))
	for i, it := range evt.Items {
		sh.TotalFreightValue += it.FreightValue
		pkgs = append(pkgs, domain.Package{
			CustomerID:   checkout.CustomerID,
			OrderID:      evt.OrderID,
			PackageID:    i + 1,
			SellerID:     it.SellerID,
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			FreightValue: it.FreightValue,
			Quantity:     it.Quantity,
			ShippingDate: now,
			Status:       domain.PackageShipped,
		})
	}
	if err = s.store.Insert(ctx, sh, pkgs); err != nil {
		run.Fail("SHIPMENT_INSERT_FAILED")
		return saga.Abort(saga.CustomerSession, evt.InstanceID, checkout.CustomerID, origin, fmt.Errorf("shipment: insert: %w", err))
	}
	run.With(observability.F("packages", len(pkgs)))

	_ = run.Publish(s.publisher, domain.NewShipmentNotification(sh, now, evt.InstanceID))
	_ = run.Publish(s.publisher, saga.NewMark(saga.CustomerSession, evt.InstanceID, checkout.CustomerID, saga.MarkSuccess, origin))
	return nil
}

// Sweep summarizes one UpdateShipment run.
type Sweep struct {
	Sellers   int `json:"sellers"`
	Delivered int `json:"delivered"`
	Concluded int `json:"concluded"`
}

// UpdateShipment delivers, for every seller with pending packages, the packages of that
// seller's oldest open order. Sellers are processed independently: one failing seller does
// not stop or roll back the others.
func (s *Service) UpdateShipment(ctx context.Context, instanceID string) (_ Sweep, err error) {
	ctx, run := s.inst.Start(ctx, useCaseUpdate, "UpdateShipment",
		attribute.String("saga.instance_id", instanceID),
	)
	defer func() { run.End(err) }()

	sellers, err := s.store.PendingSellers(ctx)
	if err != nil {
		run.Fail("PENDING_SELLERS_FAILED")
		return Sweep{}, fmt.Errorf("shipment: pending sellers: %w", err)
	}

	var (
		mu    sync.Mutex
		sweep = Sweep{Sellers: len(sellers)}
		errs  []error
		g     errgroup.Group
	)
	g.SetLimit(s.opts.DeliveryConcurrency)
	for _, sellerID := range sellers {
		g.Go(func() error {
			events, delivered, concluded, err := s.deliverSeller(ctx, sellerID, instanceID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("seller %s: %w", sellerID, err))
				return nil
			}
			sweep.Delivered += delivered
			sweep.Concluded += concluded
			for _, e := range events {
				_ = run.Publish(s.publisher, e)
			}
			return nil
		})
	}
	_ = g.Wait()

	run.With(
		observability.F("sellers", sweep.Sellers),
		observability.F("delivered", sweep.Delivered),
		observability.F("concluded", sweep.Concluded),
	)
	if err = errors.Join(errs...); err != nil {
		run.Fail("SELLER_SWEEP_FAILED")
	}
	return sweep, err
}

// deliverSeller runs one seller's batch in a single transaction and returns the events to
// publish once it has committed.
func (s *Service) deliverSeller(ctx context.Context, sellerID, instanceID string) ([]domoutbox.Event, int, int, error) {
	var (
		events    []domoutbox.Event
		delivered int
		concluded int
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		events, delivered, concluded = nil, 0, 0

		key, ok, err := tx.OldestOpen(ctx, sellerID)
		if err != nil || !ok {
			return err
		}
		sh, err := tx.Get(ctx, key)
		if err != nil {
			return err
		}
		pkgs, err := tx.ShippedPackages(ctx, key, sellerID)
		if err != nil {
			return err
		}
		before, err := tx.CountDelivered(ctx, key)
		if err != nil {
			return err
		}

		now := s.now()
		changed := false
		if sh.StartDelivery() {
			changed = true
			events = append(events, domain.NewShipmentNotification(sh, now, instanceID))
		}
		for i := range pkgs {
			if pkgs[i].Deliver(now) {
				delivered++
				events = append(events, domain.NewDeliveryNotification(pkgs[i], instanceID))
			}
		}
		if sh.Conclude(before + delivered) {
			changed = true
			concluded = 1
			events = append(events, domain.NewShipmentNotification(sh, now, instanceID))
		}

		if err := tx.UpdatePackages(ctx, pkgs); err != nil {
			return err
		}
		if changed {
			return tx.UpdateShipment(ctx, sh)
		}
		return nil
	})
	if err != nil {
		return nil, 0, 0, err
	}
	return events, delivered, concluded, nil
}

func (s *Service) GetShipment(ctx context.Context, key domain.Key) (*domain.Shipment, []domain.Package, error) {
	sh, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	pkgs, err := s.store.Packages(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	return sh, pkgs, nil
}

func (s *Service) Cleanup(ctx context.Context) error {
	return s.store.Cleanup(ctx)
}
