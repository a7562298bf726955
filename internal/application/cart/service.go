package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/marketplace-saga/internal/application"
	domain "github.com/Zhima-Mochi/marketplace-saga/internal/domain/cart"
	domoutbox "github.com/Zhima-Mochi/marketplace-saga/internal/domain/outbox"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/product"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	cartService = "cart-service"
	origin      = "cart"

	useCaseCheckout      = "cart.checkout"
	useCaseAddItem       = "cart.add_item"
	useCaseSeal          = "cart.seal"
	useCasePriceUpdate   = "cart.price_update"
	useCaseProductUpdate = "cart.product_update"
)

type Options struct {
	// Streaming publishes ReserveStock after a checkout commits.
	Streaming bool
	// ControllerChecks drops lines whose price diverges from the replica of the same version.
	ControllerChecks bool
}

type Service struct {
	carts     domain.Store
	replicas  domain.ReplicaStore
	publisher domoutbox.Publisher
	opts      Options
	inst      *application.Instrument
	now       func() time.Time
}

func NewService(carts domain.Store, replicas domain.ReplicaStore, publisher domoutbox.Publisher, opts Options, tel observability.Observability) *Service {
	return &Service{
		carts:     carts,
		replicas:  replicas,
		publisher: publisher,
		opts:      opts,
		inst:      application.NewInstrument(cartService, tel),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AddItem upserts a line, opening the cart on first use.
func (s *Service) AddItem(ctx context.Context, customerID string, item saga.CartItem) (_ *domain.Cart, err error) {
	ctx, run := s.inst.Start(ctx, useCaseAddItem, "AddItem",
		attribute.String("customer.id", customerID),
		attribute.String("product.id", item.ProductID),
	)
	defer func() { run.End(err) }()

	if customerID == "" {
		run.Fail("CUSTOMER_ID_REQUIRED")
		return nil, domain.ErrCustomerRequired
	}
	var out *domain.Cart
	err = s.carts.Upsert(ctx, customerID, func(c *domain.Cart) error {
		if err := c.AddItem(item); err != nil {
			return err
		}
		out = c.Clone()
		return nil
	})
	if err != nil {
		run.Fail("ADD_ITEM_FAILED")
		return nil, fmt.Errorf("cart: add item: %w", err)
	}
	return out, nil
}

func (s *Service) GetCart(ctx context.Context, customerID string) (*domain.Cart, error) {
	return s.carts.Get(ctx, customerID)
}

// SealCart reopens the cart, optionally clearing its lines.
func (s *Service) SealCart(ctx context.Context, customerID string, clearItems bool) (err error) {
	ctx, run := s.inst.Start(ctx, useCaseSeal, "SealCart", attribute.String("customer.id", customerID))
	defer func() { run.End(err) }()

	err = s.carts.Update(ctx, customerID, func(c *domain.Cart) error {
		c.Seal(clearItems)
		return nil
	})
	if err != nil {
		run.Fail("SEAL_FAILED")
	}
	return err
}

// NotifyCheckout hands the cart over to stock. The cart is sealed in the same local
// transaction, so a customer can start a new cart as soon as this returns.
func (s *Service) NotifyCheckout(ctx context.Context, checkout saga.CustomerCheckout) (err error) {
	customerID := checkout.CustomerID
	ctx, run := s.inst.Start(ctx, useCaseCheckout, "NotifyCheckout",
		attribute.String("saga.instance_id", checkout.InstanceID),
		attribute.String("customer.id", customerID),
	)
	defer func() { run.End(err) }()
	run.With(
		observability.F("instance_id", checkout.InstanceID),
		observability.F("customer_id", customerID),
	)

	var (
		items   []saga.CartItem
		dropped int
	)
	txErr := s.carts.Update(ctx, customerID, func(c *domain.Cart) error {
		items = items[:0]
		dropped = 0
		for _, it := range c.Items {
			if s.opts.ControllerChecks {
				diverged, err := s.diverges(ctx, it)
				if err != nil {
					return err
				}
				if diverged {
					dropped++
					continue
				}
			}
			items = append(items, it)
		}
		if len(items) == 0 {
			return domain.ErrNoItems
		}
		c.MarkCheckoutSent()
		c.Seal(true)
		return nil
	})
	if txErr != nil {
		switch {
		case errors.Is(txErr, domain.ErrNotFound):
			run.Fail("CART_NOT_FOUND")
		case errors.Is(txErr, domain.ErrNoItems):
			run.Fail("NO_ITEMS")
		default:
			run.Fail("CHECKOUT_TX_FAILED")
		}
		return saga.Abort(saga.CustomerSession, checkout.InstanceID, customerID, origin, fmt.Errorf("cart: checkout: %w", txErr))
	}
	run.With(observability.F("items", len(items)), observability.F("dropped", dropped))

	if s.opts.Streaming {
		_ = run.Publish(s.publisher, domain.ReserveStock{
			Timestamp:  s.now(),
			Checkout:   checkout,
			Items:      items,
			InstanceID: checkout.InstanceID,
		})
	}
	return nil
}

func (s *Service) diverges(ctx context.Context, it saga.CartItem) (bool, error) {
	r, err := s.replicas.Get(ctx, it.SellerID, it.ProductID)
	if errors.Is(err, domain.ErrReplicaNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return r.Diverges(it), nil
}

// ApplyPriceUpdate writes the new price to the replica and to every cart line still priced
// against the same version. Lines or replicas on another version are left alone.
func (s *Service) ApplyPriceUpdate(ctx context.Context, evt product.PriceUpdated) (err error) {
	ctx, run := s.inst.Start(ctx, useCasePriceUpdate, "ApplyPriceUpdate",
		attribute.String("saga.instance_id", evt.InstanceID),
		attribute.String("seller.id", evt.SellerID),
		attribute.String("product.id", evt.ProductID),
	)
	defer func() { run.End(err) }()

	applied, err := s.replicas.UpdatePrice(ctx, evt.SellerID, evt.ProductID, evt.Version, evt.Price)
	if err != nil {
		run.Fail("REPLICA_UPDATE_FAILED")
		return saga.Abort(saga.PriceUpdate, evt.InstanceID, evt.SellerID, origin, fmt.Errorf("cart: price update: %w", err))
	}
	lines, err := s.carts.UpdatePrices(ctx, evt.SellerID, evt.ProductID, evt.Version, evt.Price)
	if err != nil {
		run.Fail("CART_UPDATE_FAILED")
		return saga.Abort(saga.PriceUpdate, evt.InstanceID, evt.SellerID, origin, fmt.Errorf("cart: price update: %w", err))
	}
	run.With(observability.F("replica_applied", applied), observability.F("lines", lines))
	if !applied {
		run.Status("VERSION_MISMATCH")
	}

	_ = run.Publish(s.publisher, saga.NewMark(saga.PriceUpdate, evt.InstanceID, evt.SellerID, saga.MarkSuccess, origin))
	return nil
}

// ApplyProductUpdated overwrites the replica with the catalog's record.
func (s *Service) ApplyProductUpdated(ctx context.Context, evt product.ProductUpdated) (err error) {
	ctx, run := s.inst.Start(ctx, useCaseProductUpdate, "ApplyProductUpdated",
		attribute.String("seller.id", evt.SellerID),
		attribute.String("product.id", evt.ProductID),
		attribute.String("product.version", evt.Version),
	)
	defer func() { run.End(err) }()

	now := s.now()
	r := domain.ProductReplica{
		SellerID:  evt.SellerID,
		ProductID: evt.ProductID,
		Name:      evt.Name,
		Price:     evt.Price,
		Version:   evt.Version,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if prev, gerr := s.replicas.Get(ctx, evt.SellerID, evt.ProductID); gerr == nil {
		r.CreatedAt = prev.CreatedAt
	}
	if err = s.replicas.Upsert(ctx, r); err != nil {
		run.Fail("REPLICA_UPSERT_FAILED")
		return saga.Abort(saga.UpdateProduct, evt.Version, evt.SellerID, origin, fmt.Errorf("cart: product update: %w", err))
	}
	return nil
}

func (s *Service) Cleanup(ctx context.Context) error {
	return errors.Join(s.carts.Cleanup(ctx), s.replicas.Cleanup(ctx))
}

// Reset drops carts but keeps the replicas, which mirror the catalog.
func (s *Service) Reset(ctx context.Context) error {
	return s.carts.Cleanup(ctx)
}
