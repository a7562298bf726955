package stock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Zhima-Mochi/marketplace-saga/internal/application"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/cart"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/marketplace-saga/internal/domain/outbox"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/product"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
	domain "github.com/Zhima-Mochi/marketplace-saga/internal/domain/stock"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	stockService = "stock-service"
	origin       = "stock"

	useCaseReserve       = "stock.reserve"
	useCaseConfirm       = "stock.confirm"
	useCaseCancel        = "stock.cancel"
	useCaseIncrease      = "stock.increase"
	useCaseProductUpdate = "stock.product_update"
	useCaseCreate        = "stock.create"
)

var errNoRows = errors.New("stock: none of the requested items exist")

type Options struct {
	// RaiseStockFailed publishes ReserveStockFailed for lines that could not be held.
	RaiseStockFailed bool
	// DefaultInventory is the quantity Reset restores on every row.
	DefaultInventory int
}

type Service struct {
	store     domain.Store
	publisher domoutbox.Publisher
	opts      Options
	inst      *application.Instrument
	now       func() time.Time
}

func NewService(store domain.Store, publisher domoutbox.Publisher, opts Options, tel observability.Observability) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		opts:      opts,
		inst:      application.NewInstrument(stockService, tel),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func keyOf(sellerID, productID string) domain.Key {
	return domain.Key{SellerID: sellerID, ProductID: productID}
}

// ReserveStock holds every line it can and reports the rest. Lines that fail never block
// lines that succeed.
func (s *Service) ReserveStock(ctx context.Context, evt cart.ReserveStock) (err error) {
	customerID := evt.Checkout.CustomerID
	ctx, run := s.inst.Start(ctx, useCaseReserve, "ReserveStock",
		attribute.String("saga.instance_id", evt.InstanceID),
		attribute.String("customer.id", customerID),
		attribute.Int("stock.lines", len(evt.Items)),
	)
	defer func() { run.End(err) }()
	run.With(
		observability.F("instance_id", evt.InstanceID),
		observability.F("customer_id", customerID),
	)

	keys := make([]domain.Key, 0, len(evt.Items))
	for _, l := range evt.Items {
		keys = append(keys, keyOf(l.SellerID, l.ProductID))
	}

	var (
		reserved []saga.CartItem
		failed   []domain.FailedItem
	)
	txErr := s.store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		rows, err := tx.GetMany(ctx, keys)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return errNoRows
		}
		touched := make(map[domain.Key]*domain.Item)
		for _, line := range evt.Items {
			k := keyOf(line.SellerID, line.ProductID)
			it, ok := rows[k]
			switch {
			case !ok || it.Version != line.Version:
				failed = append(failed, domain.FailedItem{CartItem: line, Status: domain.Unavailable})
			case !it.CanReserve(line.Quantity):
				failed = append(failed, domain.FailedItem{CartItem: line, Status: domain.OutOfStock, QtyAvailable: it.QtyAvailable})
			default:
				if err := it.Reserve(line.Quantity); err != nil {
					return err
				}
				reserved = append(reserved, line)
				touched[k] = it
			}
		}
		return tx.Update(ctx, sortedItems(touched)...)
	})
	if txErr != nil {
		if errors.Is(txErr, errNoRows) {
			run.Fail("NO_STOCK_ROWS")
			run.Logger().Error("stock_rows_missing", observability.F("keys", len(keys)))
			return saga.Fail(saga.CustomerSession, evt.InstanceID, customerID, origin, txErr)
		}
		run.Fail("RESERVE_TX_FAILED")
		return saga.Abort(saga.CustomerSession, evt.InstanceID, customerID, origin, fmt.Errorf("stock: reserve: %w", txErr))
	}
	run.With(
		observability.F("reserved", len(reserved)),
		observability.F("failed", len(failed)),
	)

	now := s.now()
	if len(reserved) > 0 {
		_ = run.Publish(s.publisher, domain.StockConfirmed{
			Timestamp:  now,
			Checkout:   evt.Checkout,
			Items:      reserved,
			InstanceID: evt.InstanceID,
		})
	}
	if len(failed) > 0 && s.opts.RaiseStockFailed {
		_ = run.Publish(s.publisher, domain.ReserveStockFailed{
			Timestamp:        now,
			Checkout:         evt.Checkout,
			UnavailableItems: failed,
			InstanceID:       evt.InstanceID,
		})
	}
	if len(reserved) == 0 {
		run.Status(string(saga.MarkNotAccepted))
		_ = run.Publish(s.publisher, saga.NewMark(saga.CustomerSession, evt.InstanceID, customerID, saga.MarkNotAccepted, origin))
	}
	return nil
}

// ConfirmReservation turns the paid holds into sales.
func (s *Service) ConfirmReservation(ctx context.Context, evt payment.PaymentConfirmed) (err error) {
	ctx, run := s.inst.Start(ctx, useCaseConfirm, "ConfirmReservation",
		attribute.String("saga.instance_id", evt.InstanceID),
		attribute.Int("order.id", evt.OrderID),
	)
	defer func() { run.End(err) }()
	run.With(observability.F("instance_id", evt.InstanceID), observability.F("order_id", evt.OrderID))

	if err = s.settle(ctx, evt.Items, (*domain.Item).Confirm); err != nil {
		run.Fail("CONFIRM_PARTIAL")
	}
	return err
}

// CancelReservation releases the holds of a failed payment.
func (s *Service) CancelReservation(ctx context.Context, evt payment.PaymentFailed) (err error) {
	ctx, run := s.inst.Start(ctx, useCaseCancel, "CancelReservation",
		attribute.String("saga.instance_id", evt.InstanceID),
		attribute.Int("order.id", evt.OrderID),
	)
	defer func() { run.End(err) }()
	run.With(observability.F("instance_id", evt.InstanceID), observability.F("order_id", evt.OrderID))

	if err = s.settle(ctx, evt.Items, (*domain.Item).Cancel); err != nil {
		run.Fail("CANCEL_PARTIAL")
	}
	return err
}

// settle applies op per item in one transaction. Items op rejects are left untouched and
// reported together; the rest commit.
func (s *Service) settle(ctx context.Context, items []order.Item, op func(*domain.Item, int) error) error {
	var itemErrs []error
	txErr := s.store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		itemErrs = itemErrs[:0]
		touched := make(map[domain.Key]*domain.Item)
		for _, oi := range items {
			k := keyOf(oi.SellerID, oi.ProductID)
			it, ok := touched[k]
			if !ok {
				var err error
				if it, err = tx.Get(ctx, k); err != nil {
					itemErrs = append(itemErrs, fmt.Errorf("%s: %w", k, err))
					continue
				}
			}
			probe := it.Clone()
			if err := op(probe, oi.Quantity); err != nil {
				itemErrs = append(itemErrs, fmt.Errorf("%s: %w", k, err))
				continue
			}
			touched[k] = probe
		}
		return tx.Update(ctx, sortedItems(touched)...)
	})
	if txErr != nil {
		return fmt.Errorf("stock: settle: %w", txErr)
	}
	return errors.Join(itemErrs...)
}

// IncreaseStock adds qty to an existing row.
func (s *Service) IncreaseStock(ctx context.Context, sellerID, productID string, qty int) (_ *domain.Item, err error) {
	ctx, run := s.inst.Start(ctx, useCaseIncrease, "IncreaseStock",
		attribute.String("seller.id", sellerID),
		attribute.String("product.id", productID),
	)
	defer func() { run.End(err) }()

	var updated *domain.Item
	err = s.store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		it, err := tx.Get(ctx, keyOf(sellerID, productID))
		if err != nil {
			return err
		}
		if err := it.Increase(qty); err != nil {
			return err
		}
		updated = it
		return tx.Update(ctx, it)
	})
	if err != nil {
		run.Fail("INCREASE_FAILED")
		return nil, fmt.Errorf("stock: increase: %w", err)
	}
	_ = run.Publish(s.publisher, domain.StockReplenished{Item: *updated})
	return updated, nil
}

// ApplyProductUpdate stamps the catalog version on the row. A missing row means the
// catalog and stock disagree about what exists, which this participant cannot repair.
func (s *Service) ApplyProductUpdate(ctx context.Context, evt product.ProductUpdated) (err error) {
	ctx, run := s.inst.Start(ctx, useCaseProductUpdate, "ApplyProductUpdate",
		attribute.String("seller.id", evt.SellerID),
		attribute.String("product.id", evt.ProductID),
		attribute.String("product.version", evt.Version),
	)
	defer func() { run.End(err) }()

	err = s.store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		it, err := tx.Get(ctx, keyOf(evt.SellerID, evt.ProductID))
		if err != nil {
			return err
		}
		it.SetVersion(evt.Version)
		return tx.Update(ctx, it)
	})
	if err != nil {
		run.Fail("PRODUCT_UPDATE_FAILED")
		run.Logger().Error("stock_product_update_failed", observability.F("error", err.Error()))
		return saga.Abort(saga.UpdateProduct, evt.Version, evt.SellerID, origin, fmt.Errorf("stock: product update: %w", err))
	}
	_ = run.Publish(s.publisher, saga.NewMark(saga.UpdateProduct, evt.Version, evt.SellerID, saga.MarkSuccess, origin))
	return nil
}

// CreateStockItem inserts or replaces a row.
func (s *Service) CreateStockItem(ctx context.Context, it *domain.Item) (err error) {
	ctx, run := s.inst.Start(ctx, useCaseCreate, "CreateStockItem",
		attribute.String("seller.id", it.SellerID),
		attribute.String("product.id", it.ProductID),
	)
	defer func() { run.End(err) }()

	if it.QtyAvailable < 0 || it.QtyReserved < 0 || it.QtyReserved > it.QtyAvailable {
		run.Fail("INVALID_QUANTITY")
		return domain.ErrInvalidQuantity
	}
	now := s.now()
	if it.CreatedAt.IsZero() {
		it.CreatedAt = now
	}
	it.UpdatedAt = now
	if err = s.store.Upsert(ctx, it); err != nil {
		run.Fail("UPSERT_FAILED")
		return fmt.Errorf("stock: create: %w", err)
	}
	return nil
}

func (s *Service) GetItem(ctx context.Context, sellerID, productID string) (*domain.Item, error) {
	return s.store.Get(ctx, keyOf(sellerID, productID))
}

func (s *Service) Reset(ctx context.Context) error {
	return s.store.Reset(ctx, s.opts.DefaultInventory)
}

func (s *Service) Cleanup(ctx context.Context) error {
	return s.store.Cleanup(ctx)
}

// sortedItems orders rows by key so durable stores write them in lock order.
func sortedItems(m map[domain.Key]*domain.Item) []*domain.Item {
	out := make([]*domain.Item, 0, len(m))
	for _, it := range m {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key().String() < out[j].Key().String()
	})
	return out
}
