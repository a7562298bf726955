package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/marketplace-saga/internal/domain/order"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS customer_order_counters (
	customer_id   TEXT PRIMARY KEY,
	next_order_id INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS orders (
	customer_id             TEXT NOT NULL,
	order_id                INTEGER NOT NULL,
	invoice_number          TEXT NOT NULL,
	status                  TEXT NOT NULL,
	purchase_date           TIMESTAMPTZ NOT NULL,
	payment_date            TIMESTAMPTZ,
	delivered_carrier_date  TIMESTAMPTZ,
	delivered_customer_date TIMESTAMPTZ,
	count_items             INTEGER NOT NULL,
	total_amount            DOUBLE PRECISION NOT NULL,
	total_freight           DOUBLE PRECISION NOT NULL,
	total_incentive         DOUBLE PRECISION NOT NULL,
	total_invoice           DOUBLE PRECISION NOT NULL,
	total_items             DOUBLE PRECISION NOT NULL,
	created_at              TIMESTAMPTZ NOT NULL,
	updated_at              TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (customer_id, order_id)
);
CREATE TABLE IF NOT EXISTS order_items (
	customer_id         TEXT NOT NULL,
	order_id            INTEGER NOT NULL,
	order_item_id       INTEGER NOT NULL,
	seller_id           TEXT NOT NULL,
	product_id          TEXT NOT NULL,
	product_name        TEXT NOT NULL,
	unit_price          DOUBLE PRECISION NOT NULL,
	quantity            INTEGER NOT NULL,
	freight_value       DOUBLE PRECISION NOT NULL,
	total_items         DOUBLE PRECISION NOT NULL,
	total_amount        DOUBLE PRECISION NOT NULL,
	total_incentive     DOUBLE PRECISION NOT NULL,
	shipping_limit_date TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (customer_id, order_id, order_item_id)
);
CREATE TABLE IF NOT EXISTS order_history (
	id          BIGSERIAL PRIMARY KEY,
	customer_id TEXT NOT NULL,
	order_id    INTEGER NOT NULL,
	status      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);`

const orderColumns = `customer_id, order_id, invoice_number, status, purchase_date, payment_date,
	delivered_carrier_date, delivered_customer_date, count_items, total_amount, total_freight,
	total_incentive, total_invoice, total_items, created_at, updated_at`

// OrderStore is the order ledger on PostgreSQL through database/sql and lib/pq.
type OrderStore struct {
	db *sql.DB
}

// Open connects with the lib/pq driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	return db, nil
}

func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

func (s *OrderStore) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlstore: init schema: %w", err)
	}
	return nil
}

func (s *OrderStore) InTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()
	if err = fn(ctx, &orderTx{tx: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", err)
	}
	return nil
}

func (s *OrderStore) Get(ctx context.Context, key domain.Key) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 AND order_id = $2`,
		key.CustomerID, key.OrderID)
	return scanOrder(row)
}

func (s *OrderStore) Items(ctx context.Context, key domain.Key) ([]domain.Item, error) {
	if _, err := s.Get(ctx, key); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT order_item_id, seller_id, product_id, product_name, unit_price,
		quantity, freight_value, total_items, total_amount, total_incentive, shipping_limit_date
		FROM order_items WHERE customer_id = $1 AND order_id = $2 ORDER BY order_item_id`,
		key.CustomerID, key.OrderID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: query items: %w", err)
	}
	defer rows.Close()

	var out []domain.Item
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.OrderItemID, &it.SellerID, &it.ProductID, &it.ProductName, &it.UnitPrice,
			&it.Quantity, &it.FreightValue, &it.TotalItems, &it.TotalAmount, &it.TotalIncentive,
			&it.ShippingLimitDate); err != nil {
			return nil, fmt.Errorf("sqlstore: scan item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *OrderStore) History(ctx context.Context, key domain.Key) ([]domain.History, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, created_at FROM order_history
		WHERE customer_id = $1 AND order_id = $2 ORDER BY id`,
		key.CustomerID, key.OrderID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: query history: %w", err)
	}
	defer rows.Close()

	var out []domain.History
	for rows.Next() {
		h := domain.History{CustomerID: key.CustomerID, OrderID: key.OrderID}
		if err := rows.Scan(&h.Status, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlstore: scan history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *OrderStore) Cleanup(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`TRUNCATE order_history, order_items, orders, customer_order_counters`); err != nil {
		return fmt.Errorf("sqlstore: cleanup: %w", err)
	}
	return nil
}

type orderTx struct {
	tx *sql.Tx
}

func (t *orderTx) NextOrderID(ctx context.Context, customerID string) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `INSERT INTO customer_order_counters (customer_id, next_order_id)
		VALUES ($1, 1)
		ON CONFLICT (customer_id) DO UPDATE SET next_order_id = customer_order_counters.next_order_id + 1
		RETURNING next_order_id`, customerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: next order id: %w", err)
	}
	return n, nil
}

func (t *orderTx) Insert(ctx context.Context, o *domain.Order, items []domain.Item) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		o.CustomerID, o.OrderID, o.InvoiceNumber, string(o.Status), o.PurchaseDate,
		nullTime(o.PaymentDate), nullTime(o.DeliveredCarrierDate), nullTime(o.DeliveredCustomerDate),
		o.CountItems, o.TotalAmount, o.TotalFreight, o.TotalIncentive, o.TotalInvoice, o.TotalItems,
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrConflict
		}
		return fmt.Errorf("sqlstore: insert order: %w", err)
	}
	for _, it := range items {
		_, err := t.tx.ExecContext(ctx, `INSERT INTO order_items (customer_id, order_id, order_item_id,
			seller_id, product_id, product_name, unit_price, quantity, freight_value, total_items,
			total_amount, total_incentive, shipping_limit_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			o.CustomerID, o.OrderID, it.OrderItemID, it.SellerID, it.ProductID, it.ProductName, it.UnitPrice,
			it.Quantity, it.FreightValue, it.TotalItems, it.TotalAmount, it.TotalIncentive, it.ShippingLimitDate)
		if err != nil {
			return fmt.Errorf("sqlstore: insert item %d: %w", it.OrderItemID, err)
		}
	}
	return nil
}

// Get locks the order row until the transaction ends.
func (t *orderTx) Get(ctx context.Context, key domain.Key) (*domain.Order, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 AND order_id = $2 FOR UPDATE`,
		key.CustomerID, key.OrderID)
	return scanOrder(row)
}

func (t *orderTx) Update(ctx context.Context, o *domain.Order) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE orders SET status = $3, payment_date = $4,
		delivered_carrier_date = $5, delivered_customer_date = $6, updated_at = $7
		WHERE customer_id = $1 AND order_id = $2`,
		o.CustomerID, o.OrderID, string(o.Status), nullTime(o.PaymentDate),
		nullTime(o.DeliveredCarrierDate), nullTime(o.DeliveredCustomerDate), o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlstore: update order: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *orderTx) AppendHistory(ctx context.Context, h domain.History) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO order_history (customer_id, order_id, status, created_at)
		VALUES ($1, $2, $3, $4)`, h.CustomerID, h.OrderID, string(h.Status), h.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlstore: append history: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*domain.Order, error) {
	var (
		o                                  domain.Order
		status                             string
		payment, carrier, customerDelivery sql.NullTime
	)
	err := row.Scan(&o.CustomerID, &o.OrderID, &o.InvoiceNumber, &status, &o.PurchaseDate,
		&payment, &carrier, &customerDelivery, &o.CountItems, &o.TotalAmount, &o.TotalFreight,
		&o.TotalIncentive, &o.TotalInvoice, &o.TotalItems, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: scan order: %w", err)
	}
	o.Status = domain.Status(status)
	o.PaymentDate = payment.Time
	o.DeliveredCarrierDate = carrier.Time
	o.DeliveredCustomerDate = customerDelivery.Time
	return &o, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
