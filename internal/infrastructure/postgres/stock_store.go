package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	domain "github.com/Zhima-Mochi/marketplace-saga/internal/domain/stock"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const stockSchema = `
CREATE TABLE IF NOT EXISTS stock_items (
	seller_id     TEXT NOT NULL,
	product_id    TEXT NOT NULL,
	qty_available INTEGER NOT NULL CHECK (qty_available >= 0),
	qty_reserved  INTEGER NOT NULL CHECK (qty_reserved >= 0 AND qty_reserved <= qty_available),
	order_count   INTEGER NOT NULL DEFAULT 0,
	ytd           INTEGER NOT NULL DEFAULT 0,
	data          TEXT NOT NULL DEFAULT '',
	version       TEXT NOT NULL,
	active        BOOLEAN NOT NULL DEFAULT TRUE,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (seller_id, product_id)
);`

const stockColumns = `seller_id, product_id, qty_available, qty_reserved, order_count, ytd, data, version,
	active, created_at, updated_at`

// DB is what the store needs from a pgx pool.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StockStore is the inventory ledger on PostgreSQL. Reservation transactions lock their rows
// with SELECT ... FOR UPDATE in key order, so concurrent checkouts over overlapping items
// serialize instead of deadlocking.
type StockStore struct {
	db DB
}

var _ domain.Store = (*StockStore)(nil)

func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

func NewStockStore(db DB) *StockStore {
	return &StockStore{db: db}
}

func (s *StockStore) InitSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, stockSchema); err != nil {
		return fmt.Errorf("postgres: init schema: %w", err)
	}
	return nil
}

func (s *StockStore) InTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return fn(ctx, &stockTx{tx: tx})
	})
}

func (s *StockStore) Get(ctx context.Context, key domain.Key) (*domain.Item, error) {
	return scanItem(s.db.QueryRow(ctx,
		`SELECT `+stockColumns+` FROM stock_items WHERE seller_id = $1 AND product_id = $2`,
		key.SellerID, key.ProductID))
}

func (s *StockStore) Upsert(ctx context.Context, it *domain.Item) error {
	_, err := s.db.Exec(ctx, `INSERT INTO stock_items (`+stockColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (seller_id, product_id) DO UPDATE SET
			qty_available = EXCLUDED.qty_available,
			qty_reserved  = EXCLUDED.qty_reserved,
			order_count   = EXCLUDED.order_count,
			ytd           = EXCLUDED.ytd,
			data          = EXCLUDED.data,
			version       = EXCLUDED.version,
			active        = EXCLUDED.active,
			updated_at    = EXCLUDED.updated_at`,
		it.SellerID, it.ProductID, it.QtyAvailable, it.QtyReserved, it.OrderCount, it.Ytd, it.Data,
		it.Version, it.Active, it.CreatedAt, it.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert stock item: %w", err)
	}
	return nil
}

func (s *StockStore) Reset(ctx context.Context, qtyAvailable int) error {
	_, err := s.db.Exec(ctx, `UPDATE stock_items
		SET qty_available = $1, qty_reserved = 0, order_count = 0, ytd = 0, updated_at = now()`, qtyAvailable)
	if err != nil {
		return fmt.Errorf("postgres: reset stock: %w", err)
	}
	return nil
}

func (s *StockStore) Cleanup(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `TRUNCATE stock_items`); err != nil {
		return fmt.Errorf("postgres: cleanup stock: %w", err)
	}
	return nil
}

type stockTx struct {
	tx pgx.Tx
}

func (t *stockTx) GetMany(ctx context.Context, keys []domain.Key) (map[domain.Key]*domain.Item, error) {
	sellers, products := keyColumns(keys)
	rows, err := t.tx.Query(ctx, `SELECT `+stockColumns+` FROM stock_items
		WHERE (seller_id, product_id) IN (SELECT * FROM unnest($1::text[], $2::text[]))
		ORDER BY seller_id, product_id
		FOR UPDATE`, sellers, products)
	if err != nil {
		return nil, fmt.Errorf("postgres: lock stock items: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.Key]*domain.Item, len(keys))
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out[it.Key()] = it
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: lock stock items: %w", err)
	}
	return out, nil
}

func (t *stockTx) Get(ctx context.Context, key domain.Key) (*domain.Item, error) {
	return scanItem(t.tx.QueryRow(ctx,
		`SELECT `+stockColumns+` FROM stock_items WHERE seller_id = $1 AND product_id = $2 FOR UPDATE`,
		key.SellerID, key.ProductID))
}

func (t *stockTx) Update(ctx context.Context, items ...*domain.Item) error {
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(`UPDATE stock_items SET qty_available = $3, qty_reserved = $4, order_count = $5,
			ytd = $6, data = $7, version = $8, active = $9, updated_at = $10
			WHERE seller_id = $1 AND product_id = $2`,
			it.SellerID, it.ProductID, it.QtyAvailable, it.QtyReserved, it.OrderCount, it.Ytd,
			it.Data, it.Version, it.Active, it.UpdatedAt)
	}
	br := t.tx.SendBatch(ctx, batch)
	defer br.Close()
	for _, it := range items {
		tag, err := br.Exec()
		if err != nil {
			return fmt.Errorf("postgres: update %s: %w", it.Key(), err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("postgres: update %s: %w", it.Key(), domain.ErrNotFound)
		}
	}
	return nil
}

// keyColumns splits keys into parallel arrays sorted by (seller, product), the lock order.
func keyColumns(keys []domain.Key) ([]string, []string) {
	sorted := append([]domain.Key(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].SellerID != sorted[j].SellerID {
			return sorted[i].SellerID < sorted[j].SellerID
		}
		return sorted[i].ProductID < sorted[j].ProductID
	})
	sellers := make([]string, len(sorted))
	products := make([]string, len(sorted))
	for i, k := range sorted {
		sellers[i], products[i] = k.SellerID, k.ProductID
	}
	return sellers, products
}

func scanItem(row pgx.Row) (*domain.Item, error) {
	var it domain.Item
	err := row.Scan(&it.SellerID, &it.ProductID, &it.QtyAvailable, &it.QtyReserved, &it.OrderCount,
		&it.Ytd, &it.Data, &it.Version, &it.Active, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan stock item: %w", err)
	}
	return &it, nil
}
