package stock

import "context"

// Tx is the view of the store inside one local transaction. Rows read through a Tx stay
// locked until the transaction ends.
type Tx interface {
	// GetMany returns the rows that exist for keys; absent keys are simply missing from the map.
	GetMany(ctx context.Context, keys []Key) (map[Key]*Item, error)
	Get(ctx context.Context, key Key) (*Item, error)
	Update(ctx context.Context, items ...*Item) error
}

type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Get(ctx context.Context, key Key) (*Item, error)
	Upsert(ctx context.Context, item *Item) error
	// Reset restores every row to qtyAvailable with no reservations or history.
	Reset(ctx context.Context, qtyAvailable int) error
	Cleanup(ctx context.Context) error
}
