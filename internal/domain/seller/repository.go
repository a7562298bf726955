package seller

import "context"

type Store interface {
	Insert(ctx context.Context, entries []OrderEntry) error
	// UpdateOrder applies fn to every entry of the order and returns how many it touched.
	UpdateOrder(ctx context.Context, customerID string, orderID int, fn func(e *OrderEntry)) (int, error)
	// UpdateEntry applies fn to one entry; ErrNotFound when it does not exist.
	UpdateEntry(ctx context.Context, key EntryKey, fn func(e *OrderEntry)) error
	ForSeller(ctx context.Context, sellerID string) ([]OrderEntry, error)
	Cleanup(ctx context.Context) error
}
