package order

import "context"

// Tx is the order ledger inside one local transaction.
type Tx interface {
	// NextOrderID increments and returns the customer's running order counter.
	NextOrderID(ctx context.Context, customerID string) (int, error)
	Insert(ctx context.Context, o *Order, items []Item) error
	Get(ctx context.Context, key Key) (*Order, error)
	Update(ctx context.Context, o *Order) error
	AppendHistory(ctx context.Context, h History) error
}

type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Get(ctx context.Context, key Key) (*Order, error)
	Items(ctx context.Context, key Key) ([]Item, error)
	History(ctx context.Context, key Key) ([]History, error)
	Cleanup(ctx context.Context) error
}
