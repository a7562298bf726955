package customer

import (
	"context"
	"time"
)

type Store interface {
	// Upsert applies fn to the customer, opening a record stamped now when there is none.
	Upsert(ctx context.Context, customerID string, now time.Time, fn func(c *Customer)) error
	Get(ctx context.Context, customerID string) (*Customer, error)
	// Reset zeroes every customer's counters.
	Reset(ctx context.Context, now time.Time) error
	Cleanup(ctx context.Context) error
}
