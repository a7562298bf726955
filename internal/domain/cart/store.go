package cart

import "context"

// Store persists carts. Update runs fn against the stored cart and commits only when fn
// returns nil; it is the unit of local transaction for checkout.
type Store interface {
	Get(ctx context.Context, customerID string) (*Cart, error)
	// Update applies fn to an existing cart; ErrNotFound when there is none.
	Update(ctx context.Context, customerID string, fn func(c *Cart) error) error
	// Upsert is Update that opens an empty cart first when the customer has none.
	Upsert(ctx context.Context, customerID string, fn func(c *Cart) error) error
	// UpdatePrices applies a version-gated price to every matching line across carts.
	UpdatePrices(ctx context.Context, sellerID, productID, version string, price float64) (int, error)
	Cleanup(ctx context.Context) error
}

// ReplicaStore holds product replicas keyed by (seller, product).
type ReplicaStore interface {
	Get(ctx context.Context, sellerID, productID string) (ProductReplica, error)
	Upsert(ctx context.Context, r ProductReplica) error
	// UpdatePrice writes price only when the stored version equals version. A mismatch or a
	// missing replica is reported as false, never as an error.
	UpdatePrice(ctx context.Context, sellerID, productID, version string, price float64) (bool, error)
	Cleanup(ctx context.Context) error
}
