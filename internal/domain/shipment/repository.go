package shipment

import "context"

// Tx is the shipment store inside one local transaction.
type Tx interface {
	// OldestOpen returns the oldest order that still has shipped packages of sellerID.
	OldestOpen(ctx context.Context, sellerID string) (Key, bool, error)
	Get(ctx context.Context, key Key) (*Shipment, error)
	ShippedPackages(ctx context.Context, key Key, sellerID string) ([]Package, error)
	CountDelivered(ctx context.Context, key Key) (int, error)
	UpdateShipment(ctx context.Context, s *Shipment) error
	UpdatePackages(ctx context.Context, pkgs []Package) error
}

type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Insert writes a shipment with its packages atomically.
	Insert(ctx context.Context, s *Shipment, pkgs []Package) error
	// PendingSellers lists sellers owning at least one shipped package.
	PendingSellers(ctx context.Context) ([]string, error)
	Get(ctx context.Context, key Key) (*Shipment, error)
	Packages(ctx context.Context, key Key) ([]Package, error)
	Cleanup(ctx context.Context) error
}
