package payment

import "context"

type Store interface {
	// Insert writes lines and the optional card record in one local transaction.
	// It returns ErrConflict when the order already has lines.
	Insert(ctx context.Context, lines []Line, card *Card) error
	Lines(ctx context.Context, customerID string, orderID int) ([]Line, error)
	Card(ctx context.Context, customerID string, orderID int) (*Card, error)
	Cleanup(ctx context.Context) error
}
