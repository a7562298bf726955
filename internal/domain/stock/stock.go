package stock

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("stock: item not found")
	ErrInvalidQuantity   = errors.New("stock: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("stock: insufficient stock")
	ErrReservedUnderflow = errors.New("stock: quantity exceeds reserved")
)

type Key struct {
	SellerID  string `json:"sellerId"`
	ProductID string `json:"productId"`
}

func (k Key) String() string { return k.SellerID + "/" + k.ProductID }

// Item is the inventory ledger row for one seller's product.
// QtyReserved never exceeds QtyAvailable; QtyAvailable only shrinks on Confirm.
type Item struct {
	SellerID     string    `json:"sellerId"`
	ProductID    string    `json:"productId"`
	QtyAvailable int       `json:"qtyAvailable"`
	QtyReserved  int       `json:"qtyReserved"`
	OrderCount   int       `json:"orderCount"`
	Ytd          int       `json:"ytd"`
	Data         string    `json:"data"`
	Version      string    `json:"version"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func NewItem(sellerID, productID string, qtyAvailable int, version string) (*Item, error) {
	if qtyAvailable < 0 {
		return nil, ErrInvalidQuantity
	}
	now := time.Now().UTC()
	return &Item{
		SellerID:     sellerID,
		ProductID:    productID,
		QtyAvailable: qtyAvailable,
		Version:      version,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (i *Item) Key() Key { return Key{SellerID: i.SellerID, ProductID: i.ProductID} }

func (i *Item) CanReserve(qty int) bool {
	return qty > 0 && i.QtyReserved+qty <= i.QtyAvailable
}

func (i *Item) Reserve(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if !i.CanReserve(qty) {
		return ErrInsufficientStock
	}
	i.QtyReserved += qty
	i.touch()
	return nil
}

// Confirm turns a held quantity into a sale.
func (i *Item) Confirm(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty > i.QtyReserved {
		return fmt.Errorf("%w: confirm %d of %d", ErrReservedUnderflow, qty, i.QtyReserved)
	}
	i.QtyAvailable -= qty
	i.QtyReserved -= qty
	i.OrderCount++
	i.Ytd += qty
	i.touch()
	return nil
}

// Cancel releases a hold without touching availability.
func (i *Item) Cancel(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty > i.QtyReserved {
		return fmt.Errorf("%w: cancel %d of %d", ErrReservedUnderflow, qty, i.QtyReserved)
	}
	i.QtyReserved -= qty
	i.touch()
	return nil
}

func (i *Item) Increase(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	i.QtyAvailable += qty
	i.touch()
	return nil
}

func (i *Item) SetVersion(version string) {
	i.Version = version
	i.touch()
}

func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	out := *i
	return &out
}

func (i *Item) touch() {
	i.UpdatedAt = time.Now().UTC()
}

// ItemStatus classifies a line the engine could not reserve.
type ItemStatus string

const (
	Unavailable ItemStatus = "UNAVAILABLE"
	OutOfStock  ItemStatus = "OUT_OF_STOCK"
)

func (s ItemStatus) Valid() bool { return s == Unavailable || s == OutOfStock }

func (s *ItemStatus) UnmarshalText(b []byte) error {
	v := ItemStatus(b)
	if !v.Valid() {
		return fmt.Errorf("stock: unknown item status %q", b)
	}
	*s = v
	return nil
}
