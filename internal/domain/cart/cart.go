package cart

import (
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
)

var (
	ErrNotFound         = errors.New("cart: not found")
	ErrNoItems          = errors.New("cart: no items to check out")
	ErrInvalidQuantity  = errors.New("cart: quantity must be greater than zero")
	ErrReplicaNotFound  = errors.New("cart: product replica not found")
	ErrCustomerRequired = errors.New("cart: customer id is required")
)

type Status string

const (
	StatusOpen         Status = "OPEN"
	StatusCheckoutSent Status = "CHECKOUT_SENT"
)

func (s Status) Valid() bool { return s == StatusOpen || s == StatusCheckoutSent }

func (s *Status) UnmarshalText(b []byte) error {
	v := Status(b)
	if !v.Valid() {
		return fmt.Errorf("cart: unknown status %q", b)
	}
	*s = v
	return nil
}

type Cart struct {
	CustomerID string          `json:"customerId"`
	Status     Status          `json:"status"`
	Items      []saga.CartItem `json:"items"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

func New(customerID string) (*Cart, error) {
	if customerID == "" {
		return nil, ErrCustomerRequired
	}
	now := time.Now().UTC()
	return &Cart{CustomerID: customerID, Status: StatusOpen, CreatedAt: now, UpdatedAt: now}, nil
}

// AddItem inserts a line or replaces the line with the same seller and product.
func (c *Cart) AddItem(item saga.CartItem) error {
	if item.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	for i := range c.Items {
		if c.Items[i].SellerID == item.SellerID && c.Items[i].ProductID == item.ProductID {
			c.Items[i] = item
			c.touch()
			return nil
		}
	}
	c.Items = append(c.Items, item)
	c.touch()
	return nil
}

// Seal reopens the cart for the next session, optionally dropping its lines.
func (c *Cart) Seal(clearItems bool) {
	c.Status = StatusOpen
	if clearItems {
		c.Items = nil
	}
	c.touch()
}

func (c *Cart) MarkCheckoutSent() {
	c.Status = StatusCheckoutSent
	c.touch()
}

// ApplyPrice sets price on lines of (seller, product) that still carry version.
// It reports how many lines changed.
func (c *Cart) ApplyPrice(sellerID, productID, version string, price float64) int {
	n := 0
	for i := range c.Items {
		it := &c.Items[i]
		if it.SellerID == sellerID && it.ProductID == productID && it.Version == version {
			it.UnitPrice = price
			n++
		}
	}
	if n > 0 {
		c.touch()
	}
	return n
}

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = append([]saga.CartItem(nil), c.Items...)
	return &out
}

func (c *Cart) touch() { c.UpdatedAt = time.Now().UTC() }

// ProductReplica is the cart's cached copy of a catalog product.
type ProductReplica struct {
	SellerID  string    `json:"sellerId"`
	ProductID string    `json:"productId"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Version   string    `json:"version"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Diverges reports whether item was priced against this replica's version but at another price.
func (r ProductReplica) Diverges(item saga.CartItem) bool {
	return item.Version == r.Version && item.UnitPrice != r.Price
}
