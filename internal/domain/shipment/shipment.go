package shipment

import (
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("shipment: not found")

type Status string

const (
	StatusApproved           Status = "approved"
	StatusDeliveryInProgress Status = "delivery_in_progress"
	StatusConcluded          Status = "concluded"
)

func (s Status) Valid() bool {
	switch s {
	case StatusApproved, StatusDeliveryInProgress, StatusConcluded:
		return true
	}
	return false
}

func (s *Status) UnmarshalText(b []byte) error {
	v := Status(b)
	if !v.Valid() {
		return fmt.Errorf("shipment: unknown status %q", b)
	}
	*s = v
	return nil
}

type PackageStatus string

const (
	PackageShipped   PackageStatus = "shipped"
	PackageDelivered PackageStatus = "delivered"
)

func (s PackageStatus) Valid() bool { return s == PackageShipped || s == PackageDelivered }

func (s *PackageStatus) UnmarshalText(b []byte) error {
	v := PackageStatus(b)
	if !v.Valid() {
		return fmt.Errorf("shipment: unknown package status %q", b)
	}
	*s = v
	return nil
}

type Key struct {
	CustomerID string `json:"customerId"`
	OrderID    int    `json:"orderId"`
}

// Shipment aggregates the packages of one order. It is concluded exactly when every
// package has been delivered.
type Shipment struct {
	CustomerID        string    `json:"customerId"`
	OrderID           int       `json:"orderId"`
	PackageCount      int       `json:"packageCount"`
	TotalFreightValue float64   `json:"totalFreightValue"`
	RequestDate       time.Time `json:"requestDate"`
	Status            Status    `json:"status"`
	FirstName         string    `json:"firstName"`
	LastName          string    `json:"lastName"`
	Street            string    `json:"street"`
	Complement        string    `json:"complement"`
	ZipCode           string    `json:"zipCode"`
	City              string    `json:"city"`
	State             string    `json:"state"`
}

func (s *Shipment) Key() Key { return Key{CustomerID: s.CustomerID, OrderID: s.OrderID} }

func (s *Shipment) Clone() *Shipment {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}

// StartDelivery flips an approved shipment to delivery_in_progress.
func (s *Shipment) StartDelivery() bool {
	if s.Status != StatusApproved {
		return false
	}
	s.Status = StatusDeliveryInProgress
	return true
}

// Conclude flips the shipment once delivered covers every package.
func (s *Shipment) Conclude(delivered int) bool {
	if s.Status == StatusConcluded || delivered < s.PackageCount {
		return false
	}
	s.Status = StatusConcluded
	return true
}

type Package struct {
	CustomerID   string        `json:"customerId"`
	OrderID      int           `json:"orderId"`
	PackageID    int           `json:"packageId"`
	SellerID     string        `json:"sellerId"`
	ProductID    string        `json:"productId"`
	ProductName  string        `json:"productName"`
	FreightValue float64       `json:"freightValue"`
	Quantity     int           `json:"quantity"`
	ShippingDate time.Time     `json:"shippingDate"`
	DeliveryDate time.Time     `json:"deliveryDate"`
	Status       PackageStatus `json:"status"`
}

func (p *Package) Key() Key { return Key{CustomerID: p.CustomerID, OrderID: p.OrderID} }

func (p *Package) Deliver(at time.Time) bool {
	if p.Status == PackageDelivered {
		return false
	}
	p.Status = PackageDelivered
	p.DeliveryDate = at
	return true
}
