package seller

import (
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/order"
)

var ErrNotFound = errors.New("seller: order entry not found")

type DeliveryStatus string

const (
	DeliveryReadyToShip DeliveryStatus = "ready_to_ship"
	DeliveryShipped     DeliveryStatus = "shipped"
	DeliveryDelivered   DeliveryStatus = "delivered"
)

func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryReadyToShip, DeliveryShipped, DeliveryDelivered:
		return true
	}
	return false
}

func (s *DeliveryStatus) UnmarshalText(b []byte) error {
	v := DeliveryStatus(b)
	if !v.Valid() {
		return fmt.Errorf("seller: unknown delivery status %q", b)
	}
	*s = v
	return nil
}

type EntryKey struct {
	CustomerID string `json:"customerId"`
	OrderID    int    `json:"orderId"`
	SellerID   string `json:"sellerId"`
	ProductID  string `json:"productId"`
}

// OrderEntry is the seller-side fact row for one order line. Order and delivery status are
// copied in so dashboard queries never join.
type OrderEntry struct {
	CustomerID     string         `json:"customerId"`
	OrderID        int            `json:"orderId"`
	SellerID       string         `json:"sellerId"`
	ProductID      string         `json:"productId"`
	NaturalKey     string         `json:"naturalKey"`
	PackageID      int            `json:"packageId"`
	ProductName    string         `json:"productName"`
	UnitPrice      float64        `json:"unitPrice"`
	Quantity       int            `json:"quantity"`
	TotalItems     float64        `json:"totalItems"`
	TotalAmount    float64        `json:"totalAmount"`
	TotalIncentive float64        `json:"totalIncentive"`
	TotalInvoice   float64        `json:"totalInvoice"`
	FreightValue   float64        `json:"freightValue"`
	ShipmentDate   time.Time      `json:"shipmentDate"`
	DeliveryDate   time.Time      `json:"deliveryDate"`
	OrderStatus    order.Status   `json:"orderStatus"`
	DeliveryStatus DeliveryStatus `json:"deliveryStatus"`
}

func (e *OrderEntry) Key() EntryKey {
	return EntryKey{CustomerID: e.CustomerID, OrderID: e.OrderID, SellerID: e.SellerID, ProductID: e.ProductID}
}

func NaturalKey(customerID string, orderID int) string {
	return fmt.Sprintf("%s_%d", customerID, orderID)
}

// NewEntry projects one invoiced line.
func NewEntry(customerID string, orderID int, it order.Item) OrderEntry {
	return OrderEntry{
		CustomerID:     customerID,
		OrderID:        orderID,
		SellerID:       it.SellerID,
		ProductID:      it.ProductID,
		NaturalKey:     NaturalKey(customerID, orderID),
		ProductName:    it.ProductName,
		UnitPrice:      it.UnitPrice,
		Quantity:       it.Quantity,
		TotalItems:     it.TotalItems,
		TotalAmount:    it.TotalAmount,
		TotalIncentive: it.TotalIncentive,
		TotalInvoice:   it.TotalAmount + it.FreightValue,
		FreightValue:   it.FreightValue,
		OrderStatus:    order.StatusInvoiced,
	}
}

// Advance sets the order status unless the entry already holds a later one.
func (e *OrderEntry) Advance(s order.Status) bool {
	if rank(s) <= rank(e.OrderStatus) {
		return false
	}
	if e.OrderStatus == order.StatusPaymentFailed {
		return false
	}
	e.OrderStatus = s
	return true
}

func rank(s order.Status) int {
	switch s {
	case order.StatusCreated:
		return 0
	case order.StatusInvoiced:
		return 1
	case order.StatusPaymentProcessed, order.StatusPaymentFailed:
		return 2
	case order.StatusReadyForShipment:
		return 3
	case order.StatusInTransit:
		return 4
	case order.StatusDelivered:
		return 5
	}
	return -1
}

// Open reports whether the entry still counts toward the in-progress dashboard.
func (e *OrderEntry) Open() bool {
	switch e.OrderStatus {
	case order.StatusInvoiced, order.StatusPaymentProcessed, order.StatusReadyForShipment, order.StatusInTransit:
		return true
	}
	return false
}

// View aggregates a seller's open entries.
type View struct {
	SellerID       string  `json:"sellerId"`
	CountOrders    int     `json:"countOrders"`
	CountItems     int     `json:"countItems"`
	TotalAmount    float64 `json:"totalAmount"`
	TotalFreight   float64 `json:"totalFreight"`
	TotalIncentive float64 `json:"totalIncentive"`
	TotalInvoice   float64 `json:"totalInvoice"`
	TotalItems     float64 `json:"totalItems"`
}

type Dashboard struct {
	View    View         `json:"view"`
	Entries []OrderEntry `json:"entries"`
}

// BuildDashboard aggregates the open entries among entries.
func BuildDashboard(sellerID string, entries []OrderEntry) Dashboard {
	d := Dashboard{View: View{SellerID: sellerID}, Entries: []OrderEntry{}}
	orders := make(map[string]struct{})
	for _, e := range entries {
		if e.SellerID != sellerID || !e.Open() {
			continue
		}
		orders[e.NaturalKey] = struct{}{}
		d.View.CountItems += e.Quantity
		d.View.TotalAmount += e.TotalAmount
		d.View.TotalFreight += e.FreightValue
		d.View.TotalIncentive += e.TotalIncentive
		d.View.TotalInvoice += e.TotalInvoice
		d.View.TotalItems += e.TotalItems
		d.Entries = append(d.Entries, e)
	}
	d.View.CountOrders = len(orders)
	return d
}
