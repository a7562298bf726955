package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
)

var (
	ErrNotFound               = errors.New("order: not found")
	ErrConflict               = errors.New("order: already exists")
	ErrNoItems                = errors.New("order: no items")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
)

// ShippingWindow is how long a seller has to ship an invoiced line.
const ShippingWindow = 3 * 24 * time.Hour

type Key struct {
	CustomerID string `json:"customerId"`
	OrderID    int    `json:"orderId"`
}

func (k Key) String() string { return fmt.Sprintf("%s-%d", k.CustomerID, k.OrderID) }

type Order struct {
	CustomerID            string    `json:"customerId"`
	OrderID               int       `json:"orderId"`
	InvoiceNumber         string    `json:"invoiceNumber"`
	Status                Status    `json:"status"`
	PurchaseDate          time.Time `json:"purchaseDate"`
	PaymentDate           time.Time `json:"paymentDate"`
	DeliveredCarrierDate  time.Time `json:"deliveredCarrierDate"`
	DeliveredCustomerDate time.Time `json:"deliveredCustomerDate"`
	CountItems            int       `json:"countItems"`
	TotalAmount           float64   `json:"totalAmount"`
	TotalFreight          float64   `json:"totalFreight"`
	TotalIncentive        float64   `json:"totalIncentive"`
	TotalInvoice          float64   `json:"totalInvoice"`
	TotalItems            float64   `json:"totalItems"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

func (o *Order) Key() Key { return Key{CustomerID: o.CustomerID, OrderID: o.OrderID} }

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	out := *o
	return &out
}

func (o *Order) touch(at time.Time) { o.UpdatedAt = at }

// Item is the invoiced snapshot of one cart line.
type Item struct {
	OrderItemID       int       `json:"orderItemId"`
	SellerID          string    `json:"sellerId"`
	ProductID         string    `json:"productId"`
	ProductName       string    `json:"productName"`
	UnitPrice         float64   `json:"unitPrice"`
	Quantity          int       `json:"quantity"`
	FreightValue      float64   `json:"freightValue"`
	TotalItems        float64   `json:"totalItems"`
	TotalAmount       float64   `json:"totalAmount"`
	TotalIncentive    float64   `json:"totalIncentive"`
	ShippingLimitDate time.Time `json:"shippingLimitDate"`
}

// History is one row of the append-only status log.
type History struct {
	CustomerID string    `json:"customerId"`
	OrderID    int       `json:"orderId"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// InvoiceNumber renders customerId-yyyyMMdd-orderId.
func InvoiceNumber(customerID string, at time.Time, orderID int) string {
	return fmt.Sprintf("%s-%s-%d", customerID, at.Format("20060102"), orderID)
}

// Invoice builds an invoiced order for orderID from the reserved lines.
//
// Each line's voucher is written off against that line's subtotal and never beyond it:
// a voucher larger than the subtotal zeroes the line and only the subtotal counts as incentive.
// purchasedAt is the checkout time; a zero value falls back to now.
func Invoice(customerID string, orderID int, lines []saga.CartItem, purchasedAt, now time.Time) (*Order, []Item, error) {
	if len(lines) == 0 {
		return nil, nil, ErrNoItems
	}
	if purchasedAt.IsZero() {
		purchasedAt = now
	}
	o := &Order{
		CustomerID:   customerID,
		OrderID:      orderID,
		Status:       StatusCreated,
		PurchaseDate: purchasedAt,
		CountItems:   len(lines),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	items := make([]Item, 0, len(lines))
	for i, l := range lines {
		subtotal := l.UnitPrice * float64(l.Quantity)
		applied := l.Voucher
		if applied > subtotal {
			applied = subtotal
		}
		if applied < 0 {
			applied = 0
		}
		o.TotalItems += subtotal
		o.TotalFreight += l.FreightValue
		o.TotalIncentive += applied

		items = append(items, Item{
			OrderItemID:       i + 1,
			SellerID:          l.SellerID,
			ProductID:         l.ProductID,
			ProductName:       l.ProductName,
			UnitPrice:         l.UnitPrice,
			Quantity:          l.Quantity,
			FreightValue:      l.FreightValue,
			TotalItems:        subtotal,
			TotalAmount:       subtotal - applied,
			TotalIncentive:    applied,
			ShippingLimitDate: now.Add(ShippingWindow),
		})
	}
	o.TotalAmount = o.TotalItems - o.TotalIncentive
	o.TotalInvoice = o.TotalAmount + o.TotalFreight
	o.InvoiceNumber = InvoiceNumber(customerID, now, orderID)
	if _, err := o.transition(func(s OrderState) (OrderState, error) { return s.OnInvoiced(o, now) }, now); err != nil {
		return nil, nil, err
	}
	return o, items, nil
}

// ConfirmPayment moves the order to PAYMENT_PROCESSED. changed is false when the order had
// already moved past payment and the notification only filled in the payment date.
func (o *Order) ConfirmPayment(at time.Time) (changed bool, err error) {
	return o.transition(func(s OrderState) (OrderState, error) { return s.OnPaymentConfirmed(o, at) }, at)
}

func (o *Order) FailPayment(at time.Time) (bool, error) {
	return o.transition(func(s OrderState) (OrderState, error) { return s.OnPaymentFailed(o, at) }, at)
}

// AdvanceShipment moves along READY_FOR_SHIPMENT, IN_TRANSIT, DELIVERED. Stale steps are no-ops.
func (o *Order) AdvanceShipment(target Status, at time.Time) (bool, error) {
	if !target.IsShipping() {
		return false, fmt.Errorf("%w: %s is not a shipping status", ErrInvalidStateTransition, target)
	}
	return o.transition(func(s OrderState) (OrderState, error) { return s.OnShipment(o, target, at) }, at)
}

func (o *Order) transition(step func(OrderState) (OrderState, error), at time.Time) (bool, error) {
	cur, err := stateFor(o.Status)
	if err != nil {
		return false, err
	}
	next, err := step(cur)
	if err != nil {
		return false, fmt.Errorf("%w: from %s", err, o.Status)
	}
	if next.Status() == o.Status {
		return false, nil
	}
	o.Status = next.Status()
	o.touch(at)
	return true, nil
}
