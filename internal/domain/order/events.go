package order

import (
	"time"

	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
)

// InvoiceIssued asks payment to settle an invoiced order.
type InvoiceIssued struct {
	Checkout      saga.CustomerCheckout `json:"customer"`
	OrderID       int                   `json:"orderId"`
	InvoiceNumber string                `json:"invoiceNumber"`
	IssueDate     time.Time             `json:"issueDate"`
	TotalInvoice  float64               `json:"totalInvoice"`
	Items         []Item                `json:"items"`
	InstanceID    string                `json:"instanceId"`
}

func (InvoiceIssued) EventName() string { return "InvoiceIssued" }

func NewInvoiceIssued(o *Order, items []Item, checkout saga.CustomerCheckout, instanceID string) InvoiceIssued {
	return InvoiceIssued{
		Checkout:      checkout,
		OrderID:       o.OrderID,
		InvoiceNumber: o.InvoiceNumber,
		IssueDate:     o.CreatedAt,
		TotalInvoice:  o.TotalInvoice,
		Items:         append([]Item(nil), items...),
		InstanceID:    instanceID,
	}
}
