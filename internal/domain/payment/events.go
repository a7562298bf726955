package payment

import (
	"time"

	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/order"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
)

type PaymentConfirmed struct {
	Checkout     saga.CustomerCheckout `json:"customer"`
	OrderID      int                   `json:"orderId"`
	TotalInvoice float64               `json:"totalInvoice"`
	Items        []order.Item          `json:"items"`
	Date         time.Time             `json:"date"`
	InstanceID   string                `json:"instanceId"`
}

func (PaymentConfirmed) EventName() string { return "PaymentConfirmed" }

type PaymentFailed struct {
	Status      Status                `json:"status"`
	Checkout    saga.CustomerCheckout `json:"customer"`
	OrderID     int                   `json:"orderId"`
	Items       []order.Item          `json:"items"`
	TotalAmount float64               `json:"totalAmount"`
	InstanceID  string                `json:"instanceId"`
}

func (PaymentFailed) EventName() string { return "PaymentFailed" }
