package customer

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("customer: not found")

// Customer carries the per-customer counters fed by payment and delivery outcomes.
type Customer struct {
	CustomerID          string    `json:"customerId"`
	DeliveryCount       int       `json:"deliveryCount"`
	SuccessPaymentCount int       `json:"successPaymentCount"`
	FailedPaymentCount  int       `json:"failedPaymentCount"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

func New(customerID string, now time.Time) *Customer {
	return &Customer{CustomerID: customerID, CreatedAt: now, UpdatedAt: now}
}

// ResetCounters zeroes the counters and keeps the customer.
func (c *Customer) ResetCounters(now time.Time) {
	c.DeliveryCount, c.SuccessPaymentCount, c.FailedPaymentCount = 0, 0, 0
	c.UpdatedAt = now
}
