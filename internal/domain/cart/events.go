package cart

import (
	"time"

	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
)

// ReserveStock asks the stock engine to hold the checked-out lines.
type ReserveStock struct {
	Timestamp  time.Time             `json:"timestamp"`
	Checkout   saga.CustomerCheckout `json:"customerCheckout"`
	Items      []saga.CartItem       `json:"items"`
	InstanceID string                `json:"instanceId"`
}

func (ReserveStock) EventName() string { return "ReserveStock" }
