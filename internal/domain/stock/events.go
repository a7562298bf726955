package stock

import (
	"time"

	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
)

// StockConfirmed carries the lines that were reserved.
type StockConfirmed struct {
	Timestamp  time.Time             `json:"timestamp"`
	Checkout   saga.CustomerCheckout `json:"customerCheckout"`
	Items      []saga.CartItem       `json:"items"`
	InstanceID string                `json:"instanceId"`
}

func (StockConfirmed) EventName() string { return "StockConfirmed" }

type FailedItem struct {
	saga.CartItem
	Status       ItemStatus `json:"status"`
	QtyAvailable int        `json:"qtyAvailable"`
}

// ReserveStockFailed lists the lines that could not be held.
type ReserveStockFailed struct {
	Timestamp        time.Time             `json:"timestamp"`
	Checkout         saga.CustomerCheckout `json:"customerCheckout"`
	UnavailableItems []FailedItem          `json:"unavailableItems"`
	InstanceID       string                `json:"instanceId"`
}

func (ReserveStockFailed) EventName() string { return "ReserveStockFailed" }

// StockReplenished is published after a restock so replicas downstream can refresh.
type StockReplenished struct {
	Item Item `json:"item"`
}

func (StockReplenished) EventName() string { return "StockReplenished" }
