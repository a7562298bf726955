package payment

import (
	"context"
	"time"
)

// IntentStatusSucceeded is the only provider status that settles an order.
const IntentStatusSucceeded = "succeeded"

type CardDetails struct {
	Number   string `json:"number"`
	Holder   string `json:"holder"`
	ExpMonth int    `json:"expMonth"`
	ExpYear  int    `json:"expYear"`
	CVC      string `json:"cvc"`
	Brand    string `json:"brand,omitempty"`
}

type IntentRequest struct {
	Amount         float64      `json:"amount"`
	Customer       string       `json:"customer"`
	IdempotencyKey string       `json:"idempotencyKey"`
	Card           *CardDetails `json:"card,omitempty"`
}

// Intent is the provider's record of one charge attempt.
type Intent struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	Amount         float64   `json:"amount"`
	Customer       string    `json:"customer"`
	IdempotencyKey string    `json:"idempotencyKey"`
	CreatedAt      time.Time `json:"createdAt"`
}

// StatusOf maps a provider intent onto the settlement outcome.
func StatusOf(in *Intent) Status {
	if in != nil && in.Status == IntentStatusSucceeded {
		return StatusSucceeded
	}
	return StatusRequiresPaymentMethod
}

// Gateway is the external payment provider. Repeating a request with the same
// IdempotencyKey must return the intent created the first time.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
}
