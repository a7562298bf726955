package payment

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
)

var (
	ErrNotFound           = errors.New("payment: not found")
	ErrConflict           = errors.New("payment: already recorded")
	ErrInvalidExpiration  = errors.New("payment: card expiration must be MMyy")
	ErrNoIntent           = errors.New("payment: gateway returned no intent")
	ErrGatewayUnavailable = errors.New("payment: gateway unavailable")
)

type Type string

const (
	TypeCreditCard Type = "CREDIT_CARD"
	TypeDebitCard  Type = "DEBIT_CARD"
	TypeBoleto     Type = "BOLETO"
	TypeVoucher    Type = "VOUCHER"
)

func (t Type) Valid() bool {
	switch t {
	case TypeCreditCard, TypeDebitCard, TypeBoleto, TypeVoucher:
		return true
	}
	return false
}

func (t *Type) UnmarshalText(b []byte) error {
	v := Type(b)
	if !v.Valid() {
		return fmt.Errorf("payment: unknown type %q", b)
	}
	*t = v
	return nil
}

// TypeFor maps the checkout's payment method onto the primary line type.
func TypeFor(m saga.PaymentMethod) (Type, error) {
	switch m {
	case saga.CreditCard:
		return TypeCreditCard, nil
	case saga.DebitCard:
		return TypeDebitCard, nil
	case saga.Boleto:
		return TypeBoleto, nil
	}
	return "", fmt.Errorf("payment: unsupported method %q", m)
}

type Status string

const (
	StatusSucceeded             Status = "succeeded"
	StatusRequiresPaymentMethod Status = "requires_payment_method"
)

func (s Status) Valid() bool { return s == StatusSucceeded || s == StatusRequiresPaymentMethod }

func (s *Status) UnmarshalText(b []byte) error {
	v := Status(b)
	if !v.Valid() {
		return fmt.Errorf("payment: unknown status %q", b)
	}
	*s = v
	return nil
}

// Line is one settlement row of an order.
type Line struct {
	CustomerID   string    `json:"customerId"`
	OrderID      int       `json:"orderId"`
	Sequential   int       `json:"sequential"`
	Type         Type      `json:"type"`
	Installments int       `json:"installments"`
	Value        float64   `json:"value"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Card is the card detail linked to a card payment line.
type Card struct {
	CustomerID string    `json:"customerId"`
	OrderID    int       `json:"orderId"`
	Sequential int       `json:"sequential"`
	CardNumber string    `json:"cardNumber"`
	HolderName string    `json:"holderName"`
	Expiration time.Time `json:"expiration"`
	Brand      string    `json:"brand"`
}

// ParseExpiration reads a "MMyy" expiration into the first instant of that month.
func ParseExpiration(raw string) (time.Time, error) {
	if len(raw) != 4 {
		return time.Time{}, ErrInvalidExpiration
	}
	month, err := strconv.Atoi(raw[:2])
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, ErrInvalidExpiration
	}
	year, err := strconv.Atoi(raw[2:])
	if err != nil {
		return time.Time{}, ErrInvalidExpiration
	}
	return time.Date(2000+year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}
