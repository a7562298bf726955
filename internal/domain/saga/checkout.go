package saga

import "fmt"

// PaymentMethod is the customer's chosen settlement instrument.
type PaymentMethod string

const (
	CreditCard PaymentMethod = "CREDIT_CARD"
	DebitCard  PaymentMethod = "DEBIT_CARD"
	Boleto     PaymentMethod = "BOLETO"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case CreditCard, DebitCard, Boleto:
		return true
	}
	return false
}

func (m PaymentMethod) IsCard() bool { return m == CreditCard || m == DebitCard }

func (m *PaymentMethod) UnmarshalText(b []byte) error {
	v := PaymentMethod(b)
	if !v.Valid() {
		return fmt.Errorf("saga: unknown payment method %q", b)
	}
	*m = v
	return nil
}

// CustomerCheckout is the checkout request snapshot. It travels unchanged through every event of
// the instance.
type CustomerCheckout struct {
	CustomerID string `json:"customerId"`

	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Street     string `json:"street"`
	Complement string `json:"complement"`
	City       string `json:"city"`
	State      string `json:"state"`
	ZipCode    string `json:"zipCode"`

	PaymentType        PaymentMethod `json:"paymentType"`
	CardNumber         string        `json:"cardNumber,omitempty"`
	CardHolderName     string        `json:"cardHolderName,omitempty"`
	CardExpiration     string        `json:"cardExpiration,omitempty"`
	CardSecurityNumber string        `json:"cardSecurityNumber,omitempty"`
	CardBrand          string        `json:"cardBrand,omitempty"`
	Installments       int           `json:"installments,omitempty"`

	InstanceID string `json:"instanceId"`
}

// CartItem is a priced cart line as captured at checkout.
type CartItem struct {
	SellerID     string  `json:"sellerId"`
	ProductID    string  `json:"productId"`
	ProductName  string  `json:"productName"`
	UnitPrice    float64 `json:"unitPrice"`
	FreightValue float64 `json:"freightValue"`
	Quantity     int     `json:"quantity"`
	Voucher      float64 `json:"voucher"`
	Version      string  `json:"version"`
}
