package order

import "fmt"

type Status string

const (
	StatusCreated          Status = "CREATED"
	StatusInvoiced         Status = "INVOICED"
	StatusPaymentProcessed Status = "PAYMENT_PROCESSED"
	StatusPaymentFailed    Status = "PAYMENT_FAILED"
	StatusReadyForShipment Status = "READY_FOR_SHIPMENT"
	StatusInTransit        Status = "IN_TRANSIT"
	StatusDelivered        Status = "DELIVERED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusInvoiced, StatusPaymentProcessed, StatusPaymentFailed,
		StatusReadyForShipment, StatusInTransit, StatusDelivered:
		return true
	}
	return false
}

func (s Status) IsShipping() bool {
	return shippingRank(s) > 0
}

func (s *Status) UnmarshalText(b []byte) error {
	v := Status(b)
	if !v.Valid() {
		return fmt.Errorf("order: unknown status %q", b)
	}
	*s = v
	return nil
}

func shippingRank(s Status) int {
	switch s {
	case StatusReadyForShipment:
		return 1
	case StatusInTransit:
		return 2
	case StatusDelivered:
		return 3
	}
	return 0
}
