package shipment

import "time"

type ShipmentNotification struct {
	CustomerID string    `json:"customerId"`
	OrderID    int       `json:"orderId"`
	EventDate  time.Time `json:"eventDate"`
	InstanceID string    `json:"instanceId"`
	Status     Status    `json:"status"`
}

func (ShipmentNotification) EventName() string { return "ShipmentNotification" }

func NewShipmentNotification(s *Shipment, at time.Time, instanceID string) ShipmentNotification {
	return ShipmentNotification{
		CustomerID: s.CustomerID,
		OrderID:    s.OrderID,
		EventDate:  at,
		InstanceID: instanceID,
		Status:     s.Status,
	}
}

type DeliveryNotification struct {
	CustomerID   string        `json:"customerId"`
	OrderID      int           `json:"orderId"`
	PackageID    int           `json:"packageId"`
	SellerID     string        `json:"sellerId"`
	ProductID    string        `json:"productId"`
	ProductName  string        `json:"productName"`
	Status       PackageStatus `json:"status"`
	DeliveryDate time.Time     `json:"deliveryDate"`
	InstanceID   string        `json:"instanceId"`
}

func (DeliveryNotification) EventName() string { return "DeliveryNotification" }

func NewDeliveryNotification(p Package, instanceID string) DeliveryNotification {
	return DeliveryNotification{
		CustomerID:   p.CustomerID,
		OrderID:      p.OrderID,
		PackageID:    p.PackageID,
		SellerID:     p.SellerID,
		ProductID:    p.ProductID,
		ProductName:  p.ProductName,
		Status:       p.Status,
		DeliveryDate: p.DeliveryDate,
		InstanceID:   instanceID,
	}
}
