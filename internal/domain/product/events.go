package product

// ProductUpdated is published by the catalog whenever a product's canonical record changes.
// Version is the opaque stamp every downstream replica compares against.
type ProductUpdated struct {
	SellerID     string  `json:"sellerId"`
	ProductID    string  `json:"productId"`
	Name         string  `json:"name"`
	Sku          string  `json:"sku"`
	Category     string  `json:"category"`
	Description  string  `json:"description"`
	Price        float64 `json:"price"`
	FreightValue float64 `json:"freightValue"`
	Status       string  `json:"status"`
	Version      string  `json:"version"`
}

func (ProductUpdated) EventName() string { return "ProductUpdated" }

// PriceUpdated carries a price change for the product version it was computed against.
type PriceUpdated struct {
	SellerID   string  `json:"sellerId"`
	ProductID  string  `json:"productId"`
	Price      float64 `json:"price"`
	Version    string  `json:"version"`
	InstanceID string  `json:"instanceId"`
}

func (PriceUpdated) EventName() string { return "PriceUpdated" }
