package gateway

// Product is the catalog API's product representation.
type Product struct {
	SKU     string  `json:"sku"`
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
	Stock   int     `json:"stock"`
	Enabled bool    `json:"enabled"`
}

// CanDelete reports whether the API will accept a delete: the product must be
// disabled and out of stock.
func (p Product) CanDelete() bool {
	return !p.Enabled && p.Stock == 0
}

// ProductRequest is the body of create and update calls. InitialStock is only
// sent on create.
type ProductRequest struct {
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	InitialStock *int    `json:"initialStock,omitempty"`
}
