package products

import "time"

// Product carries the full pricing tier set. Identity (ID, SKU) is
// immutable after creation; pricing and flags are mutable.
type Product struct {
	ID                  int64     `json:"id"`
	SKU                 string    `json:"sku"`
	Name                string    `json:"name"`
	Description         string    `json:"description,omitempty"`
	CategoryID          int64     `json:"category_id,omitempty"`
	SupplierID          int64     `json:"supplier_id,omitempty"`
	UnitOfMeasure       string    `json:"unit_of_measure"`
	StandardCost        float64   `json:"standard_cost"`
	LastPurchasePrice   float64   `json:"last_purchase_price"`
	ShopPrice           float64   `json:"shop_price"`
	FieldPrice          float64   `json:"field_price"`
	WholesalePrice      float64   `json:"wholesale_price"`
	ReorderLevel        float64   `json:"reorder_level"`
	RequiresBatchNumber bool      `json:"requires_batch_number"`
	RequiresExpiryDate  bool      `json:"requires_expiry_date"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
