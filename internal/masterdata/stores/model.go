package stores

import "time"

// StoreType classifies a location.
type StoreType string

const (
	TypeShop      StoreType = "SHOP"
	TypeWarehouse StoreType = "WAREHOUSE"
	TypeField     StoreType = "FIELD"
	TypeOffice    StoreType = "OFFICE"
	TypeOther     StoreType = "OTHER"
)

// Store is a selling or stocking location, identified by a short code.
// The three numbering prefixes are each globally unique when set; a nil
// prefix means the store does not issue that invoice series.
type Store struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Type        StoreType `json:"type"`
	Address     string    `json:"address,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	CashPrefix  *string   `json:"cash_prefix,omitempty"`
	LaybyPrefix *string   `json:"layby_prefix,omitempty"`
	FieldPrefix *string   `json:"field_prefix,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ValidType reports whether t is a known store type.
func ValidType(t StoreType) bool {
	switch t {
	case TypeShop, TypeWarehouse, TypeField, TypeOffice, TypeOther:
		return true
	}
	return false
}
