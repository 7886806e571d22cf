package pricing

import (
	"errors"
	"time"
)

// DiscountKind enumerates the supported discount variants.
type DiscountKind string

const (
	// KindPercentage reduces the unit price by Value percent.
	KindPercentage DiscountKind = "PERCENTAGE"
	// KindFixedAmountOff subtracts Value per unit.
	KindFixedAmountOff DiscountKind = "FIXED_AMOUNT_OFF"
	// KindSpecialPrice overrides the unit price to Value outright. A
	// special price is terminal: nothing stacks on top of it.
	KindSpecialPrice DiscountKind = "SPECIAL_PRICE"
)

// ScopePolicy decides how a discount with no store/customer-group scoping
// rows is treated.
type ScopePolicy string

const (
	// ScopeAllStores treats an unscoped discount as universally applicable.
	ScopeAllStores ScopePolicy = "ALL_STORES"
	// ScopeNoStores treats an unscoped discount as applying nowhere until
	// scoping rows are added.
	ScopeNoStores ScopePolicy = "NO_STORES"
)

// Discount is a discount rule header. Scoping rows (stores, customer
// groups) are owned by the discount and removed with it.
type Discount struct {
	ID         int64
	Name       string
	Kind       DiscountKind
	Value      float64
	StartsAt   time.Time
	EndsAt     *time.Time
	CouponCode string
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ProductDiscount binds a discount to a product with a quantity band.
type ProductDiscount struct {
	ID         int64
	DiscountID int64
	ProductID  int64
	MinQty     float64
	MaxQty     *float64
	Priority   int
	Cumulative bool
}

// Candidate joins a product discount binding with its parent rule and
// scoping rows, as loaded for resolution.
type Candidate struct {
	Discount         Discount
	Rule             ProductDiscount
	StoreIDs         []string
	CustomerGroupIDs []int64
}

// Adjustment is a single resolved price step.
type Adjustment struct {
	DiscountID int64
	Kind       DiscountKind
	Value      float64
}

// EffectiveDiscount is the ordered set of adjustments applied to a unit
// price after resolving all candidate rules.
type EffectiveDiscount struct {
	Adjustments []Adjustment
}

// Apply folds the adjustments over the unit price. The result never goes
// below zero, and a special price short-circuits the remaining stack.
func (d *EffectiveDiscount) Apply(unitPrice float64) float64 {
	if d == nil {
		return unitPrice
	}
	price := unitPrice
	for _, adj := range d.Adjustments {
		switch adj.Kind {
		case KindPercentage:
			price -= price * adj.Value / 100
		case KindFixedAmountOff:
			price -= adj.Value
		case KindSpecialPrice:
			price = adj.Value
		}
		if adj.Kind == KindSpecialPrice {
			break
		}
	}
	if price < 0 {
		price = 0
	}
	return Round2(price)
}

var (
	// ErrInvalidQuantity indicates a zero or negative quantity.
	ErrInvalidQuantity = errors.New("pricing: quantity must be positive")
	// ErrInvalidValue indicates a discount value outside its legal range.
	ErrInvalidValue = errors.New("pricing: invalid discount value")
	// ErrUnknownChannel indicates an unrecognised selling channel.
	ErrUnknownChannel = errors.New("pricing: unknown selling channel")
	// ErrNotFound indicates a missing discount record.
	ErrNotFound = errors.New("pricing: discount not found")
)
