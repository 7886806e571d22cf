package pricing

// Channel selects the product price tier used as the base unit price.
type Channel string

const (
	ChannelShop      Channel = "SHOP"
	ChannelField     Channel = "FIELD"
	ChannelWholesale Channel = "WHOLESALE"
)

// PriceTiers carries a product's selling tiers.
type PriceTiers struct {
	Shop      float64
	Field     float64
	Wholesale float64
}

// TierPrice selects the base unit price for a channel. Field and
// wholesale fall back to the shop price when the tier is not maintained.
func TierPrice(tiers PriceTiers, channel Channel) (float64, error) {
	switch channel {
	case ChannelShop:
		return tiers.Shop, nil
	case ChannelField:
		if tiers.Field > 0 {
			return tiers.Field, nil
		}
		return tiers.Shop, nil
	case ChannelWholesale:
		if tiers.Wholesale > 0 {
			return tiers.Wholesale, nil
		}
		return tiers.Shop, nil
	default:
		return 0, ErrUnknownChannel
	}
}

// LinePricing is the fully computed price cascade for one document line.
type LinePricing struct {
	UnitPriceBeforeDiscount float64
	UnitPriceAfterDiscount  float64
	DiscountPerUnit         float64
	LineSubtotal            float64
	LineTaxRate             float64
	LineTaxAmount           float64
	LineTotal               float64
}

// PriceLine computes the cascade in fixed order: base price, discount,
// subtotal, tax, total. taxRate is fractional (0.15 means 15%). Every
// derived field is rounded to two decimals before the next step.
func PriceLine(tiers PriceTiers, channel Channel, quantity float64, discount *EffectiveDiscount, taxRate float64) (LinePricing, error) {
	if quantity <= 0 {
		return LinePricing{}, ErrInvalidQuantity
	}
	base, err := TierPrice(tiers, channel)
	if err != nil {
		return LinePricing{}, err
	}
	base = Round2(base)
	after := discount.Apply(base)

	subtotal := Round2(quantity * after)
	tax := Round2(subtotal * taxRate)

	return LinePricing{
		UnitPriceBeforeDiscount: base,
		UnitPriceAfterDiscount:  after,
		DiscountPerUnit:         Round2(base - after),
		LineSubtotal:            subtotal,
		LineTaxRate:             taxRate,
		LineTaxAmount:           tax,
		LineTotal:               Round2(subtotal + tax),
	}, nil
}
