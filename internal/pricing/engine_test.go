package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPriceLineCascade(t *testing.T) {
	// Shop tier 100.00, 10% off, qty 3, 15% tax.
	discount := &EffectiveDiscount{Adjustments: []Adjustment{
		{DiscountID: 1, Kind: KindPercentage, Value: 10},
	}}
	pricing, err := PriceLine(PriceTiers{Shop: 100.00}, ChannelShop, 3, discount, 0.15)
	require.NoError(t, err)
	require.Equal(t, 100.00, pricing.UnitPriceBeforeDiscount)
	require.Equal(t, 90.00, pricing.UnitPriceAfterDiscount)
	require.Equal(t, 10.00, pricing.DiscountPerUnit)
	require.Equal(t, 270.00, pricing.LineSubtotal)
	require.Equal(t, 40.50, pricing.LineTaxAmount)
	require.Equal(t, 310.50, pricing.LineTotal)
}

func TestPriceLineWithoutDiscount(t *testing.T) {
	pricing, err := PriceLine(PriceTiers{Shop: 49.99}, ChannelShop, 2, nil, 0)
	require.NoError(t, err)
	require.Equal(t, 49.99, pricing.UnitPriceAfterDiscount)
	require.Equal(t, 99.98, pricing.LineSubtotal)
	require.Equal(t, 0.00, pricing.LineTaxAmount)
	require.Equal(t, 99.98, pricing.LineTotal)
}

func TestPriceLineRejectsZeroQuantity(t *testing.T) {
	_, err := PriceLine(PriceTiers{Shop: 10}, ChannelShop, 0, nil, 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestPriceLineRoundsEachDerivedField(t *testing.T) {
	// 33.335 would drift if intermediate values were carried unrounded.
	discount := &EffectiveDiscount{Adjustments: []Adjustment{
		{DiscountID: 1, Kind: KindPercentage, Value: 33.335},
	}}
	pricing, err := PriceLine(PriceTiers{Shop: 9.99}, ChannelShop, 7, discount, 0.125)
	require.NoError(t, err)
	require.Equal(t, pricing.LineSubtotal, Round2(pricing.LineSubtotal))
	require.Equal(t, pricing.LineTaxAmount, Round2(pricing.LineTaxAmount))
	require.Equal(t, Round2(pricing.LineSubtotal+pricing.LineTaxAmount), pricing.LineTotal)
}

func TestTierPriceSelection(t *testing.T) {
	tiers := PriceTiers{Shop: 100, Field: 95, Wholesale: 80}

	shop, err := TierPrice(tiers, ChannelShop)
	require.NoError(t, err)
	require.Equal(t, 100.00, shop)

	field, err := TierPrice(tiers, ChannelField)
	require.NoError(t, err)
	require.Equal(t, 95.00, field)

	wholesale, err := TierPrice(tiers, ChannelWholesale)
	require.NoError(t, err)
	require.Equal(t, 80.00, wholesale)
}

func TestTierPriceFallsBackToShop(t *testing.T) {
	tiers := PriceTiers{Shop: 100}

	field, err := TierPrice(tiers, ChannelField)
	require.NoError(t, err)
	require.Equal(t, 100.00, field)

	_, err = TierPrice(tiers, Channel("ONLINE"))
	require.ErrorIs(t, err, ErrUnknownChannel)
}

func TestRound2HalfUp(t *testing.T) {
	require.Equal(t, 0.13, Round2(0.125))
	require.Equal(t, 2.38, Round2(2.375))
	require.Equal(t, 10.00, Round2(9.999))
	require.Equal(t, 0.00, Round2(0.004))
}
