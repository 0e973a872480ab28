package core

import (
	"github.com/shopspring/decimal"
)

// Device constants. There is a single SKU.
var (
	UnitPrice           = decimal.RequireFromString("150.00")
	UnitWeightKg        = decimal.RequireFromString("0.365")
	ShippingRatePerKgKm = decimal.RequireFromString("0.01")
	ShippingCostCapRate = decimal.RequireFromString("0.15")
)

// discountTiers is ordered by descending minimum quantity; the first tier whose
// minimum is <= quantity applies.
var discountTiers = []struct {
	minQuantity int
	rate        decimal.Decimal
}{
	{250, decimal.RequireFromString("0.20")},
	{100, decimal.RequireFromString("0.15")},
	{50, decimal.RequireFromString("0.10")},
	{25, decimal.RequireFromString("0.05")},
}

// Pricing is the price breakdown for a quantity of devices.
type Pricing struct {
	BasePrice      decimal.Decimal
	DiscountRate   decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalPrice     decimal.Decimal
}

// DiscountRate returns the volume discount for quantity. Tier boundaries are
// inclusive on the lower end: 25 units already earn 5%.
func DiscountRate(quantity int) decimal.Decimal {
	for _, tier := range discountTiers {
		if quantity >= tier.minQuantity {
			return tier.rate
		}
	}
	return decimal.Zero
}

// Price computes base price, discount and discounted total for quantity.
func Price(quantity int) Pricing {
	base := UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	rate := DiscountRate(quantity)
	discount := base.Mul(rate).Round(2)
	return Pricing{
		BasePrice:      base,
		DiscountRate:   rate,
		DiscountAmount: discount,
		TotalPrice:     base.Sub(discount),
	}
}

// ShippingCost is the cost of moving quantity units over distanceKm, rounded to cents.
func ShippingCost(quantity int, distanceKm float64) decimal.Decimal {
	return ShippingRatePerKgKm.
		Mul(decimal.NewFromInt(int64(quantity))).
		Mul(UnitWeightKg).
		Mul(decimal.NewFromFloat(distanceKm)).
		Round(2)
}
