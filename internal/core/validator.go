package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ShippingCap is the largest shipping cost allowed for an order totalling totalPrice.
func ShippingCap(totalPrice decimal.Decimal) decimal.Decimal {
	return totalPrice.Mul(ShippingCostCapRate)
}

// ValidateShipping rejects shippingCost when it is strictly greater than 15% of
// the discounted totalPrice. Exactly 15% is accepted.
func ValidateShipping(totalPrice, shippingCost decimal.Decimal) error {
	limit := ShippingCap(totalPrice)
	if shippingCost.GreaterThan(limit) {
		return &ShippingCostExceededError{
			ShippingCost: shippingCost,
			Cap:          limit,
			TotalPrice:   totalPrice,
		}
	}
	return nil
}

func errInvalidQuantity(quantity int) error {
	return fmt.Errorf("%w: quantity must be a positive integer, got %d", ErrInvalidInput, quantity)
}
