package core

import (
	"errors"
)

// BuildQuote runs allocation, pricing and shipping validation against a stock
// snapshot without touching the database.
//
// An allocation whose shipping cost breaks the cap still produces a Quote with
// Valid=false. Any other failure (bad input, insufficient stock) is returned as
// an error.
func BuildQuote(quantity int, destination Coordinates, warehouses []Warehouse) (*Quote, error) {
	if quantity <= 0 {
		return nil, errInvalidQuantity(quantity)
	}
	if err := destination.Validate(); err != nil {
		return nil, err
	}

	lines, err := Allocate(quantity, destination, warehouses)
	if err != nil {
		return nil, err
	}

	pricing := Price(quantity)
	shipping := TotalShipping(lines)

	q := &Quote{
		Quantity:       quantity,
		Destination:    destination,
		BasePrice:      pricing.BasePrice,
		DiscountRate:   pricing.DiscountRate,
		DiscountAmount: pricing.DiscountAmount,
		TotalPrice:     pricing.TotalPrice,
		ShippingCost:   shipping,
		Lines:          lines,
		Valid:          true,
	}

	if err := ValidateShipping(pricing.TotalPrice, shipping); err != nil {
		var exceeded *ShippingCostExceededError
		if !errors.As(err, &exceeded) {
			return nil, err
		}
		q.Valid = false
		q.InvalidReason = exceeded.Error()
	}
	return q, nil
}
