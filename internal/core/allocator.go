package core

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"
)

type candidate struct {
	warehouse Warehouse
	distance  float64
}

// Allocate draws quantity units from the candidate warehouses nearest-first.
//
// Warehouses without stock are ignored. Equal distances are ordered by
// warehouse id so the result is deterministic. Lines come back in
// non-decreasing distance order and their quantities sum to quantity.
// When the candidates cannot cover quantity, Allocate returns an
// *InsufficientStockError and no lines. An out-of-range or non-finite
// destination is rejected with ErrInvalidInput.
func Allocate(quantity int, destination Coordinates, warehouses []Warehouse) ([]AllocationLine, error) {
	if quantity <= 0 {
		return nil, errInvalidQuantity(quantity)
	}
	if err := destination.Validate(); err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0, len(warehouses))
	available := 0
	for _, w := range warehouses {
		if w.Stock <= 0 {
			continue
		}
		candidates = append(candidates, candidate{warehouse: w, distance: Distance(destination, w.Location)})
		available += w.Stock
	}

	if available < quantity {
		return nil, &InsufficientStockError{
			Requested: quantity,
			Available: available,
			Shortfall: quantity - available,
		}
	}

	slices.SortStableFunc(candidates, func(a, b candidate) int {
		if c := cmp.Compare(a.distance, b.distance); c != 0 {
			return c
		}
		return cmp.Compare(a.warehouse.ID, b.warehouse.ID)
	})

	remaining := quantity
	var lines []AllocationLine
	for _, c := range candidates {
		if remaining == 0 {
			break
		}
		draw := min(remaining, c.warehouse.Stock)
		lines = append(lines, AllocationLine{
			WarehouseID:   c.warehouse.ID,
			WarehouseName: c.warehouse.Name,
			Quantity:      draw,
			DistanceKm:    c.distance,
			ShippingCost:  ShippingCost(draw, c.distance),
		})
		remaining -= draw
	}
	return lines, nil
}

// TotalShipping sums the per-line shipping costs.
func TotalShipping(lines []AllocationLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.ShippingCost)
	}
	return total
}
