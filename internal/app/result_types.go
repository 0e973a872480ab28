package app

import "bulk-orders/internal/core"

// QuoteResult is returned by VerifyOrder.
type QuoteResult struct {
	Quote *core.Quote
}

// OrderResult is returned by order lifecycle operations.
type OrderResult struct {
	Order *core.Order
	// Replayed is true when the order came from an earlier request with the same idempotency key.
	Replayed bool
	// Attempts is the number of Create attempts made, 0 for replays and reads.
	Attempts int
}

// OrderListResult is returned by ListOrders.
type OrderListResult struct {
	Orders []core.Order
}

// WarehouseListResult is returned by ListWarehouses.
type WarehouseListResult struct {
	Warehouses []core.Warehouse
}

// WarehouseResult is returned by ReceiveStock.
type WarehouseResult struct {
	Warehouse *core.Warehouse
}

// MovementListResult is returned by ListMovements.
type MovementListResult struct {
	WarehouseID int64
	Movements   []core.StockMovement
}
