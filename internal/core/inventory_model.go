package core

import (
	"time"
)

// Coordinates is a WGS84 position in degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Warehouse is a stocked location. Stock is the number of device units on hand and
// never goes below zero; it is only decremented under a row lock by the
// InventoryTransactionManager.
type Warehouse struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Location  Coordinates `json:"location"`
	Stock     int         `json:"stock"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// MovementType classifies an inventory_movements row.
type MovementType string

const (
	MovementReceipt  MovementType = "RECEIPT"
	MovementShipment MovementType = "SHIPMENT"
)

// StockMovement is one entry of the append-only stock audit trail.
// Quantity is positive for receipts and negative for shipments.
type StockMovement struct {
	ID           int64        `json:"id"`
	WarehouseID  int64        `json:"warehouse_id"`
	MovementType MovementType `json:"movement_type"`
	Quantity     int          `json:"quantity"`
	OrderID      *int64       `json:"order_id,omitempty"`
	Notes        string       `json:"notes"`
	CreatedAt    time.Time    `json:"created_at"`
}
