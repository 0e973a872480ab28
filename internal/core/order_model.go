package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
//
//	PENDING → PROCESSING → COMPLETED
//	any     → CANCELLED
//
// The graph above is descriptive only: UpdateStatus overwrites the status
// unconditionally with any of the four values.
type OrderStatus string

const (
	StatusPending    OrderStatus = "PENDING"
	StatusProcessing OrderStatus = "PROCESSING"
	StatusCompleted  OrderStatus = "COMPLETED"
	StatusCancelled  OrderStatus = "CANCELLED"
)

// ParseOrderStatus accepts a status name in any letter case.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case StatusPending, StatusProcessing, StatusCompleted, StatusCancelled:
		return status, nil
	}
	return "", fmt.Errorf("%w: unknown order status %q", ErrInvalidInput, s)
}

// AllocationLine is the draw from a single warehouse for one order.
// It is computed per request and only persisted as an OrderItem on commit.
type AllocationLine struct {
	WarehouseID   int64           `json:"warehouse_id"`
	WarehouseName string          `json:"warehouse_name"`
	Quantity      int             `json:"quantity"`
	DistanceKm    float64         `json:"distance_km"`
	ShippingCost  decimal.Decimal `json:"shipping_cost"`
}

// Quote is the priced, allocated but uncommitted answer to a verify request.
// Valid is false when the shipping cost exceeds the allowed share of the total;
// InvalidReason then carries the message.
type Quote struct {
	Quantity       int              `json:"quantity"`
	Destination    Coordinates      `json:"destination"`
	BasePrice      decimal.Decimal  `json:"base_price"`
	DiscountRate   decimal.Decimal  `json:"discount_rate"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
	TotalPrice     decimal.Decimal  `json:"total_price"`
	ShippingCost   decimal.Decimal  `json:"shipping_cost"`
	Lines          []AllocationLine `json:"lines"`
	Valid          bool             `json:"valid"`
	InvalidReason  string           `json:"invalid_reason,omitempty"`
}

// Order is a committed allocation. TotalPrice is the discounted total.
type Order struct {
	ID             int64           `json:"id"`
	OrderNumber    string          `json:"order_number"`
	Quantity       int             `json:"quantity"`
	Destination    Coordinates     `json:"destination"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	Status         OrderStatus     `json:"status"`
	Items          []OrderItem     `json:"items"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// OrderItem is one committed AllocationLine.
type OrderItem struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order_id"`
	WarehouseID   int64           `json:"warehouse_id"`
	WarehouseName string          `json:"warehouse_name"` // joined from warehouses
	Quantity      int             `json:"quantity"`
	ShippingCost  decimal.Decimal `json:"shipping_cost"`
}
