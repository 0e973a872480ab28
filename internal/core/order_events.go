package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderEvent is the payload of order.* outbox events.
type OrderEvent struct {
	OrderID        int64            `json:"order_id"`
	OrderNumber    string           `json:"order_number"`
	Quantity       int              `json:"quantity"`
	Destination    Coordinates      `json:"destination"`
	TotalPrice     decimal.Decimal  `json:"total_price"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
	ShippingCost   decimal.Decimal  `json:"shipping_cost"`
	Status         OrderStatus      `json:"status"`
	PreviousStatus OrderStatus      `json:"previous_status,omitempty"`
	Items          []OrderEventItem `json:"items,omitempty"`
	OccurredAt     time.Time        `json:"occurred_at"`
}

type OrderEventItem struct {
	WarehouseID  int64           `json:"warehouse_id"`
	Quantity     int             `json:"quantity"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
}

func NewOrderEvent(o *Order) OrderEvent {
	e := OrderEvent{
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		Quantity:       o.Quantity,
		Destination:    o.Destination,
		TotalPrice:     o.TotalPrice,
		DiscountAmount: o.DiscountAmount,
		ShippingCost:   o.ShippingCost,
		Status:         o.Status,
		OccurredAt:     time.Now().UTC(),
	}
	for _, it := range o.Items {
		e.Items = append(e.Items, OrderEventItem{
			WarehouseID:  it.WarehouseID,
			Quantity:     it.Quantity,
			ShippingCost: it.ShippingCost,
		})
	}
	return e
}
