package app

// OrderRequest is the input to VerifyOrder.
type OrderRequest struct {
	Quantity  int     `json:"quantity" jsonschema:"minimum=1,description=Number of devices to order"`
	Latitude  float64 `json:"latitude" jsonschema:"minimum=-90,maximum=90"`
	Longitude float64 `json:"longitude" jsonschema:"minimum=-180,maximum=180"`
}

// CreateOrderRequest is the input to CreateOrder.
type CreateOrderRequest struct {
	OrderRequest
	// IdempotencyKey is optional; an empty key disables replay protection.
	IdempotencyKey string `json:"-"`
}

// UpdateStatusRequest is the body of a status change.
type UpdateStatusRequest struct {
	Status string `json:"status" jsonschema:"enum=PENDING,enum=PROCESSING,enum=COMPLETED,enum=CANCELLED"`
}

// ReceiveStockRequest is the input to ReceiveStock.
type ReceiveStockRequest struct {
	WarehouseID int64  `json:"-"`
	Quantity    int    `json:"quantity" jsonschema:"minimum=1"`
	Notes       string `json:"notes,omitempty"`
}
