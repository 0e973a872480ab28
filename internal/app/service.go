package app

import (
	"context"
	"errors"
)

// ErrRequestInFlight is returned when another request holding the same
// idempotency key has not finished yet.
var ErrRequestInFlight = errors.New("a request with this idempotency key is still in progress")

// ApplicationService is the single interface all UI adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println, no ANSI codes, and no display logic of any kind.
type ApplicationService interface {
	// VerifyOrder prices and allocates an order without persisting anything.
	// A quote that breaks the shipping cap is returned with Valid=false, not as an error.
	VerifyOrder(ctx context.Context, req OrderRequest) (*QuoteResult, error)

	// CreateOrder commits an order, retrying transient lock contention up to the
	// configured number of attempts. With an IdempotencyKey a repeated request
	// returns the order created the first time.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error)

	// GetOrder returns a single order with its items.
	GetOrder(ctx context.Context, orderID int64) (*OrderResult, error)

	// ListOrders returns orders newest first, optionally filtered by status.
	// An empty status lists every order.
	ListOrders(ctx context.Context, status string, limit int) (*OrderListResult, error)

	// UpdateOrderStatus sets any of the four order statuses directly.
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) (*OrderResult, error)

	// DeleteOrder removes an order and its items. Warehouse stock is not restored.
	DeleteOrder(ctx context.Context, orderID int64) error

	// ListWarehouses returns every warehouse, including those with no stock.
	ListWarehouses(ctx context.Context) (*WarehouseListResult, error)

	// ReceiveStock adds units to a warehouse and records a RECEIPT movement.
	ReceiveStock(ctx context.Context, req ReceiveStockRequest) (*WarehouseResult, error)

	// ListMovements returns a warehouse's stock movements, newest first.
	ListMovements(ctx context.Context, warehouseID int64, limit int) (*MovementListResult, error)
}

// IdempotencyStore remembers which order an idempotency key produced.
// See idempotency.Store for the Claim contract.
type IdempotencyStore interface {
	Claim(ctx context.Context, key string) (orderID int64, claimed bool, err error)
	Complete(ctx context.Context, key string, orderID int64) error
	Release(ctx context.Context, key string) error
}
