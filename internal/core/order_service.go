package core

import (
	"context"
	"errors"
	"time"

	"bulk-orders/internal/outbox"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"
)

// OrderService prices, allocates and commits bulk device orders.
type OrderService interface {
	// Verify quotes an order against current stock. It writes nothing and takes
	// no locks, so the quote is advisory. A quote that breaks the shipping cap
	// comes back with Valid=false rather than as an error.
	Verify(ctx context.Context, quantity int, destination Coordinates) (*Quote, error)
	// Create allocates and commits an order. A single attempt is made; callers
	// decide whether to retry errors for which IsRetryable is true.
	Create(ctx context.Context, quantity int, destination Coordinates) (*Order, error)
	// UpdateStatus sets any of the four statuses regardless of the current one.
	UpdateStatus(ctx context.Context, orderID int64, status OrderStatus) (*Order, error)
	// Delete removes an order and its items. Stock is NOT returned to the
	// warehouses: a deleted order's units stay written off.
	Delete(ctx context.Context, orderID int64) error

	// Queries
	GetOrder(ctx context.Context, orderID int64) (*Order, error)
	GetOrders(ctx context.Context, status *OrderStatus, limit int) ([]Order, error)
}

type orderService struct {
	inventory InventoryService
	orders    OrderRepository
	txm       *InventoryTransactionManager
	reads     singleflight.Group
}

func NewOrderService(pool *pgxpool.Pool, inventory InventoryService, orders OrderRepository,
	events outbox.Writer, lockTimeout time.Duration) OrderService {
	return &orderService{
		inventory: inventory,
		orders:    orders,
		txm:       NewInventoryTransactionManager(pool, inventory, orders, events, lockTimeout),
	}
}

// stockedSnapshot coalesces concurrent candidate reads issued by Verify.
// A caller whose ctx ends stops waiting; the shared read keeps running for
// the others.
func (s *orderService) stockedSnapshot(ctx context.Context) ([]Warehouse, error) {
	readCtx := context.WithoutCancel(ctx)
	ch := s.reads.DoChan("stocked-warehouses", func() (any, error) {
		return s.inventory.GetStockedWarehouses(readCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Warehouse), nil
	}
}

func (s *orderService) Verify(ctx context.Context, quantity int, destination Coordinates) (*Quote, error) {
	if quantity <= 0 {
		return nil, errInvalidQuantity(quantity)
	}
	if err := destination.Validate(); err != nil {
		return nil, err
	}

	warehouses, err := s.stockedSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return BuildQuote(quantity, destination, warehouses)
}

func (s *orderService) Create(ctx context.Context, quantity int, destination Coordinates) (*Order, error) {
	if quantity <= 0 {
		return nil, errInvalidQuantity(quantity)
	}
	if err := destination.Validate(); err != nil {
		return nil, err
	}

	// Fresh read: a shared snapshot could be older than this request.
	warehouses, err := s.inventory.GetStockedWarehouses(ctx)
	if err != nil {
		return nil, err
	}

	quote, err := BuildQuote(quantity, destination, warehouses)
	if err != nil {
		return nil, err
	}
	if !quote.Valid {
		return nil, ValidateShipping(quote.TotalPrice, quote.ShippingCost)
	}

	return s.txm.Commit(ctx, quote)
}

func (s *orderService) UpdateStatus(ctx context.Context, orderID int64, status OrderStatus) (*Order, error) {
	status, err := ParseOrderStatus(string(status))
	if err != nil {
		return nil, err
	}

	var updated *Order
	err = s.txm.InTx(ctx, func(tx pgx.Tx) error {
		before, err := s.orders.GetForUpdateTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		updated, err = s.orders.UpdateStatusTx(ctx, tx, orderID, status)
		if err != nil {
			return err
		}

		event := NewOrderEvent(updated)
		event.PreviousStatus = before.Status
		event.Items = nil
		return s.txm.emit(ctx, tx, orderID, outbox.TypeOrderStatusChanged, event)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *orderService) Delete(ctx context.Context, orderID int64) error {
	return s.txm.InTx(ctx, func(tx pgx.Tx) error {
		order, err := s.orders.GetForUpdateTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		// No restock here. Whether a deleted order should give its units back
		// is an open business question; until it is answered the stock stays spent.
		if err := s.orders.DeleteTx(ctx, tx, orderID); err != nil {
			return err
		}
		return s.txm.emit(ctx, tx, orderID, outbox.TypeOrderDeleted, NewOrderEvent(order))
	})
}

func (s *orderService) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	return s.orders.Get(ctx, orderID)
}

func (s *orderService) GetOrders(ctx context.Context, status *OrderStatus, limit int) ([]Order, error) {
	if status != nil {
		parsed, err := ParseOrderStatus(string(*status))
		if err != nil {
			return nil, err
		}
		status = &parsed
	}
	orders, err := s.orders.List(ctx, status, limit)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []Order{}
	}
	return orders, nil
}

// IsClientError reports whether err was caused by the request rather than by
// the system, i.e. retrying the same request cannot succeed.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrShippingCostExceeded)
}
