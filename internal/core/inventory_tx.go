package core

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"bulk-orders/internal/outbox"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultLockTimeout bounds how long a commit waits for a warehouse row lock.
const DefaultLockTimeout = 2 * time.Second

// InventoryTransactionManager turns a Quote into an Order in one database
// transaction:
//
//	BEGIN (READ COMMITTED)
//	SET LOCAL lock_timeout
//	SELECT ... FOR UPDATE   each allocated warehouse, ascending id
//	recheck stock           StockChangedError if any line no longer fits
//	INSERT order + items, UPDATE stock, INSERT movements + outbox event
//	COMMIT
//
// Any failure rolls the whole transaction back, so a failed attempt leaves no
// order row and no stock change behind.
type InventoryTransactionManager struct {
	pool        *pgxpool.Pool
	inventory   InventoryService
	orders      OrderRepository
	events      outbox.Writer
	lockTimeout time.Duration
}

// NewInventoryTransactionManager wires the manager. events may be nil, in which
// case no outbox rows are written.
func NewInventoryTransactionManager(pool *pgxpool.Pool, inventory InventoryService, orders OrderRepository,
	events outbox.Writer, lockTimeout time.Duration) *InventoryTransactionManager {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &InventoryTransactionManager{
		pool:        pool,
		inventory:   inventory,
		orders:      orders,
		events:      events,
		lockTimeout: lockTimeout,
	}
}

// Commit persists quote as a PENDING order and decrements stock for each of
// its lines. The quote must be valid and its lines must cover its quantity.
func (m *InventoryTransactionManager) Commit(ctx context.Context, quote *Quote) (*Order, error) {
	if err := checkCommittable(quote); err != nil {
		return nil, err
	}

	var order *Order
	err := m.InTx(ctx, func(tx pgx.Tx) error {
		ids := make([]int64, 0, len(quote.Lines))
		for _, l := range quote.Lines {
			ids = append(ids, l.WarehouseID)
		}

		locked, err := m.inventory.LockWarehousesTx(ctx, tx, ids)
		if err != nil {
			return err
		}
		for _, l := range quote.Lines {
			if w := locked[l.WarehouseID]; w.Stock < l.Quantity {
				return &StockChangedError{WarehouseID: l.WarehouseID, Wanted: l.Quantity, Available: w.Stock}
			}
		}

		number, err := m.orders.NextOrderNumberTx(ctx, tx)
		if err != nil {
			return err
		}

		order = &Order{
			OrderNumber:    number,
			Quantity:       quote.Quantity,
			Destination:    quote.Destination,
			TotalPrice:     quote.TotalPrice,
			DiscountAmount: quote.DiscountAmount,
			ShippingCost:   quote.ShippingCost,
			Status:         StatusPending,
			Items:          make([]OrderItem, 0, len(quote.Lines)),
		}
		for _, l := range quote.Lines {
			order.Items = append(order.Items, OrderItem{
				WarehouseID:   l.WarehouseID,
				WarehouseName: l.WarehouseName,
				Quantity:      l.Quantity,
				ShippingCost:  l.ShippingCost,
			})
		}

		if err := m.orders.InsertTx(ctx, tx, order); err != nil {
			return err
		}
		if err := m.inventory.ShipStockTx(ctx, tx, order.ID, quote.Lines); err != nil {
			return err
		}
		return m.emit(ctx, tx, order.ID, outbox.TypeOrderCreated, NewOrderEvent(order))
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// InTx runs fn in a READ COMMITTED transaction with lock_timeout applied.
// fn's error rolls the transaction back and is returned with Postgres lock
// contention mapped to ErrLockTimeout.
func (m *InventoryTransactionManager) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	timeout := strconv.FormatInt(m.lockTimeout.Milliseconds(), 10) + "ms"
	if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, timeout); err != nil {
		return fmt.Errorf("failed to set lock timeout: %w", err)
	}

	if err := fn(tx); err != nil {
		return classifyPgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", classifyPgError(err))
	}
	return nil
}

func (m *InventoryTransactionManager) emit(ctx context.Context, tx pgx.Tx, orderID int64, eventType string, payload any) error {
	if m.events == nil {
		return nil
	}
	e, err := outbox.NewEvent(ctx, "order", strconv.FormatInt(orderID, 10), eventType, payload)
	if err != nil {
		return err
	}
	return m.events.InsertTx(ctx, tx, e)
}

// checkCommittable re-runs the checks a quote passed when it was built so a
// stale or hand-built quote cannot reach the database.
func checkCommittable(q *Quote) error {
	if q == nil {
		return fmt.Errorf("%w: nil quote", ErrInvalidInput)
	}
	if q.Quantity <= 0 {
		return errInvalidQuantity(q.Quantity)
	}
	if len(q.Lines) == 0 {
		return fmt.Errorf("%w: quote has no allocation lines", ErrInvalidInput)
	}
	sum := 0
	for _, l := range q.Lines {
		if l.Quantity <= 0 {
			return fmt.Errorf("%w: allocation line for warehouse %d has quantity %d", ErrInvalidInput, l.WarehouseID, l.Quantity)
		}
		sum += l.Quantity
	}
	if sum != q.Quantity {
		return fmt.Errorf("%w: allocation lines sum to %d, order quantity is %d", ErrInvalidInput, sum, q.Quantity)
	}
	return ValidateShipping(q.TotalPrice, q.ShippingCost)
}

// sortedUnique returns ids in ascending order without duplicates. Ascending id
// is the lock order every transaction uses.
func sortedUnique(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
