package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InventoryService reads and changes warehouse stock.
type InventoryService interface {
	// Standalone operations (manage their own transactions).
	GetWarehouses(ctx context.Context) ([]Warehouse, error)
	// GetStockedWarehouses returns warehouses with stock > 0. This is the
	// candidate set for allocation; it takes no locks.
	GetStockedWarehouses(ctx context.Context) ([]Warehouse, error)
	GetWarehouse(ctx context.Context, id int64) (*Warehouse, error)
	// ReceiveStock adds qty units to a warehouse and records a RECEIPT movement.
	ReceiveStock(ctx context.Context, warehouseID int64, qty int, notes string) (*Warehouse, error)
	GetMovements(ctx context.Context, warehouseID int64, limit int) ([]StockMovement, error)

	// TX-scoped operations: work within a caller-provided transaction.
	// Used by InventoryTransactionManager to keep stock changes atomic with order inserts.

	// LockWarehousesTx takes FOR UPDATE row locks on ids in ascending order and
	// returns the locked rows keyed by id. A missing id is ErrNotFound.
	LockWarehousesTx(ctx context.Context, tx pgx.Tx, ids []int64) (map[int64]Warehouse, error)
	// ShipStockTx decrements stock for each line and records SHIPMENT movements
	// against orderID. The rows must already be locked by the caller.
	ShipStockTx(ctx context.Context, tx pgx.Tx, orderID int64, lines []AllocationLine) error
}

type inventoryService struct {
	pool *pgxpool.Pool
}

func NewInventoryService(pool *pgxpool.Pool) InventoryService {
	return &inventoryService{pool: pool}
}

const warehouseColumns = `id, name, latitude, longitude, stock, created_at, updated_at`

func scanWarehouse(row pgx.Row, w *Warehouse) error {
	return row.Scan(&w.ID, &w.Name, &w.Location.Latitude, &w.Location.Longitude, &w.Stock, &w.CreatedAt, &w.UpdatedAt)
}

// ── Standalone operations ─────────────────────────────────────────────────────

func (s *inventoryService) GetWarehouses(ctx context.Context) ([]Warehouse, error) {
	return s.queryWarehouses(ctx, `SELECT `+warehouseColumns+` FROM warehouses ORDER BY id`)
}

func (s *inventoryService) GetStockedWarehouses(ctx context.Context) ([]Warehouse, error) {
	return s.queryWarehouses(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE stock > 0 ORDER BY id`)
}

func (s *inventoryService) queryWarehouses(ctx context.Context, query string) ([]Warehouse, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query warehouses: %w", err)
	}
	defer rows.Close()

	var warehouses []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := scanWarehouse(rows, &w); err != nil {
			return nil, fmt.Errorf("failed to scan warehouse: %w", err)
		}
		warehouses = append(warehouses, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating warehouses: %w", err)
	}
	return warehouses, nil
}

func (s *inventoryService) GetWarehouse(ctx context.Context, id int64) (*Warehouse, error) {
	var w Warehouse
	err := scanWarehouse(s.pool.QueryRow(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE id = $1`, id), &w)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: warehouse %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch warehouse %d: %w", id, err)
	}
	return &w, nil
}

func (s *inventoryService) ReceiveStock(ctx context.Context, warehouseID int64, qty int, notes string) (*Warehouse, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: receive quantity must be positive, got %d", ErrInvalidInput, qty)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var w Warehouse
	err = scanWarehouse(tx.QueryRow(ctx, `
		UPDATE warehouses SET stock = stock + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+warehouseColumns,
		qty, warehouseID,
	), &w)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: warehouse %d", ErrNotFound, warehouseID)
		}
		return nil, fmt.Errorf("failed to receive stock: %w", classifyPgError(err))
	}

	if notes == "" {
		notes = fmt.Sprintf("Goods receipt: %d units", qty)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO inventory_movements (warehouse_id, movement_type, quantity, notes)
		VALUES ($1, 'RECEIPT', $2, $3)
	`, warehouseID, qty, notes)
	if err != nil {
		return nil, fmt.Errorf("failed to insert inventory movement: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit goods receipt: %w", err)
	}
	return &w, nil
}

func (s *inventoryService) GetMovements(ctx context.Context, warehouseID int64, limit int) ([]StockMovement, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, warehouse_id, movement_type, quantity, order_id, notes, created_at
		FROM inventory_movements
		WHERE warehouse_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, warehouseID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory movements: %w", err)
	}
	defer rows.Close()

	var movements []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.WarehouseID, &m.MovementType, &m.Quantity, &m.OrderID, &m.Notes, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan inventory movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// ── TX-scoped operations ──────────────────────────────────────────────────────

func (s *inventoryService) LockWarehousesTx(ctx context.Context, tx pgx.Tx, ids []int64) (map[int64]Warehouse, error) {
	// One statement per row so locks are taken strictly in the order given.
	// A single "WHERE id = ANY(...) ORDER BY id FOR UPDATE" does not promise that.
	locked := make(map[int64]Warehouse, len(ids))
	for _, id := range sortedUnique(ids) {
		var w Warehouse
		err := scanWarehouse(tx.QueryRow(ctx,
			`SELECT `+warehouseColumns+` FROM warehouses WHERE id = $1 FOR UPDATE`, id,
		), &w)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: warehouse %d", ErrNotFound, id)
			}
			return nil, fmt.Errorf("failed to lock warehouse %d: %w", id, classifyPgError(err))
		}
		locked[id] = w
	}
	return locked, nil
}

func (s *inventoryService) ShipStockTx(ctx context.Context, tx pgx.Tx, orderID int64, lines []AllocationLine) error {
	for _, line := range lines {
		// The stock >= guard is a backstop; the caller has already rechecked under lock.
		tag, err := tx.Exec(ctx, `
			UPDATE warehouses SET stock = stock - $1, updated_at = NOW()
			WHERE id = $2 AND stock >= $1
		`, line.Quantity, line.WarehouseID)
		if err != nil {
			return fmt.Errorf("failed to deduct stock from warehouse %d: %w", line.WarehouseID, classifyPgError(err))
		}
		if tag.RowsAffected() == 0 {
			return &StockChangedError{WarehouseID: line.WarehouseID, Wanted: line.Quantity}
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO inventory_movements (warehouse_id, movement_type, quantity, order_id, notes)
			VALUES ($1, 'SHIPMENT', $2, $3, $4)
		`, line.WarehouseID, -line.Quantity, orderID,
			fmt.Sprintf("Shipped %d units for order ID %d (%.1f km)", line.Quantity, orderID, line.DistanceKm),
		)
		if err != nil {
			return fmt.Errorf("failed to insert shipment movement for warehouse %d: %w", line.WarehouseID, err)
		}
	}
	return nil
}
