package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx so reads can run
// inside or outside a transaction.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OrderRepository persists orders and their items.
type OrderRepository interface {
	// InsertTx writes the order header and one item per line inside tx and
	// fills in the generated ids and timestamps.
	InsertTx(ctx context.Context, tx pgx.Tx, order *Order) error
	Get(ctx context.Context, id int64) (*Order, error)
	// List returns orders newest first, optionally filtered by status.
	List(ctx context.Context, status *OrderStatus, limit int) ([]Order, error)
	// GetForUpdateTx reads an order and holds its row lock until tx ends.
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id int64) (*Order, error)
	// UpdateStatusTx overwrites the status with no transition check.
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, id int64, status OrderStatus) (*Order, error)
	// DeleteTx removes the order; items go with it through ON DELETE CASCADE.
	DeleteTx(ctx context.Context, tx pgx.Tx, id int64) error
	// NextOrderNumberTx draws the next ORD-YYYYMMDD-NNNNNN number.
	NextOrderNumberTx(ctx context.Context, tx pgx.Tx) (string, error)
}

type orderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &orderRepository{pool: pool}
}

const orderColumns = `id, order_number, quantity, latitude, longitude,
	total_price, discount_amount, shipping_cost, status, created_at, updated_at`

func scanOrder(row pgx.Row, o *Order) error {
	return row.Scan(&o.ID, &o.OrderNumber, &o.Quantity, &o.Destination.Latitude, &o.Destination.Longitude,
		&o.TotalPrice, &o.DiscountAmount, &o.ShippingCost, &o.Status, &o.CreatedAt, &o.UpdatedAt)
}

func (r *orderRepository) NextOrderNumberTx(ctx context.Context, tx pgx.Tx) (string, error) {
	var seq int64
	var day string
	err := tx.QueryRow(ctx, `SELECT nextval('order_number_seq'), to_char(NOW() AT TIME ZONE 'UTC', 'YYYYMMDD')`).Scan(&seq, &day)
	if err != nil {
		return "", fmt.Errorf("failed to draw order number: %w", err)
	}
	return fmt.Sprintf("ORD-%s-%06d", day, seq%1_000_000), nil
}

func (r *orderRepository) InsertTx(ctx context.Context, tx pgx.Tx, order *Order) error {
	if order.Status == "" {
		order.Status = StatusPending
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO orders (order_number, quantity, latitude, longitude,
		                    total_price, discount_amount, shipping_cost, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, order.OrderNumber, order.Quantity, order.Destination.Latitude, order.Destination.Longitude,
		order.TotalPrice, order.DiscountAmount, order.ShippingCost, string(order.Status),
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, warehouse_id, quantity, shipping_cost)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, order.ID, item.WarehouseID, item.Quantity, item.ShippingCost).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to insert order item for warehouse %d: %w", item.WarehouseID, err)
		}
	}
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id int64) (*Order, error) {
	return getOrder(ctx, r.pool, id, false)
}

func (r *orderRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id int64) (*Order, error) {
	return getOrder(ctx, tx, id, true)
}

func getOrder(ctx context.Context, q pgxQuerier, id int64, forUpdate bool) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var o Order
	if err := scanOrder(q.QueryRow(ctx, query, id), &o); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch order %d: %w", id, err)
	}

	items, err := getOrderItems(ctx, q, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func getOrderItems(ctx context.Context, q pgxQuerier, orderID int64) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.warehouse_id, w.name, oi.quantity, oi.shipping_cost
		FROM order_items oi
		JOIN warehouses w ON w.id = oi.warehouse_id
		WHERE oi.order_id = $1
		ORDER BY oi.id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.WarehouseID, &it.WarehouseName, &it.Quantity, &it.ShippingCost); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *orderRepository) List(ctx context.Context, status *OrderStatus, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	args := []any{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, string(*status))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id int64, status OrderStatus) (*Order, error) {
	tag, err := tx.Exec(ctx, `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", classifyPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	return getOrder(ctx, tx, id, false)
}

func (r *orderRepository) DeleteTx(ctx context.Context, tx pgx.Tx, id int64) error {
	tag, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete order %d: %w", id, classifyPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	return nil
}
