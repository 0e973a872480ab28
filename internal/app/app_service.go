package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"bulk-orders/internal/core"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxAttempts = 3
	retryBaseDelay     = 25 * time.Millisecond
	defaultListLimit   = 100
	maxListLimit       = 1000
)

var tracer = otel.Tracer("bulk-orders/internal/app")

type appService struct {
	log              *slog.Logger
	orderService     core.OrderService
	inventoryService core.InventoryService
	idempotency      IdempotencyStore
	maxAttempts      int
}

// NewAppService constructs an appService that satisfies ApplicationService.
// idem may be nil, in which case idempotency keys are ignored.
func NewAppService(
	log *slog.Logger,
	orderService core.OrderService,
	inventoryService core.InventoryService,
	idem IdempotencyStore,
	maxAttempts int,
) ApplicationService {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &appService{
		log:              log,
		orderService:     orderService,
		inventoryService: inventoryService,
		idempotency:      idem,
		maxAttempts:      maxAttempts,
	}
}

func validateOrderRequest(req OrderRequest) (core.Coordinates, error) {
	if req.Quantity < 1 {
		return core.Coordinates{}, fmt.Errorf("%w: quantity must be at least 1, got %d", core.ErrInvalidInput, req.Quantity)
	}
	dest := core.Coordinates{Latitude: req.Latitude, Longitude: req.Longitude}
	if err := dest.Validate(); err != nil {
		return core.Coordinates{}, err
	}
	return dest, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// VerifyOrder returns a priced quote for the request.
func (s *appService) VerifyOrder(ctx context.Context, req OrderRequest) (res *QuoteResult, err error) {
	ctx, span := tracer.Start(ctx, "app.VerifyOrder", trace.WithAttributes(
		attribute.Int("order.quantity", req.Quantity),
	))
	defer func() { endSpan(span, err) }()

	dest, err := validateOrderRequest(req)
	if err != nil {
		return nil, err
	}
	quote, err := s.orderService.Verify(ctx, req.Quantity, dest)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Bool("quote.valid", quote.Valid))
	return &QuoteResult{Quote: quote}, nil
}

// CreateOrder commits an order, replaying or retrying as needed.
func (s *appService) CreateOrder(ctx context.Context, req CreateOrderRequest) (res *OrderResult, err error) {
	ctx, span := tracer.Start(ctx, "app.CreateOrder", trace.WithAttributes(
		attribute.Int("order.quantity", req.Quantity),
		attribute.Bool("order.idempotent", req.IdempotencyKey != ""),
	))
	defer func() { endSpan(span, err) }()

	dest, err := validateOrderRequest(req.OrderRequest)
	if err != nil {
		return nil, err
	}

	if req.IdempotencyKey == "" || s.idempotency == nil {
		return s.createWithRetry(ctx, req.Quantity, dest)
	}

	existingID, claimed, err := s.idempotency.Claim(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if !claimed {
		if existingID == 0 {
			return nil, ErrRequestInFlight
		}
		order, err := s.orderService.GetOrder(ctx, existingID)
		if err != nil {
			return nil, fmt.Errorf("replay of order %d: %w", existingID, err)
		}
		span.SetAttributes(attribute.Bool("order.replayed", true))
		return &OrderResult{Order: order, Replayed: true}, nil
	}

	// The key must be settled even if the caller has gone away.
	settleCtx := context.WithoutCancel(ctx)
	res, err = s.createWithRetry(ctx, req.Quantity, dest)
	if err != nil {
		if relErr := s.idempotency.Release(settleCtx, req.IdempotencyKey); relErr != nil {
			s.log.Warn("failed to release idempotency key", "key", req.IdempotencyKey, "error", relErr)
		}
		return nil, err
	}
	if cErr := s.idempotency.Complete(settleCtx, req.IdempotencyKey, res.Order.ID); cErr != nil {
		s.log.Warn("failed to record idempotency result", "key", req.IdempotencyKey,
			"order_id", res.Order.ID, "error", cErr)
	}
	return res, nil
}

func (s *appService) createWithRetry(ctx context.Context, quantity int, dest core.Coordinates) (*OrderResult, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		order, err := s.orderService.Create(ctx, quantity, dest)
		if err == nil {
			s.log.Info("order created",
				"order_id", order.ID,
				"order_number", order.OrderNumber,
				"quantity", order.Quantity,
				"total_price", order.TotalPrice.StringFixed(2),
				"shipping_cost", order.ShippingCost.StringFixed(2),
				"attempt", attempt,
			)
			return &OrderResult{Order: order, Attempts: attempt}, nil
		}
		if !core.IsRetryable(err) {
			return nil, err
		}
		lastErr = err
		if attempt == s.maxAttempts {
			break
		}
		s.log.Warn("order create contended, retrying", "attempt", attempt, "error", err)
		if err := sleepCtx(ctx, backoff(attempt)); err != nil {
			return nil, errors.Join(lastErr, err)
		}
	}
	s.log.Error("order create gave up", "attempts", s.maxAttempts, "error", lastErr)
	return nil, lastErr
}

// backoff doubles the base delay per attempt and adds up to one base delay of jitter.
func backoff(attempt int) time.Duration {
	d := retryBaseDelay << (attempt - 1)
	return d + rand.N(retryBaseDelay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// GetOrder returns a single order.
func (s *appService) GetOrder(ctx context.Context, orderID int64) (*OrderResult, error) {
	order, err := s.orderService.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

// ListOrders returns orders, optionally filtered by status.
func (s *appService) ListOrders(ctx context.Context, status string, limit int) (*OrderListResult, error) {
	var filter *core.OrderStatus
	if status != "" {
		parsed, err := core.ParseOrderStatus(status)
		if err != nil {
			return nil, err
		}
		filter = &parsed
	}
	orders, err := s.orderService.GetOrders(ctx, filter, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return &OrderListResult{Orders: orders}, nil
}

// UpdateOrderStatus sets an order's status.
func (s *appService) UpdateOrderStatus(ctx context.Context, orderID int64, status string) (res *OrderResult, err error) {
	ctx, span := tracer.Start(ctx, "app.UpdateOrderStatus", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("order.status", status),
	))
	defer func() { endSpan(span, err) }()

	parsed, err := core.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	order, err := s.orderService.UpdateStatus(ctx, orderID, parsed)
	if err != nil {
		return nil, err
	}
	s.log.Info("order status updated", "order_id", orderID, "status", order.Status)
	return &OrderResult{Order: order}, nil
}

// DeleteOrder removes an order.
func (s *appService) DeleteOrder(ctx context.Context, orderID int64) (err error) {
	ctx, span := tracer.Start(ctx, "app.DeleteOrder", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
	))
	defer func() { endSpan(span, err) }()

	if err := s.orderService.Delete(ctx, orderID); err != nil {
		return err
	}
	s.log.Info("order deleted", "order_id", orderID)
	return nil
}

// ListWarehouses returns all warehouses.
func (s *appService) ListWarehouses(ctx context.Context) (*WarehouseListResult, error) {
	warehouses, err := s.inventoryService.GetWarehouses(ctx)
	if err != nil {
		return nil, err
	}
	return &WarehouseListResult{Warehouses: warehouses}, nil
}

// ReceiveStock adds units to a warehouse.
func (s *appService) ReceiveStock(ctx context.Context, req ReceiveStockRequest) (res *WarehouseResult, err error) {
	ctx, span := tracer.Start(ctx, "app.ReceiveStock", trace.WithAttributes(
		attribute.Int64("warehouse.id", req.WarehouseID),
		attribute.Int("stock.quantity", req.Quantity),
	))
	defer func() { endSpan(span, err) }()

	if req.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1, got %d", core.ErrInvalidInput, req.Quantity)
	}
	w, err := s.inventoryService.ReceiveStock(ctx, req.WarehouseID, req.Quantity, req.Notes)
	if err != nil {
		return nil, err
	}
	s.log.Info("stock received", "warehouse_id", w.ID, "quantity", req.Quantity, "stock", w.Stock)
	return &WarehouseResult{Warehouse: w}, nil
}

// ListMovements returns a warehouse's movement history.
func (s *appService) ListMovements(ctx context.Context, warehouseID int64, limit int) (*MovementListResult, error) {
	movements, err := s.inventoryService.GetMovements(ctx, warehouseID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return &MovementListResult{WarehouseID: warehouseID, Movements: movements}, nil
}
