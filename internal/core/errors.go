package core

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotFound             = errors.New("not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrShippingCostExceeded = errors.New("shipping cost exceeds allowed share of order total")
	ErrStockChanged         = errors.New("stock changed during commit")
	ErrLockTimeout          = errors.New("timed out waiting for warehouse lock")
)

// InsufficientStockError reports how many units could not be allocated.
type InsufficientStockError struct {
	Requested int
	Available int
	Shortfall int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: requested %d, available %d, short by %d",
		e.Requested, e.Available, e.Shortfall)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// ShippingCostExceededError carries the figures behind a rejected allocation.
type ShippingCostExceededError struct {
	ShippingCost decimal.Decimal
	Cap          decimal.Decimal
	TotalPrice   decimal.Decimal
}

func (e *ShippingCostExceededError) Error() string {
	return fmt.Sprintf("shipping cost %s exceeds %s%% of order total %s (cap %s)",
		e.ShippingCost.StringFixed(2), ShippingCostCapRate.Shift(2).String(),
		e.TotalPrice.StringFixed(2), e.Cap.StringFixed(2))
}

func (e *ShippingCostExceededError) Is(target error) bool { return target == ErrShippingCostExceeded }

// StockChangedError is returned when a locked warehouse no longer holds the
// quantity an allocation planned to draw from it.
type StockChangedError struct {
	WarehouseID int64
	Wanted      int
	Available   int
}

func (e *StockChangedError) Error() string {
	return fmt.Sprintf("stock changed for warehouse %d: wanted %d, available %d",
		e.WarehouseID, e.Wanted, e.Available)
}

func (e *StockChangedError) Is(target error) bool { return target == ErrStockChanged }

// IsRetryable reports whether a Create attempt failed for a transient
// concurrency reason and may be retried from scratch.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStockChanged) || errors.Is(err, ErrLockTimeout)
}

// Postgres SQLSTATEs that mean another transaction got there first.
const (
	sqlStateLockNotAvailable     = "55P03"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateSerializationFailure = "40001"
)

// classifyPgError converts lock contention reported by Postgres into ErrLockTimeout
// and leaves every other error untouched.
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateLockNotAvailable, sqlStateDeadlockDetected, sqlStateSerializationFailure:
			return fmt.Errorf("%w: %s", ErrLockTimeout, pgErr.Message)
		}
	}
	return err
}
