package core_test

import (
	"errors"
	"testing"

	"bulk-orders/internal/core"

	"github.com/shopspring/decimal"
)

func TestValidateShipping_Boundary(t *testing.T) {
	total := decimal.RequireFromString("1500.00")

	tests := []struct {
		shipping string
		wantErr  bool
	}{
		{"0", false},
		{"224.99", false},
		{"225.00", false}, // exactly 15% is allowed
		{"225.01", true},
		{"1000", true},
	}

	for _, tt := range tests {
		err := core.ValidateShipping(total, decimal.RequireFromString(tt.shipping))
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateShipping(1500.00, %s) error = %v, wantErr %v", tt.shipping, err, tt.wantErr)
		}
	}
}

func TestValidateShipping_ErrorDetails(t *testing.T) {
	err := core.ValidateShipping(decimal.RequireFromString("6750.00"), decimal.RequireFromString("1100.00"))
	if !errors.Is(err, core.ErrShippingCostExceeded) {
		t.Fatalf("expected ErrShippingCostExceeded, got %v", err)
	}

	var exceeded *core.ShippingCostExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected *ShippingCostExceededError, got %T", err)
	}
	if !exceeded.Cap.Equal(decimal.RequireFromString("1012.50")) {
		t.Errorf("Cap = %s, want 1012.50", exceeded.Cap)
	}
	if core.IsRetryable(err) {
		t.Errorf("shipping cap violations must not be retryable")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&core.StockChangedError{WarehouseID: 1, Wanted: 6, Available: 4}, true},
		{core.ErrLockTimeout, true},
		{&core.InsufficientStockError{Requested: 5, Shortfall: 5}, false},
		{core.ErrNotFound, false},
		{errors.New("boom"), false},
	}
	for _, tt := range tests {
		if got := core.IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
