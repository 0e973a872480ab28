package core_test

import (
	"errors"
	"reflect"
	"testing"

	"bulk-orders/internal/core"

	"github.com/shopspring/decimal"
)

func TestBuildQuote_AtWarehouseLocation(t *testing.T) {
	warehouses := []core.Warehouse{wh(1, 48.8566, 2.3522, 694), wh(2, 52.2297, 21.0122, 245)}

	q, err := core.BuildQuote(10, warehouses[0].Location, warehouses)
	if err != nil {
		t.Fatalf("BuildQuote failed: %v", err)
	}
	if !q.Valid {
		t.Errorf("expected valid quote, got reason %q", q.InvalidReason)
	}
	if !q.ShippingCost.IsZero() {
		t.Errorf("ShippingCost = %s, want 0", q.ShippingCost)
	}
	if !q.BasePrice.Equal(decimal.RequireFromString("1500.00")) || !q.TotalPrice.Equal(q.BasePrice) {
		t.Errorf("BasePrice/TotalPrice = %s/%s, want 1500.00/1500.00", q.BasePrice, q.TotalPrice)
	}
	if !q.DiscountAmount.IsZero() {
		t.Errorf("DiscountAmount = %s, want 0", q.DiscountAmount)
	}
}

func TestBuildQuote_FiftyUnits(t *testing.T) {
	warehouses := []core.Warehouse{wh(1, 0, 0, 100)}

	q, err := core.BuildQuote(50, core.Coordinates{}, warehouses)
	if err != nil {
		t.Fatalf("BuildQuote failed: %v", err)
	}
	if !q.BasePrice.Equal(decimal.RequireFromString("7500.00")) ||
		!q.DiscountAmount.Equal(decimal.RequireFromString("750.00")) ||
		!q.TotalPrice.Equal(decimal.RequireFromString("6750.00")) {
		t.Errorf("unexpected pricing: base %s discount %s total %s", q.BasePrice, q.DiscountAmount, q.TotalPrice)
	}
}

func TestBuildQuote_ShippingCapMakesQuoteInvalid(t *testing.T) {
	// A single unit shipped a quarter of the way round the planet costs far more
	// than 15% of 150.00.
	warehouses := []core.Warehouse{wh(1, 0, 0, 10)}

	q, err := core.BuildQuote(1, core.Coordinates{Latitude: 0, Longitude: 90}, warehouses)
	if err != nil {
		t.Fatalf("BuildQuote should not fail on a capped quote: %v", err)
	}
	if q.Valid {
		t.Fatalf("expected invalid quote, shipping %s on total %s", q.ShippingCost, q.TotalPrice)
	}
	if q.InvalidReason == "" {
		t.Errorf("expected an invalid reason")
	}
	if len(q.Lines) != 1 {
		t.Errorf("invalid quote should still carry its allocation, got %d lines", len(q.Lines))
	}
}

func TestBuildQuote_InsufficientStockIsAnError(t *testing.T) {
	_, err := core.BuildQuote(20, core.Coordinates{}, []core.Warehouse{wh(1, 0, 0, 5)})
	if !errors.Is(err, core.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
}

func TestBuildQuote_RejectsBadInput(t *testing.T) {
	warehouses := []core.Warehouse{wh(1, 0, 0, 5)}
	if _, err := core.BuildQuote(0, core.Coordinates{}, warehouses); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("quantity 0: expected ErrInvalidInput, got %v", err)
	}
	if _, err := core.BuildQuote(1, core.Coordinates{Latitude: 91}, warehouses); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("latitude 91: expected ErrInvalidInput, got %v", err)
	}
}

func TestBuildQuote_Deterministic(t *testing.T) {
	warehouses := []core.Warehouse{
		wh(1, 34.0522, -118.2437, 355),
		wh(2, 40.7128, -74.0060, 578),
		wh(3, -23.5505, -46.6333, 265),
	}
	dest := core.Coordinates{Latitude: 39.7392, Longitude: -104.9903}

	first, err := core.BuildQuote(700, dest, warehouses)
	if err != nil {
		t.Fatalf("BuildQuote failed: %v", err)
	}
	second, err := core.BuildQuote(700, dest, warehouses)
	if err != nil {
		t.Fatalf("BuildQuote failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical inputs produced different quotes:\n%+v\n%+v", first, second)
	}
	if warehouses[0].Stock != 355 {
		t.Errorf("BuildQuote must not modify its input")
	}
}
