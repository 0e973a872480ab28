package repl

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"bulk-orders/internal/app"
	"bulk-orders/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubApp struct {
	app.ApplicationService
	creates  []app.CreateOrderRequest
	failures int
	valid    bool
}

func (s *stubApp) VerifyOrder(_ context.Context, req app.OrderRequest) (*app.QuoteResult, error) {
	return &app.QuoteResult{Quote: &core.Quote{
		Quantity:      req.Quantity,
		Destination:   core.Coordinates{Latitude: req.Latitude, Longitude: req.Longitude},
		BasePrice:     decimal.NewFromInt(int64(req.Quantity) * 150),
		TotalPrice:    decimal.NewFromInt(int64(req.Quantity) * 150),
		Valid:         s.valid,
		InvalidReason: "shipping too expensive",
	}}, nil
}

func (s *stubApp) CreateOrder(_ context.Context, req app.CreateOrderRequest) (*app.OrderResult, error) {
	s.creates = append(s.creates, req)
	if s.failures > 0 {
		s.failures--
		return nil, core.ErrLockTimeout
	}
	return &app.OrderResult{Order: &core.Order{ID: 1, OrderNumber: "ORD-20260101-000001", Quantity: req.Quantity}}, nil
}

func (s *stubApp) ListWarehouses(context.Context) (*app.WarehouseListResult, error) {
	return &app.WarehouseListResult{Warehouses: []core.Warehouse{{ID: 1, Name: "Warsaw", Stock: 245}}}, nil
}

func run(svc app.ApplicationService, input string) string {
	var out bytes.Buffer
	Run(context.Background(), svc, bufio.NewReader(strings.NewReader(input)), &out)
	return out.String()
}

func TestRun_DispatchesCommandsAndExits(t *testing.T) {
	out := run(&stubApp{}, "stock\n/bogus\nexit\n")
	assert.Contains(t, out, "Warsaw")
	assert.Contains(t, out, "Error: unknown command: bogus")
	assert.Contains(t, out, "Goodbye!")
}

func TestRun_EndsAtEOF(t *testing.T) {
	out := run(&stubApp{}, "stock")
	assert.Contains(t, out, "Warsaw")
}

func TestOrderWizard_RetryReusesKey(t *testing.T) {
	svc := &stubApp{valid: true, failures: 1}
	out := run(svc, "/order\nzero\n10\n52.2\n21.0\ny\ny\nexit\n")

	assert.Contains(t, out, "Enter a whole number")
	assert.Contains(t, out, "Order FAILED")
	assert.Contains(t, out, "ORD-20260101-000001")
	require.Len(t, svc.creates, 2)
	assert.NotEmpty(t, svc.creates[0].IdempotencyKey)
	assert.Equal(t, svc.creates[0].IdempotencyKey, svc.creates[1].IdempotencyKey)
}

func TestOrderWizard_InvalidQuoteIsNotCreated(t *testing.T) {
	svc := &stubApp{valid: false}
	out := run(svc, "/order\n1\n-33.9\n151.2\nexit\n")

	assert.Contains(t, out, "INVALID: shipping too expensive")
	assert.Contains(t, out, "Order not created.")
	assert.Empty(t, svc.creates)
}

func TestOrderWizard_Cancel(t *testing.T) {
	svc := &stubApp{valid: true}
	out := run(svc, "/order\n5\ncancel\nexit\n")
	assert.Contains(t, out, "Order creation cancelled.")
	assert.Empty(t, svc.creates)
}
