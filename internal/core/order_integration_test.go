package core_test

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"bulk-orders/internal/core"
	"bulk-orders/internal/outbox"
	"bulk-orders/internal/testdb"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type OrderServiceSuite struct {
	suite.Suite
	ctx       context.Context
	pool      *pgxpool.Pool
	inventory core.InventoryService
	repo      core.OrderRepository
	events    *outbox.PgStore
	svc       core.OrderService
}

func TestOrderServiceSuite(t *testing.T) {
	suite.Run(t, new(OrderServiceSuite))
}

func (s *OrderServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.pool = testdb.Open(s.T())
	s.inventory = core.NewInventoryService(s.pool)
	s.repo = core.NewOrderRepository(s.pool)
	s.events = outbox.NewPgStore(s.pool, 0)
	s.svc = core.NewOrderService(s.pool, s.inventory, s.repo, s.events, core.DefaultLockTimeout)
}

func (s *OrderServiceSuite) requireMoney(want string, got decimal.Decimal, field string) {
	s.T().Helper()
	s.Require().Truef(got.Equal(decimal.RequireFromString(want)), "%s = %s, want %s", field, got, want)
}

func (s *OrderServiceSuite) orderCount() int {
	return testdb.Count(s.T(), s.pool, `SELECT COUNT(*) FROM orders`)
}

func (s *OrderServiceSuite) eventTypes(orderID int64) []string {
	events, err := s.events.ListByAggregate(s.ctx, "order", strconv.FormatInt(orderID, 10))
	s.Require().NoError(err)
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func (s *OrderServiceSuite) TestCreate_AtWarehouseLocation() {
	warsaw := testdb.SeedWarehouse(s.T(), s.pool, "Warsaw", 52.2297, 21.0122, 245)

	order, err := s.svc.Create(s.ctx, 10, core.Coordinates{Latitude: 52.2297, Longitude: 21.0122})
	s.Require().NoError(err)

	s.Equal(core.StatusPending, order.Status)
	s.Regexp(regexp.MustCompile(`^ORD-\d{8}-000001$`), order.OrderNumber)
	s.requireMoney("1500.00", order.TotalPrice, "TotalPrice")
	s.requireMoney("0", order.DiscountAmount, "DiscountAmount")
	s.requireMoney("0", order.ShippingCost, "ShippingCost")
	s.Require().Len(order.Items, 1)
	s.Equal(warsaw, order.Items[0].WarehouseID)
	s.Equal(10, order.Items[0].Quantity)

	s.Equal(235, testdb.Stock(s.T(), s.pool, warsaw))

	stored, err := s.svc.GetOrder(s.ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(order.OrderNumber, stored.OrderNumber)
	s.Require().Len(stored.Items, 1)
	s.Equal("Warsaw", stored.Items[0].WarehouseName)

	movements, err := s.inventory.GetMovements(s.ctx, warsaw, 10)
	s.Require().NoError(err)
	s.Require().Len(movements, 1)
	s.Equal(core.MovementShipment, movements[0].MovementType)
	s.Equal(-10, movements[0].Quantity)
	s.Require().NotNil(movements[0].OrderID)
	s.Equal(order.ID, *movements[0].OrderID)

	s.Equal([]string{outbox.TypeOrderCreated}, s.eventTypes(order.ID))
}

func (s *OrderServiceSuite) TestCreate_FiftyUnitsPricing() {
	testdb.SeedWarehouse(s.T(), s.pool, "Paris", 48.8566, 2.3522, 694)

	order, err := s.svc.Create(s.ctx, 50, core.Coordinates{Latitude: 48.8566, Longitude: 2.3522})
	s.Require().NoError(err)

	s.requireMoney("6750.00", order.TotalPrice, "TotalPrice")
	s.requireMoney("750.00", order.DiscountAmount, "DiscountAmount")
}

func (s *OrderServiceSuite) TestCreate_SpansWarehousesNearestFirst() {
	near := testdb.SeedWarehouse(s.T(), s.pool, "Near", 0, 1, 4)
	far := testdb.SeedWarehouse(s.T(), s.pool, "Far", 0, 3, 100)
	testdb.SeedWarehouse(s.T(), s.pool, "Empty", 0, 0, 0)

	order, err := s.svc.Create(s.ctx, 10, core.Coordinates{})
	s.Require().NoError(err)

	s.Require().Len(order.Items, 2)
	s.Equal(near, order.Items[0].WarehouseID)
	s.Equal(4, order.Items[0].Quantity)
	s.Equal(far, order.Items[1].WarehouseID)
	s.Equal(6, order.Items[1].Quantity)

	itemShipping := order.Items[0].ShippingCost.Add(order.Items[1].ShippingCost)
	s.True(itemShipping.Equal(order.ShippingCost), "order shipping should be the sum of its lines")

	s.Equal(0, testdb.Stock(s.T(), s.pool, near))
	s.Equal(94, testdb.Stock(s.T(), s.pool, far))
}

func (s *OrderServiceSuite) TestCreate_InsufficientStockLeavesNoTrace() {
	a := testdb.SeedWarehouse(s.T(), s.pool, "A", 10, 10, 5)
	b := testdb.SeedWarehouse(s.T(), s.pool, "B", 11, 11, 3)

	_, err := s.svc.Create(s.ctx, 10, core.Coordinates{Latitude: 10, Longitude: 10})

	var stockErr *core.InsufficientStockError
	s.Require().ErrorAs(err, &stockErr)
	s.Equal(2, stockErr.Shortfall)
	s.Equal(8, stockErr.Available)

	s.Zero(s.orderCount())
	s.Equal(5, testdb.Stock(s.T(), s.pool, a))
	s.Equal(3, testdb.Stock(s.T(), s.pool, b))
}

func (s *OrderServiceSuite) TestCreate_ShippingCapRejectedBeforePersistence() {
	w := testdb.SeedWarehouse(s.T(), s.pool, "Equator", 0, 0, 10)

	_, err := s.svc.Create(s.ctx, 1, core.Coordinates{Latitude: 0, Longitude: 90})
	s.Require().ErrorIs(err, core.ErrShippingCostExceeded)
	s.Zero(s.orderCount())
	s.Equal(10, testdb.Stock(s.T(), s.pool, w))
}

func (s *OrderServiceSuite) TestCreate_InvalidInput() {
	testdb.SeedWarehouse(s.T(), s.pool, "A", 0, 0, 10)

	_, err := s.svc.Create(s.ctx, 0, core.Coordinates{})
	s.ErrorIs(err, core.ErrInvalidInput)
	_, err = s.svc.Create(s.ctx, 1, core.Coordinates{Latitude: -91})
	s.ErrorIs(err, core.ErrInvalidInput)
}

func (s *OrderServiceSuite) TestCreate_TwoConcurrentSixUnitOrders() {
	w := testdb.SeedWarehouse(s.T(), s.pool, "Only", 40.7128, -74.0060, 10)
	dest := core.Coordinates{Latitude: 40.7128, Longitude: -74.0060}

	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = s.svc.Create(s.ctx, 6, dest)
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, core.ErrInsufficientStock), errors.Is(err, core.ErrStockChanged):
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, succeeded)
	s.Equal(4, testdb.Stock(s.T(), s.pool, w))
	s.Equal(1, s.orderCount())
}

func (s *OrderServiceSuite) TestCreate_NoOversellUnderConcurrency() {
	ids := []int64{
		testdb.SeedWarehouse(s.T(), s.pool, "A", 0, 0, 20),
		testdb.SeedWarehouse(s.T(), s.pool, "B", 0, 1, 20),
		testdb.SeedWarehouse(s.T(), s.pool, "C", 1, 0, 10),
	}
	const (
		workers  = 20
		perOrder = 5
		total    = 50
	)

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		rejections int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for attempt := 0; attempt < 100; attempt++ {
				_, err := s.svc.Create(s.ctx, perOrder, core.Coordinates{Latitude: 0.5, Longitude: 0.5})
				if core.IsRetryable(err) {
					continue
				}
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, core.ErrInsufficientStock):
					rejections++
				default:
					s.Failf("unexpected error", "%v", err)
				}
				return
			}
			s.Fail("create kept failing with retryable errors")
		}()
	}
	close(start)
	wg.Wait()

	s.Equal(total/perOrder, successes)
	s.Equal(workers-total/perOrder, rejections)

	remaining := 0
	for _, id := range ids {
		stock := testdb.Stock(s.T(), s.pool, id)
		s.GreaterOrEqual(stock, 0)
		remaining += stock
	}
	s.Zero(remaining)

	committed := testdb.Count(s.T(), s.pool, `SELECT COALESCE(SUM(quantity), 0) FROM order_items`)
	s.Equal(total, committed)
	shipped := testdb.Count(s.T(), s.pool, `SELECT COALESCE(-SUM(quantity), 0) FROM inventory_movements WHERE movement_type = 'SHIPMENT'`)
	s.Equal(total, shipped)
	s.Equal(successes, s.orderCount())
}

func (s *OrderServiceSuite) TestCommit_StockChangedAfterQuote() {
	w := testdb.SeedWarehouse(s.T(), s.pool, "A", 0, 0, 10)
	txm := core.NewInventoryTransactionManager(s.pool, s.inventory, s.repo, nil, core.DefaultLockTimeout)

	snapshot, err := s.inventory.GetStockedWarehouses(s.ctx)
	s.Require().NoError(err)
	quote, err := core.BuildQuote(8, core.Coordinates{}, snapshot)
	s.Require().NoError(err)

	_, err = s.pool.Exec(s.ctx, `UPDATE warehouses SET stock = 5 WHERE id = $1`, w)
	s.Require().NoError(err)

	_, err = txm.Commit(s.ctx, quote)
	var changed *core.StockChangedError
	s.Require().ErrorAs(err, &changed)
	s.Equal(w, changed.WarehouseID)
	s.Equal(8, changed.Wanted)
	s.Equal(5, changed.Available)
	s.True(core.IsRetryable(err))

	s.Zero(s.orderCount())
	s.Equal(5, testdb.Stock(s.T(), s.pool, w))
}

func (s *OrderServiceSuite) TestCommit_RejectsInconsistentQuote() {
	testdb.SeedWarehouse(s.T(), s.pool, "A", 0, 0, 10)
	txm := core.NewInventoryTransactionManager(s.pool, s.inventory, s.repo, nil, core.DefaultLockTimeout)

	snapshot, err := s.inventory.GetStockedWarehouses(s.ctx)
	s.Require().NoError(err)
	quote, err := core.BuildQuote(8, core.Coordinates{}, snapshot)
	s.Require().NoError(err)
	quote.Quantity = 9

	_, err = txm.Commit(s.ctx, quote)
	s.ErrorIs(err, core.ErrInvalidInput)
	s.Zero(s.orderCount())
}

func (s *OrderServiceSuite) TestCreate_LockTimeoutIsRetryable() {
	w := testdb.SeedWarehouse(s.T(), s.pool, "Busy", 0, 0, 10)
	svc := core.NewOrderService(s.pool, s.inventory, s.repo, s.events, 150*time.Millisecond)

	holder, err := s.pool.Begin(s.ctx)
	s.Require().NoError(err)
	defer holder.Rollback(s.ctx)
	_, err = holder.Exec(s.ctx, `SELECT id FROM warehouses WHERE id = $1 FOR UPDATE`, w)
	s.Require().NoError(err)

	_, err = svc.Create(s.ctx, 2, core.Coordinates{})
	s.Require().ErrorIs(err, core.ErrLockTimeout)
	s.True(core.IsRetryable(err))

	s.Require().NoError(holder.Rollback(s.ctx))
	s.Zero(s.orderCount())
	s.Equal(10, testdb.Stock(s.T(), s.pool, w))
}

func (s *OrderServiceSuite) TestUpdateStatus_AnyTransitionAllowed() {
	testdb.SeedWarehouse(s.T(), s.pool, "A", 0, 0, 100)
	order, err := s.svc.Create(s.ctx, 5, core.Coordinates{})
	s.Require().NoError(err)

	updated, err := s.svc.UpdateStatus(s.ctx, order.ID, core.StatusCompleted)
	s.Require().NoError(err)
	s.Equal(core.StatusCompleted, updated.Status)

	// Going backwards is not blocked.
	updated, err = s.svc.UpdateStatus(s.ctx, order.ID, "pending")
	s.Require().NoError(err)
	s.Equal(core.StatusPending, updated.Status)
	s.Len(updated.Items, 1)

	_, err = s.svc.UpdateStatus(s.ctx, order.ID, "SHIPPED")
	s.ErrorIs(err, core.ErrInvalidInput)

	_, err = s.svc.UpdateStatus(s.ctx, order.ID+1000, core.StatusCancelled)
	s.ErrorIs(err, core.ErrNotFound)

	s.Equal([]string{
		outbox.TypeOrderCreated,
		outbox.TypeOrderStatusChanged,
		outbox.TypeOrderStatusChanged,
	}, s.eventTypes(order.ID))
}

func (s *OrderServiceSuite) TestDelete_DoesNotRestock() {
	w := testdb.SeedWarehouse(s.T(), s.pool, "A", 0, 0, 100)
	order, err := s.svc.Create(s.ctx, 10, core.Coordinates{})
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Delete(s.ctx, order.ID))

	_, err = s.svc.GetOrder(s.ctx, order.ID)
	s.ErrorIs(err, core.ErrNotFound)
	s.Zero(testdb.Count(s.T(), s.pool, `SELECT COUNT(*) FROM order_items WHERE order_id = $1`, order.ID))
	s.Equal(90, testdb.Stock(s.T(), s.pool, w))

	s.ErrorIs(s.svc.Delete(s.ctx, order.ID), core.ErrNotFound)
	s.Equal([]string{outbox.TypeOrderCreated, outbox.TypeOrderDeleted}, s.eventTypes(order.ID))
}

func (s *OrderServiceSuite) TestVerify_ReadOnlyAndRepeatable() {
	w := testdb.SeedWarehouse(s.T(), s.pool, "A", 10, 10, 40)
	testdb.SeedWarehouse(s.T(), s.pool, "B", 12, 12, 40)
	dest := core.Coordinates{Latitude: 11, Longitude: 11}

	first, err := s.svc.Verify(s.ctx, 60, dest)
	s.Require().NoError(err)
	second, err := s.svc.Verify(s.ctx, 60, dest)
	s.Require().NoError(err)

	s.Equal(first, second)
	s.True(first.Valid)
	s.Len(first.Lines, 2)
	s.Zero(s.orderCount())
	s.Equal(40, testdb.Stock(s.T(), s.pool, w))

	_, err = s.svc.Verify(s.ctx, 81, dest)
	s.ErrorIs(err, core.ErrInsufficientStock)
}

func (s *OrderServiceSuite) TestGetOrders_FilterAndOrdering() {
	testdb.SeedWarehouse(s.T(), s.pool, "A", 0, 0, 100)
	first, err := s.svc.Create(s.ctx, 1, core.Coordinates{})
	s.Require().NoError(err)
	second, err := s.svc.Create(s.ctx, 2, core.Coordinates{})
	s.Require().NoError(err)
	_, err = s.svc.UpdateStatus(s.ctx, first.ID, core.StatusCancelled)
	s.Require().NoError(err)

	all, err := s.svc.GetOrders(s.ctx, nil, 0)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(second.ID, all[0].ID)

	cancelled := core.StatusCancelled
	filtered, err := s.svc.GetOrders(s.ctx, &cancelled, 0)
	s.Require().NoError(err)
	s.Require().Len(filtered, 1)
	s.Equal(first.ID, filtered[0].ID)

	processing := core.StatusProcessing
	none, err := s.svc.GetOrders(s.ctx, &processing, 0)
	s.Require().NoError(err)
	s.NotNil(none)
	s.Empty(none)
}
