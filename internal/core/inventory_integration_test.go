package core_test

import (
	"context"
	"testing"

	"bulk-orders/internal/core"
	"bulk-orders/internal/testdb"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
)

type InventoryServiceSuite struct {
	suite.Suite
	ctx  context.Context
	pool *pgxpool.Pool
	inv  core.InventoryService
}

func TestInventoryServiceSuite(t *testing.T) {
	suite.Run(t, new(InventoryServiceSuite))
}

func (s *InventoryServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.pool = testdb.Open(s.T())
	s.inv = core.NewInventoryService(s.pool)
}

func (s *InventoryServiceSuite) TestGetWarehouses() {
	la := testdb.SeedWarehouse(s.T(), s.pool, "Los Angeles", 34.0522, -118.2437, 355)
	hk := testdb.SeedWarehouse(s.T(), s.pool, "Hong Kong", 22.3193, 114.1694, 0)

	all, err := s.inv.GetWarehouses(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(la, all[0].ID)
	s.Equal(hk, all[1].ID)
	s.Equal(34.0522, all[0].Location.Latitude)
	s.Equal(355, all[0].Stock)

	stocked, err := s.inv.GetStockedWarehouses(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(stocked, 1)
	s.Equal(la, stocked[0].ID)

	w, err := s.inv.GetWarehouse(s.ctx, hk)
	s.Require().NoError(err)
	s.Equal("Hong Kong", w.Name)

	_, err = s.inv.GetWarehouse(s.ctx, hk+100)
	s.ErrorIs(err, core.ErrNotFound)
}

func (s *InventoryServiceSuite) TestReceiveStock() {
	id := testdb.SeedWarehouse(s.T(), s.pool, "São Paulo", -23.5505, -46.6333, 0)

	w, err := s.inv.ReceiveStock(s.ctx, id, 25, "")
	s.Require().NoError(err)
	s.Equal(25, w.Stock)

	w, err = s.inv.ReceiveStock(s.ctx, id, 5, "cycle count correction")
	s.Require().NoError(err)
	s.Equal(30, w.Stock)
	s.Equal(30, testdb.Stock(s.T(), s.pool, id))

	movements, err := s.inv.GetMovements(s.ctx, id, 0)
	s.Require().NoError(err)
	s.Require().Len(movements, 2)
	s.Equal(core.MovementReceipt, movements[0].MovementType)
	s.Equal(5, movements[0].Quantity)
	s.Equal("cycle count correction", movements[0].Notes)
	s.Nil(movements[0].OrderID)
	s.Equal("Goods receipt: 25 units", movements[1].Notes)
}

func (s *InventoryServiceSuite) TestReceiveStock_Rejects() {
	id := testdb.SeedWarehouse(s.T(), s.pool, "Paris", 48.8566, 2.3522, 10)

	_, err := s.inv.ReceiveStock(s.ctx, id, 0, "")
	s.ErrorIs(err, core.ErrInvalidInput)
	_, err = s.inv.ReceiveStock(s.ctx, id, -3, "")
	s.ErrorIs(err, core.ErrInvalidInput)
	_, err = s.inv.ReceiveStock(s.ctx, id+1, 5, "")
	s.ErrorIs(err, core.ErrNotFound)

	s.Equal(10, testdb.Stock(s.T(), s.pool, id))
	s.Zero(testdb.Count(s.T(), s.pool, `SELECT COUNT(*) FROM inventory_movements`))
}

func (s *InventoryServiceSuite) TestLockWarehousesTx_UnknownID() {
	id := testdb.SeedWarehouse(s.T(), s.pool, "Warsaw", 52.2297, 21.0122, 10)

	tx, err := s.pool.Begin(s.ctx)
	s.Require().NoError(err)
	defer tx.Rollback(s.ctx)

	locked, err := s.inv.LockWarehousesTx(s.ctx, tx, []int64{id, id})
	s.Require().NoError(err)
	s.Len(locked, 1)
	s.Equal(10, locked[id].Stock)

	_, err = s.inv.LockWarehousesTx(s.ctx, tx, []int64{id, id + 50})
	s.ErrorIs(err, core.ErrNotFound)
}
