package core_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"bulk-orders/internal/core"
)

// blockingInventory serves GetStockedWarehouses only after release is closed.
type blockingInventory struct {
	core.InventoryService
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingInventory) GetStockedWarehouses(ctx context.Context) ([]core.Warehouse, error) {
	if b.calls.Add(1) == 1 {
		close(b.started)
	}
	<-b.release
	return []core.Warehouse{wh(1, 10, 10, 100)}, nil
}

func TestVerify_CancelledCallerLeavesSharedRead(t *testing.T) {
	inv := &blockingInventory{started: make(chan struct{}), release: make(chan struct{})}
	svc := core.NewOrderService(nil, inv, nil, nil, 0)
	dest := core.Coordinates{Latitude: 10, Longitude: 10}

	type result struct {
		quote *core.Quote
		err   error
	}
	first := make(chan result, 1)
	go func() {
		q, err := svc.Verify(context.Background(), 10, dest)
		first <- result{q, err}
	}()
	<-inv.started

	ctx, cancel := context.WithCancel(context.Background())
	second := make(chan error, 1)
	go func() {
		_, err := svc.Verify(ctx, 10, dest)
		second <- err
	}()
	cancel()

	select {
	case err := <-second:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("cancelled Verify error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled Verify is still waiting on the shared read")
	}

	close(inv.release)
	res := <-first
	if res.err != nil {
		t.Fatalf("Verify failed: %v", res.err)
	}
	if !res.quote.Valid || len(res.quote.Lines) != 1 {
		t.Errorf("unexpected quote %+v", res.quote)
	}
	if n := inv.calls.Load(); n != 1 {
		t.Errorf("GetStockedWarehouses called %d times, want 1", n)
	}
}
