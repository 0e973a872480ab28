// Package testdb gives integration tests a migrated, empty Postgres database.
//
// TEST_DATABASE_URL is used when set (it is wiped on every Open, so never
// point it at a live database). Otherwise a throwaway postgres container is
// started once per test binary; tests are skipped when no container runtime
// is available.
package testdb

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"bulk-orders/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	containerOnce sync.Once
	containerURL  string
	containerErr  error
)

// Open returns a pool on a freshly reset database. The pool is closed when
// the test ends.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		testcontainers.SkipIfProviderIsNotHealthy(t)
		containerOnce.Do(func() {
			containerURL, containerErr = startContainer()
		})
		if containerErr != nil {
			t.Skipf("postgres test container unavailable: %v", containerErr)
		}
		dsn = containerURL
	}

	ctx := context.Background()
	if os.Getenv("TEST_DATABASE_URL") != "" {
		lockShared(t, dsn)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("Failed to parse test database URL: %v", err)
	}
	cfg.MaxConns = 32

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := migrations.Apply(ctx, pool); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	Reset(t, pool)
	return pool
}

// sharedDBLockKey serialises test binaries that share one TEST_DATABASE_URL,
// since go test runs packages in parallel and Reset would wipe a neighbour's data.
const sharedDBLockKey = 7462840

// lockShared holds a session advisory lock until the test ends. The lock
// connection is closed after the test's pool, releasing the lock last.
func lockShared(t *testing.T, dsn string) {
	t.Helper()
	conn, err := pgx.Connect(context.Background(), dsn)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(func() { conn.Close(context.Background()) })
	if _, err := conn.Exec(context.Background(), "SELECT pg_advisory_lock($1)", sharedDBLockKey); err != nil {
		t.Fatalf("Failed to lock test database: %v", err)
	}
}

// Reset empties every application table and restarts id and order number sequences.
func Reset(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `
		TRUNCATE TABLE order_items, orders, inventory_movements, outbox, warehouses RESTART IDENTITY CASCADE;
		ALTER SEQUENCE order_number_seq RESTART WITH 1;
	`)
	if err != nil {
		t.Fatalf("Failed to reset test database: %v", err)
	}
}

// SeedWarehouse inserts one warehouse and returns its id.
func SeedWarehouse(t *testing.T, pool *pgxpool.Pool, name string, lat, lon float64, stock int) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(), `
		INSERT INTO warehouses (name, latitude, longitude, stock)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, name, lat, lon, stock).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to seed warehouse %s: %v", name, err)
	}
	return id
}

// Stock reads the current stock of a warehouse.
func Stock(t *testing.T, pool *pgxpool.Pool, warehouseID int64) int {
	t.Helper()
	var stock int
	if err := pool.QueryRow(context.Background(), `SELECT stock FROM warehouses WHERE id = $1`, warehouseID).Scan(&stock); err != nil {
		t.Fatalf("Failed to read stock for warehouse %d: %v", warehouseID, err)
	}
	return stock
}

// Count runs a SELECT COUNT(*) style query and returns the result.
func Count(t *testing.T, pool *pgxpool.Pool, query string, args ...any) int {
	t.Helper()
	var n int
	if err := pool.QueryRow(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("Count query failed: %v", err)
	}
	return n
}

func startContainer() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("bulk_orders_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90*time.Second),
		),
	)
	if err != nil {
		return "", err
	}
	return pgC.ConnectionString(ctx, "sslmode=disable")
}
