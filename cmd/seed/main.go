// seed restores the default warehouse set and its opening stock.
// With -reset it first deletes every order, movement and outbox row.
//
// Usage: go run ./cmd/seed [-reset]
package main

import (
	"context"
	"flag"
	"log"

	"bulk-orders/internal/config"
	"bulk-orders/internal/db"

	"github.com/joho/godotenv"
)

type warehouseSeed struct {
	name      string
	latitude  float64
	longitude float64
	stock     int
}

var defaultWarehouses = []warehouseSeed{
	{"Los Angeles", 34.0522, -118.2437, 355},
	{"New York", 40.7128, -74.0060, 578},
	{"São Paulo", -23.5505, -46.6333, 265},
	{"Paris", 48.8566, 2.3522, 694},
	{"Warsaw", 52.2297, 21.0122, 245},
	{"Hong Kong", 22.3193, 114.1694, 419},
}

func main() {
	reset := flag.Bool("reset", false, "delete all orders, movements and outbox events before seeding")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	if *reset {
		log.Println("Clearing orders, movements and outbox...")
		_, err = tx.Exec(ctx, `
			TRUNCATE TABLE order_items, orders, inventory_movements, outbox RESTART IDENTITY;
			ALTER SEQUENCE order_number_seq RESTART WITH 1;
		`)
		if err != nil {
			log.Fatalf("Failed to clear order data: %v", err)
		}
	}

	log.Println("Restoring warehouses...")
	for _, w := range defaultWarehouses {
		// Stock is topped up to the default, never lowered; the top-up is
		// recorded as a RECEIPT.
		var id int64
		var previous int
		err := tx.QueryRow(ctx, `
			WITH prev AS (SELECT stock FROM warehouses WHERE name = $1 FOR UPDATE)
			INSERT INTO warehouses (name, latitude, longitude, stock)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (name) DO UPDATE
			  SET latitude   = EXCLUDED.latitude,
			      longitude  = EXCLUDED.longitude,
			      stock      = GREATEST(warehouses.stock, EXCLUDED.stock),
			      updated_at = NOW()
			RETURNING id, COALESCE((SELECT stock FROM prev), 0)`,
			w.name, w.latitude, w.longitude, w.stock,
		).Scan(&id, &previous)
		if err != nil {
			log.Fatalf("Failed to restore warehouse %s: %v", w.name, err)
		}

		if added := w.stock - previous; added > 0 {
			_, err = tx.Exec(ctx, `
				INSERT INTO inventory_movements (warehouse_id, movement_type, quantity, notes)
				VALUES ($1, 'RECEIPT', $2, 'seed')`,
				id, added,
			)
			if err != nil {
				log.Fatalf("Failed to record opening stock for %s: %v", w.name, err)
			}
		}
		log.Printf("  %-12s stock %d", w.name, max(w.stock, previous))
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	log.Println("Seed data restored successfully.")
}
