package main

import (
	"context"
	"log"
	"time"

	"bulk-orders/internal/config"
	"bulk-orders/internal/db"
	"bulk-orders/migrations"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[CONFIG] %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, 2)
	if err != nil {
		log.Fatalf("[CONNECT] %v", err)
	}
	defer pool.Close()
	log.Println("[CONNECT] success")

	all, err := migrations.Discover()
	if err != nil {
		log.Fatalf("[DISCOVER] %v", err)
	}
	log.Printf("[DISCOVER] %d embedded migrations", len(all))

	applied, err := migrations.Apply(ctx, pool)
	for _, f := range applied {
		log.Printf("[APPLY] %s", f)
	}
	if err != nil {
		log.Fatalf("[ERROR] %v", err)
	}
	if len(applied) == 0 {
		log.Println("[SKIP] schema is up to date")
	}

	log.Println("[DONE] All migrations processed.")
}
