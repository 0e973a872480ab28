package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"bulk-orders/internal/adapters/cli"
	"bulk-orders/internal/adapters/repl"
	webAdapter "bulk-orders/internal/adapters/web"
	"bulk-orders/internal/app"
	"bulk-orders/internal/config"
	"bulk-orders/internal/core"
	"bulk-orders/internal/db"
	"bulk-orders/internal/idempotency"
	"bulk-orders/internal/logging"
	"bulk-orders/internal/outbox"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// token needs no database.
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := printToken(cfg, os.Args[2:], os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	// CLI output goes to stdout; only warnings and errors are logged.
	logger := logging.NewWithWriter(os.Stderr, "warn")

	inventoryService := core.NewInventoryService(pool)
	orderService := core.NewOrderService(pool, inventoryService, core.NewOrderRepository(pool),
		outbox.NewPgStore(pool, cfg.OutboxRetries), cfg.LockTimeout)

	var idem app.IdempotencyStore
	if cfg.RedisURL != "" {
		rdb, err := idempotency.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		idem = idempotency.NewStore(rdb, cfg.IdempotencyTTL)
	}

	svc := app.NewAppService(logger, orderService, inventoryService, idem, cfg.CreateMaxAttempts)
	if len(os.Args) < 2 {
		repl.Run(ctx, svc, bufio.NewReader(os.Stdin), os.Stdout)
		return
	}
	if err := cli.Run(ctx, svc, os.Args[1:], os.Stdout); err != nil {
		pool.Close()
		log.Fatal(err)
	}
}

// printToken mints a bearer token for the HTTP API: app token <subject> [ttl].
func printToken(cfg *config.Config, args []string, out io.Writer) error {
	subject := "cli"
	if len(args) > 0 {
		subject = args[0]
	}
	ttl := time.Hour
	if len(args) > 1 {
		d, err := time.ParseDuration(args[1])
		if err != nil {
			return fmt.Errorf("invalid ttl %q: %w", args[1], err)
		}
		ttl = d
	}
	token, err := webAdapter.IssueToken(cfg.JWTSecret, subject, "operator", ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}
