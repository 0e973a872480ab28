package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	webAdapter "bulk-orders/internal/adapters/web"
	"bulk-orders/internal/app"
	"bulk-orders/internal/config"
	"bulk-orders/internal/core"
	"bulk-orders/internal/db"
	"bulk-orders/internal/idempotency"
	"bulk-orders/internal/logging"
	"bulk-orders/internal/outbox"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.RequireDatabase(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// run owns every connection it opens; all of them are closed before it returns.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()

	events := outbox.NewPgStore(pool, cfg.OutboxRetries)
	inventoryService := core.NewInventoryService(pool)
	orderRepo := core.NewOrderRepository(pool)
	orderService := core.NewOrderService(pool, inventoryService, orderRepo, events, cfg.LockTimeout)

	var idem app.IdempotencyStore
	if cfg.RedisURL != "" {
		rdb, err := idempotency.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		idem = idempotency.NewStore(rdb, cfg.IdempotencyTTL)
	} else {
		logger.Warn("REDIS_URL is not set; Idempotency-Key headers will be ignored")
	}

	// Broker errors surface before anything starts listening.
	publisher, closer, err := newPublisher(cfg)
	if err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	if publisher != nil {
		defer closer.Close()
	} else {
		logger.Warn("no broker configured (KAFKA_ADDR / AMQP_URL); order events stay in the outbox")
	}

	svc := app.NewAppService(logger, orderService, inventoryService, idem, cfg.CreateMaxAttempts)

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET is not set; mutating routes are unauthenticated")
	}
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           webAdapter.NewHandler(logger, svc, cfg.AllowedOrigins, cfg.JWTSecret),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if publisher != nil {
		relay := outbox.NewRelay(logger, events, publisher, "relay-"+uuid.NewString())
		g.Go(func() error { return relay.Run(gctx) })
	}

	return g.Wait()
}

// newPublisher picks Kafka when KAFKA_ADDR is set, else RabbitMQ when AMQP_URL is set.
// It returns a nil Publisher when neither is configured.
func newPublisher(cfg *config.Config) (outbox.Publisher, io.Closer, error) {
	switch {
	case cfg.KafkaAddr != "":
		w := outbox.NewKafkaWriter(strings.Split(cfg.KafkaAddr, ",")...)
		return outbox.NewKafkaPublisher(w, cfg.OutboxTopic), w, nil
	case cfg.AMQPURL != "":
		conn, ch, err := outbox.DialAMQP(cfg.AMQPURL, cfg.OutboxTopic)
		if err != nil {
			return nil, nil, err
		}
		return outbox.NewAMQPPublisher(ch, cfg.OutboxTopic), conn, nil
	default:
		return nil, nil, nil
	}
}
