package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultMaxRetries is how many failed publish attempts an event gets before it
// is parked in the failed state.
const DefaultMaxRetries = 10

// PgStore keeps outbox rows in Postgres.
type PgStore struct {
	pool       *pgxpool.Pool
	maxRetries int
}

func NewPgStore(pool *pgxpool.Pool, maxRetries int) *PgStore {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &PgStore{pool: pool, maxRetries: maxRetries}
}

func (s *PgStore) InsertTx(ctx context.Context, tx pgx.Tx, e Event) error {
	headers := e.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')
	`, e.AggregateType, e.AggregateID, e.Type, e.Payload, headers, e.Traceparent)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event %s: %w", e.Type, err)
	}
	return nil
}

// LockBatch claims up to batchSize publishable events for relayID. Rows held by
// another relay are skipped; rows whose lease has run out are reclaimed.
func (s *PgStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, type, payload, headers, traceparent, retry_count, created_at
		FROM outbox
		WHERE status = 'pending'
		   OR (status = 'in_progress' AND lease_until < NOW())
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to select outbox batch: %w", err)
	}

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.Type, &e.Payload,
			&e.Headers, &e.Traceparent, &e.RetryCount, &e.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		e.Status = StatusInProgress
		e.RelayID = relayID
		events = append(events, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox rows: %w", err)
	}
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	_, err = tx.Exec(ctx, `
		UPDATE outbox
		SET status = 'in_progress', relay_id = $1, lease_until = NOW() + make_interval(secs => $2)
		WHERE id = ANY($3)
	`, relayID, lease.Seconds(), ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lease outbox batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit outbox lease: %w", err)
	}
	return events, nil
}

func (s *PgStore) MarkSent(ctx context.Context, ids []int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET status = 'sent', lease_until = NULL WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("failed to mark outbox events sent: %w", err)
	}
	return nil
}

// MarkFailed records a publish failure. The event goes back to pending until
// it has failed maxRetries times, after which it stays failed.
func (s *PgStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox
		SET retry_count = retry_count + 1,
		    last_error  = $2,
		    lease_until = NULL,
		    status      = CASE WHEN retry_count + 1 >= $3 THEN 'failed' ELSE 'pending' END
		WHERE id = $1
	`, id, errMsg, s.maxRetries)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event %d failed: %w", id, err)
	}
	return nil
}

// ListByAggregate returns the events recorded for one aggregate, oldest first.
func (s *PgStore) ListByAggregate(ctx context.Context, aggregateType, aggregateID string) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, type, payload, headers, traceparent,
		       status, COALESCE(relay_id, ''), retry_count, last_error, created_at
		FROM outbox
		WHERE aggregate_type = $1 AND aggregate_id = $2
		ORDER BY id
	`, aggregateType, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.Type, &e.Payload, &e.Headers,
			&e.Traceparent, &e.Status, &e.RelayID, &e.RetryCount, &e.LastError, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
