package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Store is the relay's view of the outbox table.
type Store interface {
	LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error)
	MarkSent(ctx context.Context, ids []int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
}

// Relay polls the outbox and hands claimed events to a Publisher.
type Relay struct {
	log       *slog.Logger
	store     Store
	publisher Publisher
	relayID   string
	batchSize int
	interval  time.Duration
	lease     time.Duration
}

func NewRelay(log *slog.Logger, store Store, publisher Publisher, relayID string) *Relay {
	return &Relay{
		log:       log.With("relay_id", relayID),
		store:     store,
		publisher: publisher,
		relayID:   relayID,
		batchSize: 100,
		interval:  500 * time.Millisecond,
		lease:     30 * time.Second,
	}
}

// Run polls until ctx is cancelled. It always returns nil.
func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	r.log.Info("relay started", "interval", r.interval.String())
	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay stopping")
			return nil
		case <-t.C:
			if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.log.Error("relay batch failed", "err", err)
			}
		}
	}
}

// RunOnce claims and publishes a single batch. It returns how many events were
// published successfully.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	events, err := r.store.LockBatch(ctx, r.relayID, r.batchSize, r.lease)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	sent := make([]int64, 0, len(events))
	for _, e := range events {
		pubCtx := ContextWithTraceparent(ctx, e.Traceparent)
		if err := r.publisher.Publish(pubCtx, e); err != nil {
			r.log.Warn("outbox publish failed", "event_id", e.ID, "type", e.Type, "attempt", e.RetryCount+1, "err", err)
			if markErr := r.store.MarkFailed(ctx, e.ID, err.Error()); markErr != nil {
				r.log.Error("outbox mark failed error", "event_id", e.ID, "err", markErr)
			}
			continue
		}
		sent = append(sent, e.ID)
	}

	if len(sent) > 0 {
		if err := r.store.MarkSent(ctx, sent); err != nil {
			return 0, err
		}
		r.log.Debug("outbox batch published", "count", len(sent))
	}
	return len(sent), nil
}
