// Package idempotency remembers which order an Idempotency-Key produced so a
// retried create request returns the original order instead of a second one.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// pendingMarker holds a key while the first request for it is still running.
const pendingMarker = "pending"

type Store struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewStore(rdb redis.Cmdable, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("unable to reach redis: %w", err)
	}
	return rdb, nil
}

func (s *Store) Key(idempotencyKey string) string {
	return "idem:order:" + idempotencyKey
}

// Claim reserves key for the caller.
//
//	claimed=true               the caller owns the key and must Complete or Release it
//	claimed=false, orderID>0   a previous request already created orderID
//	claimed=false, orderID=0   another request holding the key is still in flight
func (s *Store) Claim(ctx context.Context, key string) (orderID int64, claimed bool, err error) {
	k := s.Key(key)
	ok, err := s.rdb.SetNX(ctx, k, pendingMarker, s.ttl).Result()
	if err != nil {
		return 0, false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if ok {
		return 0, true, nil
	}

	v, err := s.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; treat as still busy rather than racing.
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if v == pendingMarker {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt idempotency record %q: %w", v, err)
	}
	return id, false, nil
}

// Complete records the order created under key.
func (s *Store) Complete(ctx context.Context, key string, orderID int64) error {
	if err := s.rdb.Set(ctx, s.Key(key), strconv.FormatInt(orderID, 10), s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store idempotency result: %w", err)
	}
	return nil
}

// Release frees key after a failed request so the client may try again.
func (s *Store) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.Key(key)).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}
