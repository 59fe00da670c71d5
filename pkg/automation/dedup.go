package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OccurrenceDeduper is the fast-path check for duplicate event
// deliveries. It is advisory: the unique constraint on the run store
// remains the authority, so a deduper may miss without breaking
// idempotency.
type OccurrenceDeduper interface {
	// Seen records the occurrence and reports whether it was already
	// recorded.
	Seen(ctx context.Context, triggerID, subjectID, occurrenceID string) (bool, error)
}

// RedisDeduper implements OccurrenceDeduper with SET NX and a TTL.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper backed by the given Redis client.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) Seen(ctx context.Context, triggerID, subjectID, occurrenceID string) (bool, error) {
	key := fmt.Sprintf("optiflow:occurrence:%s:%s:%s", triggerID, subjectID, occurrenceID)

	created, err := d.client.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check occurrence in redis: %w", err)
	}

	return !created, nil
}

// NoopDeduper always reports unseen, leaving idempotency entirely to
// the persistence layer.
type NoopDeduper struct{}

func (NoopDeduper) Seen(_ context.Context, _, _, _ string) (bool, error) {
	return false, nil
}
