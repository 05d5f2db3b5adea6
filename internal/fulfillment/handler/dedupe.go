package handler

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const processedEventKeyPrefix = "webhook:event:"

// RedisDeduper remembers payment event ids that were fully processed.
// Fulfillment is idempotent without it; it only saves work on redelivery.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	err := d.client.Get(ctx, processedEventKeyPrefix+eventID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *RedisDeduper) MarkProcessed(ctx context.Context, eventID string) error {
	return d.client.Set(ctx, processedEventKeyPrefix+eventID, "1", d.ttl).Err()
}
