package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	r := redis.NewClient(&redis.Options{Addr: addr})
	_ = r.WithTimeout(2 * time.Second)
	return r
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Seen reports whether an event was already processed by the given service.
func Seen(ctx context.Context, rdb *redis.Client, service, eventID string) (bool, error) {
	return Exists(ctx, rdb, dedupKey(service, eventID))
}

// MarkSeen records an event as processed. Call after the handler succeeds,
// so a failed handling is redelivered instead of silently dropped.
func MarkSeen(ctx context.Context, rdb *redis.Client, service, eventID string) error {
	return rdb.Set(ctx, dedupKey(service, eventID), "1", TTLDedup).Err()
}
