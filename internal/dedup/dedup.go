// Package dedup suppresses duplicate webhook deliveries. Telegram retries
// updates it considers unacknowledged, so each update ID is claimed once
// in Redis before processing.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard decides whether an update ID has been seen before. FirstDelivery
// returns true when this process should handle the update.
type Guard interface {
	FirstDelivery(ctx context.Context, updateID int64) (bool, error)
	Close() error
}

// RedisGuard claims update IDs with SET NX so repeat deliveries across
// restarts and replicas are dropped.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisGuard connects to addr and verifies the connection.
func NewRedisGuard(ctx context.Context, addr string, ttl time.Duration) (*RedisGuard, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("dedup: redis ping: %w", err)
	}
	return &RedisGuard{client: client, ttl: ttl}, nil
}

func (g *RedisGuard) FirstDelivery(ctx context.Context, updateID int64) (bool, error) {
	key := fmt.Sprintf("dearie:update:%d", updateID)
	ok, err := g.client.SetNX(ctx, key, 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup: claim update %d: %w", updateID, err)
	}
	return ok, nil
}

func (g *RedisGuard) Close() error {
	return g.client.Close()
}

// NoopGuard treats every delivery as the first one. Used when no Redis
// address is configured.
type NoopGuard struct{}

func (NoopGuard) FirstDelivery(context.Context, int64) (bool, error) { return true, nil }
func (NoopGuard) Close() error                                       { return nil }
