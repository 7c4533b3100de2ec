package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const processedTTL = 7 * 24 * time.Hour

// ProcessedCache remembers references whose outcome is final so webhook
// redeliveries and reconciler passes can skip them without touching Postgres
// or Paystack. It is only a shortcut: the database stays authoritative.
type ProcessedCache interface {
	Seen(ctx context.Context, key string) bool
	Mark(ctx context.Context, key, outcome string)
}

type RedisProcessedCache struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisProcessedCache(rdb *redis.Client, prefix string) *RedisProcessedCache {
	return &RedisProcessedCache{rdb: rdb, prefix: prefix}
}

func (c *RedisProcessedCache) Seen(ctx context.Context, key string) bool {
	return c.rdb.Exists(ctx, c.prefix+key).Val() > 0
}

func (c *RedisProcessedCache) Mark(ctx context.Context, key, outcome string) {
	c.rdb.Set(ctx, c.prefix+key, outcome, processedTTL)
}

type noopCache struct{}

func (noopCache) Seen(context.Context, string) bool    { return false }
func (noopCache) Mark(context.Context, string, string) {}
