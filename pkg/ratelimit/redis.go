package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares one counter window per client across replicas.
// On Redis errors it fails open: losing rate limiting briefly is
// better than dropping ingest.
type RedisLimiter struct {
	client *redis.Client
	max    int
	period time.Duration
}

func NewRedisLimiter(client *redis.Client, max int, period time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, max: max, period: period}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, fmt.Errorf("rate limit counter unavailable: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.period).Err(); err != nil {
			return true, fmt.Errorf("rate limit expiry failed: %w", err)
		}
	}
	return count <= int64(l.max), nil
}
