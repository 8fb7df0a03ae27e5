// Package ratelimit provides fixed-window counters keyed by caller identity.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Limiter interface {
	// Allow records one hit for key and reports whether it is within the limit.
	Allow(ctx context.Context, key string) (bool, error)
}

type window struct {
	start time.Time
	count int
}

type MemoryLimiter struct {
	mu     sync.Mutex
	limit  int
	period time.Duration
	now    func() time.Time
	hits   map[string]window
}

func NewMemoryLimiter(limit int, period time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:  limit,
		period: period,
		now:    time.Now,
		hits:   make(map[string]window),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.hits[key]
	if w.start.IsZero() || now.Sub(w.start) >= l.period {
		w = window{start: now}
	}
	w.count++
	l.hits[key] = w

	if len(l.hits) > 10000 {
		for k, v := range l.hits {
			if now.Sub(v.start) >= l.period {
				delete(l.hits, k)
			}
		}
	}
	return w.count <= l.limit, nil
}

// RedisLimiter shares counters across processes with INCR and a window-long EXPIRE.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	period time.Duration
}

func NewRedisLimiter(client redis.UniversalClient, prefix string, limit int, period time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, limit: limit, period: period}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)
	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.period).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(l.limit), nil
}
