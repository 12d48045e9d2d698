package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Limiter is a fixed-window request counter keyed by an arbitrary string.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Config describes one window
type Config struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// PasswordResetConfig bounds self-service reset requests per email address.
func PasswordResetConfig() Config {
	return Config{RequestsPerWindow: 3, WindowDuration: 15 * time.Minute}
}

// RedisLimiter shares counters across instances through Redis.
type RedisLimiter struct {
	redis  *redis.Client
	config Config
	prefix string
}

func NewRedisLimiter(client *redis.Client, config Config, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{redis: client, config: config, prefix: prefix}
}

// Allow fails open on Redis errors: the request is allowed and the error returned for logging.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	count, err := l.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, redisKey, l.config.WindowDuration).Err(); err != nil {
			return true, fmt.Errorf("redis error: %w", err)
		}
	}

	return count <= int64(l.config.RequestsPerWindow), nil
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is the single-instance fallback used when no Redis is configured.
type MemoryLimiter struct {
	mu      sync.Mutex
	config  Config
	windows *expirable.LRU[string, *window]
	now     func() time.Time
}

func NewMemoryLimiter(config Config) *MemoryLimiter {
	return &MemoryLimiter{
		config:  config,
		windows: expirable.NewLRU[string, *window](10000, nil, config.WindowDuration),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows.Get(key)
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.config.WindowDuration)}
		l.windows.Add(key, w)
	}
	w.count++
	return w.count <= l.config.RequestsPerWindow, nil
}
