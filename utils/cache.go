package utils

import (
	"context"
	"errors"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/gormazar/gormazar-api/metrics"
)

const (
	defaultCacheTTL = 30 * time.Second
	cacheOpTimeout  = 2 * time.Second
)

// Cache is a best-effort Redis cache. A nil *Cache is valid and always misses.
// Calls go through a circuit breaker so an unreachable Redis costs nothing per request.
type Cache struct {
	rc  *redis.Client
	cb  *gobreaker.CircuitBreaker[[]byte]
	ttl time.Duration
}

// NewCache wraps rc. It returns nil when rc is nil.
func NewCache(rc *redis.Client, ttl time.Duration) *Cache {
	if rc == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			Sugar.Warnf("circuit breaker %s: %s -> %s", name, from, to)
			metrics.CacheBreakerState.Set(float64(to))
		},
	})
	return &Cache{rc: rc, cb: cb, ttl: ttl}
}

// GetBytes returns the cached value for key.
func (c *Cache) GetBytes(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	b, err := c.cb.Execute(func() ([]byte, error) {
		b, err := c.rc.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return b, err
	})
	if err != nil || b == nil {
		if err != nil {
			Sugar.Debugf("cache get failed key=%s err=%v", key, err)
		}
		metrics.CacheMisses.Inc()
		return nil, false
	}
	metrics.CacheHits.Inc()
	return b, true
}

// SetJSON marshals v and stores it with the cache TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v interface{}) {
	if c == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	if _, err := c.cb.Execute(func() ([]byte, error) {
		return nil, c.rc.Set(ctx, key, b, c.ttl).Err()
	}); err != nil {
		Sugar.Warnf("cache set failed key=%s err=%v", key, err)
	}
}

// GetJSON decodes a cached value into v.
func (c *Cache) GetJSON(ctx context.Context, key string, v interface{}) bool {
	b, ok := c.GetBytes(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal(b, v) == nil
}

// Delete removes keys. Failures are logged only; entries expire on their own.
func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	if _, err := c.cb.Execute(func() ([]byte, error) {
		return nil, c.rc.Del(ctx, keys...).Err()
	}); err != nil {
		Sugar.Warnf("cache delete failed keys=%v err=%v", keys, err)
	}
}
