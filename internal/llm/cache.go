package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "pitchcoach:completion:"

// CacheObserver receives cache hit/miss notifications.
type CacheObserver interface {
	ObserveCache(hit bool)
}

// Cached memoises successful completions in Redis keyed by a hash of the
// prompt. Redis failures are logged and bypassed; errors are never cached.
type Cached struct {
	next     Completer
	rdb      redis.Cmdable
	ttl      time.Duration
	logger   *slog.Logger
	observer CacheObserver
}

func NewCached(next Completer, rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger, observer CacheObserver) *Cached {
	return &Cached{next: next, rdb: rdb, ttl: ttl, logger: logger, observer: observer}
}

// CacheKey returns the Redis key used for prompt.
func CacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func (c *Cached) Complete(ctx context.Context, prompt string) (string, error) {
	key := CacheKey(prompt)

	text, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		c.observe(true)
		return text, nil
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("completion cache read failed", "error", err)
	}
	c.observe(false)

	text, err = c.next.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	if err := c.rdb.Set(ctx, key, text, c.ttl).Err(); err != nil {
		c.logger.Warn("completion cache write failed", "error", err)
	}
	return text, nil
}

func (c *Cached) observe(hit bool) {
	if c.observer != nil {
		c.observer.ObserveCache(hit)
	}
}
