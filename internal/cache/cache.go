package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
)

// TagProducts groups every cached product response so a single flush can
// drop all of them after a write.
const TagProducts = "products"

// Randomized TTL window. Spreading expiry avoids a synchronized stampede
// when many keys were populated together.
const (
	ttlMin = 60 * time.Second
	ttlMax = 120 * time.Second
)

// maxCachedPage is the deepest list page worth caching. Deep pages are rarely
// revisited, so caching them only churns memory.
const maxCachedPage = 50

const tagKeyPrefix = "cache_tag:"

// Cache is a tagged response cache over Redis. Every operation fails open:
// when Redis is unreachable the caller's compute function still runs and the
// error is logged, never surfaced.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// New creates a tagged cache backed by the given Redis client.
func New(client *redis.Client, logger *slog.Logger) *Cache {
	return &Cache{client: client, logger: logger}
}

// ItemKey returns the cache key for a single product.
func ItemKey(id string) string {
	return "product_" + id
}

// ListKey derives a deterministic cache key from list/search parameters.
// url.Values.Encode sorts by name and percent-escapes, so equivalent requests
// with different parameter order share one key while free-text values like a
// search query cannot smuggle separators into another parameter's slot.
func ListKey(prefix string, params map[string]string) string {
	values := make(url.Values, len(params))
	for name, value := range params {
		if value == "" {
			continue
		}
		values.Set(name, value)
	}

	sum := sha256.Sum256([]byte(values.Encode()))
	return prefix + "_" + hex.EncodeToString(sum[:16])
}

// ShouldBypass reports whether a list request is too deep to be worth caching.
func ShouldBypass(page int) bool {
	return page > maxCachedPage
}

// randTTL returns a TTL uniformly drawn from [ttlMin, ttlMax).
func randTTL() time.Duration {
	return ttlMin + time.Duration(rand.Int64N(int64(ttlMax-ttlMin))) // #nosec G404 -- jitter, not security
}

// GetOrCompute returns the cached value for key, or runs compute, stores the
// result under key with a randomized TTL, and registers the key under each
// tag. Cache errors are logged and the computed value is returned directly.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, tags []string, compute func(context.Context) (T, error)) (T, error) {
	var zero T

	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var value T
		if err := json.Unmarshal(data, &value); err == nil {
			hits.Inc()
			return value, nil
		}
		// Corrupt entry. Drop it and recompute.
		c.client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "cache read failed, computing directly",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		errorsTotal.WithLabelValues("get").Inc()
		return compute(ctx)
	}

	misses.Inc()

	value, err := compute(ctx)
	if err != nil {
		return zero, err
	}

	c.store(ctx, key, tags, value)
	return value, nil
}

// Get returns the cached value for key. The second return is false on a
// miss, a corrupt entry, or a cache error.
func Get[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var zero T

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "cache read failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			errorsTotal.WithLabelValues("get").Inc()
		} else {
			misses.Inc()
		}
		return zero, false
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		c.client.Del(ctx, key)
		misses.Inc()
		return zero, false
	}

	hits.Inc()
	return value, true
}

// Put stores a value under key with a randomized TTL and registers the key
// under each tag. Best effort.
func (c *Cache) Put(ctx context.Context, key string, tags []string, value any) {
	c.store(ctx, key, tags, value)
}

// store writes a computed value and its tag memberships. Best effort.
func (c *Cache) store(ctx context.Context, key string, tags []string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.WarnContext(ctx, "cache marshal failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}

	ttl := randTTL()
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, data, ttl)
	for _, tag := range tags {
		tagKey := tagKeyPrefix + tag
		pipe.SAdd(ctx, tagKey, key)
		// The tag set must outlive its members or flushes would miss keys.
		pipe.Expire(ctx, tagKey, 2*ttlMax)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
		errorsTotal.WithLabelValues("set").Inc()
	}
}

// Forget removes a single cache entry.
func (c *Cache) Forget(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache forget failed", slog.String("key", key), slog.String("error", err.Error()))
		errorsTotal.WithLabelValues("del").Inc()
	}
}

// FlushTag removes every cache entry registered under the given tag.
func (c *Cache) FlushTag(ctx context.Context, tag string) {
	tagKey := tagKeyPrefix + tag

	keys, err := c.client.SMembers(ctx, tagKey).Result()
	if err != nil {
		c.logger.WarnContext(ctx, "cache tag lookup failed", slog.String("tag", tag), slog.String("error", err.Error()))
		errorsTotal.WithLabelValues("flush").Inc()
		return
	}

	pipe := c.client.TxPipeline()
	if len(keys) > 0 {
		pipe.Del(ctx, keys...)
	}
	pipe.Del(ctx, tagKey)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.WarnContext(ctx, "cache tag flush failed", slog.String("tag", tag), slog.String("error", err.Error()))
		errorsTotal.WithLabelValues("flush").Inc()
		return
	}

	flushes.WithLabelValues(tag).Inc()
	c.logger.DebugContext(ctx, "cache tag flushed",
		slog.String("tag", tag),
		slog.Int("keys", len(keys)),
	)
}

// Ping verifies Redis connectivity, for health checks.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
