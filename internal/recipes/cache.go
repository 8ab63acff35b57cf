package recipes

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erazemk/shramba/internal/model"
)

// DefaultCacheTTL is how long recipe suggestions stay cached.
const DefaultCacheTTL = 24 * time.Hour

// cacheBackend is the subset of redis.Cmdable the cache needs.
type cacheBackend interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Cache memoizes another Finder in Redis. Redis failures are logged and
// fall through to the wrapped finder.
type Cache struct {
	next    Finder
	backend cacheBackend
	ttl     time.Duration
	logger  *slog.Logger
}

// NewCache wraps next with a Redis-backed cache.
func NewCache(next Finder, client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{next: next, backend: client, ttl: ttl, logger: logger}
}

// Find returns cached suggestions or asks the wrapped finder and caches
// a successful, non-empty answer.
func (c *Cache) Find(ctx context.Context, name string, others []string) ([]model.Recipe, error) {
	key := cacheKey(name, others)

	raw, err := c.backend.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []model.Recipe
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		c.logger.Warn("discarding corrupt recipe cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("recipe cache read failed", "error", err)
	}

	recipes, err := c.next.Find(ctx, name, others)
	if err != nil {
		return nil, err
	}

	if len(recipes) == 0 {
		return recipes, nil
	}
	data, err := json.Marshal(recipes)
	if err == nil {
		if err := c.backend.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("recipe cache write failed", "error", err)
		}
	}
	return recipes, nil
}

func cacheKey(name string, others []string) string {
	if len(others) > maxOthers {
		others = others[:maxOthers]
	}
	parts := []string{normalize(name)}
	for _, o := range others {
		parts = append(parts, normalize(o))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, ",")))
	return "shramba:recipes:" + hex.EncodeToString(sum[:12])
}
