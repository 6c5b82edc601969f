package ledger

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

const (
	cacheVersionKey = "ledger:version"
	cachePrefix     = "ledger:raw"
)

// Cache keeps raw upstream ledger bodies in Redis under versioned keys so a
// single Bump invalidates everything.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
		if err := c.client.Set(ctx, cacheVersionKey, ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}

// BuildKey digests the parts and appends the current version.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	digest := blake2b.Sum256([]byte(strings.Join(parts, "\x00")))
	base := cachePrefix + ":" + hex.EncodeToString(digest[:16])
	if c == nil || c.client == nil {
		return base, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", base, ver), nil
}

// FetchBytes returns the cached body for key or populates it with loader.
// Loader errors are never cached.
func (c *Cache) FetchBytes(ctx context.Context, key string, loader func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	if loader == nil {
		return nil, false, errors.New("ledger cache: loader required")
	}
	if c == nil || c.client == nil {
		body, err := loader(ctx)
		return body, false, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return payload, true, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, false, err
	}
	body, err := loader(ctx)
	if err != nil {
		return nil, false, err
	}
	if err := c.client.Set(ctx, key, body, c.ttl).Err(); err != nil {
		return nil, false, err
	}
	return body, false, nil
}

// Bump invalidates every cached payload by incrementing the shared version.
// Incr is atomic, so concurrent bumps from any process only move it forward.
func (c *Cache) Bump(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	// Initialise first so a bump on a fresh store still moves past version 1.
	if _, err := c.Version(ctx); err != nil {
		return 0, err
	}
	return c.client.Incr(ctx, cacheVersionKey).Result()
}
