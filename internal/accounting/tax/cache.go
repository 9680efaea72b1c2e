package tax

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheNamespace = "ledger:vat"

// Cache stores generated VAT summaries in Redis behind a per-tenant version counter.
// Bumping the version orphans every key of the tenant; TTL reclaims them.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func versionKey(tenantID int64) string {
	return fmt.Sprintf("%s:version:%d", cacheNamespace, tenantID)
}

// Version returns the tenant's cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context, tenantID int64) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey(tenantID)).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, versionKey(tenantID), 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, versionKey(tenantID)).Int64()
	}
	return ver, err
}

// BuildKey composes the summary key with the tenant's current version.
func (c *Cache) BuildKey(ctx context.Context, tenantID int64, periodCode string) (string, error) {
	ver, err := c.Version(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return strings.Join([]string{cacheNamespace, fmt.Sprint(tenantID), periodCode, fmt.Sprintf("v%d", ver)}, ":"), nil
}

// FetchJSON loads a cached value or populates it using the loader.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("tax: cache loader required")
	}
	if c != nil && c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, redis.Nil) {
			return err
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c != nil && c.client != nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates every cached summary of the tenant.
func (c *Cache) Bump(ctx context.Context, tenantID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(tenantID)).Err()
}
