package menu

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cachePayloadPrefix = "user_menus_cache:"
	cacheExpiryPrefix  = "user_menus_cache_expiry:"
)

// Cache keeps the resolved flat menu list for a user within a bounded time
// window so every session bootstrap does not refetch it from the backend.
//
// The key layout (payload and expiry under two dedicated keys) is a stable
// contract; newer versions of the console must keep reading entries written
// by older ones. Cache failures are never fatal: a read failure is a miss, a
// write or clear failure is a logged no-op, and callers fall through to a
// backend fetch.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewCache builds a Cache with the given validity window.
func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, logger: logger, now: time.Now}
}

// TTL exposes the configured validity window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Read returns the cached record set for principal when present and not yet
// expired. Any storage or decoding problem reports a miss.
func (c *Cache) Read(ctx context.Context, principal string) ([]Record, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, cacheExpiryPrefix+principal).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("menu cache read failed", slog.Any("error", err))
		}
		return nil, false
	}
	expiresAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || c.now().UnixMilli() >= expiresAt {
		return nil, false
	}
	payload, err := c.client.Get(ctx, cachePayloadPrefix+principal).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("menu cache read failed", slog.Any("error", err))
		}
		return nil, false
	}
	var records []Record
	if err := json.Unmarshal(payload, &records); err != nil {
		c.logger.Warn("menu cache payload corrupt", slog.Any("error", err))
		return nil, false
	}
	return records, true
}

// Write stores records for principal with an expiry one validity window from
// now, superseding any previous entry.
func (c *Cache) Write(ctx context.Context, principal string, records []Record) {
	if c == nil || c.client == nil {
		return
	}
	payload, err := json.Marshal(records)
	if err != nil {
		c.logger.Warn("menu cache encode failed", slog.Any("error", err))
		return
	}
	expiresAt := c.now().Add(c.ttl).UnixMilli()
	if err := c.client.Set(ctx, cachePayloadPrefix+principal, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("menu cache write failed", slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, cacheExpiryPrefix+principal, strconv.FormatInt(expiresAt, 10), c.ttl).Err(); err != nil {
		c.logger.Warn("menu cache write failed", slog.Any("error", err))
	}
}

// Clear removes the cached entry for principal unconditionally. It runs on
// logout and before any subsequent login so one account can never see another
// account's menus.
func (c *Cache) Clear(ctx context.Context, principal string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, cachePayloadPrefix+principal, cacheExpiryPrefix+principal).Err(); err != nil {
		c.logger.Warn("menu cache clear failed", slog.Any("error", err))
	}
}
