package reputation

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"termtrust/internal/network"
)

// CachedLookup layers a Redis cache over an inner lookup so repeat visitors
// do not re-query the external collaborator. Cache failures fall through to
// the inner lookup; they never surface to the caller.
type CachedLookup struct {
	inner  Lookup
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedLookup(inner Lookup, client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *CachedLookup {
	return &CachedLookup{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func cacheKey(ip string) string {
	// Keyed by hash so raw IPs never land in Redis.
	return "reputation:" + network.HashIP(ip)
}

func (c *CachedLookup) Lookup(ctx context.Context, ip string) (network.Reputation, error) {
	key := cacheKey(ip)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var rep network.Reputation
		if err := json.Unmarshal(raw, &rep); err == nil {
			return rep, nil
		}
	} else if err != redis.Nil && c.logger != nil {
		c.logger.DebugContext(ctx, "reputation cache read failed", "error", err)
	}

	rep, err := c.inner.Lookup(ctx, ip)
	if err != nil {
		return rep, err
	}

	if raw, merr := json.Marshal(rep); merr == nil {
		if serr := c.client.Set(ctx, key, raw, c.ttl).Err(); serr != nil && c.logger != nil {
			c.logger.DebugContext(ctx, "reputation cache write failed", "error", serr)
		}
	}
	return rep, nil
}
