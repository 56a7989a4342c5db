//go:build integration

package reputation

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"termtrust/internal/network"
	"termtrust/pkg/testutil/containers"
)

type countingLookup struct {
	rep  network.Reputation
	hits int
}

func (c *countingLookup) Lookup(_ context.Context, _ string) (network.Reputation, error) {
	c.hits++
	return c.rep, nil
}

func TestCachedLookup_Integration(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	inner := &countingLookup{rep: network.Reputation{Country: "Iceland", City: "Reykjavik", ISP: "Ice Fiber", ASN: "AS12345"}}
	cached := NewCachedLookup(inner, rc.Client, time.Minute, slog.Default())

	first, err := cached.Lookup(ctx, "203.0.113.77")
	require.NoError(t, err)
	assert.Equal(t, "Iceland", first.Country)
	assert.Equal(t, 1, inner.hits)

	// Second lookup is served from Redis.
	second, err := cached.Lookup(ctx, "203.0.113.77")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.hits)

	// Raw IPs never appear as keys.
	keys, err := rc.Client.Keys(ctx, "*").Result()
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotContains(t, keys[0], "203.0.113.77")
	assert.Equal(t, "reputation:"+network.HashIP("203.0.113.77"), keys[0])

	// A different address misses.
	_, err = cached.Lookup(ctx, "203.0.113.78")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.hits)
}
