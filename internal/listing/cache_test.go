package listing

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestCacheRoundTripAndInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)
	ctx := context.Background()

	_, hit, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	require.False(t, hit)

	fields := CalculatedFields{CurrentStock: 42, StockLevelStatus: StockLevelModerate, StockLevelPercentage: 35.5}
	require.NoError(t, cache.Set(ctx, 7, fields))

	got, hit, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, fields, got)

	require.NoError(t, cache.Invalidate(ctx, 7))
	_, hit, err = cache.Get(ctx, 7)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestCacheEntriesExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Second)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 3, CalculatedFields{CurrentStock: 9}))
	mr.FastForward(2 * time.Second)

	_, hit, err := cache.Get(ctx, 3)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestNilCacheIsSafe(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	_, hit, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	require.False(t, hit)
	require.NoError(t, cache.Set(ctx, 1, CalculatedFields{}))
	require.NoError(t, cache.Invalidate(ctx, 1))
}
