package listing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores calculated fields in Redis so dashboard reads do not hit the
// batch aggregation on every request. All methods tolerate a nil cache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(listingID int64) string {
	return fmt.Sprintf("listing:%d:calculated", listingID)
}

// Get loads cached fields. The second return reports a hit.
func (c *Cache) Get(ctx context.Context, listingID int64) (CalculatedFields, bool, error) {
	if c == nil || c.client == nil {
		return CalculatedFields{}, false, nil
	}
	raw, err := c.client.Get(ctx, cacheKey(listingID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return CalculatedFields{}, false, nil
	}
	if err != nil {
		return CalculatedFields{}, false, err
	}
	var fields CalculatedFields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return CalculatedFields{}, false, err
	}
	return fields, true, nil
}

// Set stores fields under the listing key with the configured TTL.
func (c *Cache) Set(ctx context.Context, listingID int64, fields CalculatedFields) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(listingID), raw, c.ttl).Err()
}

// Invalidate drops the cached entry after a stock-affecting write.
func (c *Cache) Invalidate(ctx context.Context, listingID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, cacheKey(listingID)).Err()
}
