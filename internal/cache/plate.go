package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Cache key prefixes and TTLs.
const (
	plateKeyPrefix    = "plate:"
	negCacheKeySuffix = ":neg"

	// DefaultPlateTTL is the TTL for cached plate ownership data.
	DefaultPlateTTL = 24 * time.Hour

	// NegativeCacheTTL is the TTL for negative cache entries.
	NegativeCacheTTL = 5 * time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// PlateOwner is the cached resolution of a plate number to its owner.
// It carries everything the send path needs without touching Postgres.
type PlateOwner struct {
	PlateID     int64
	Number      string
	OwnerID     int64
	OwnerChatID int64
}

// GetPlateOwner retrieves cached ownership for a normalized plate number.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetPlateOwner(ctx context.Context, number string) (*PlateOwner, error) {
	key := plateKeyPrefix + number

	result, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}

	if len(result) == 0 {
		return nil, ErrCacheMiss
	}

	plateID, err := strconv.ParseInt(result["plate_id"], 10, 64)
	if err != nil {
		return nil, ErrCacheMiss
	}
	ownerID, err := strconv.ParseInt(result["owner_id"], 10, 64)
	if err != nil {
		return nil, ErrCacheMiss
	}
	ownerChatID, err := strconv.ParseInt(result["owner_chat_id"], 10, 64)
	if err != nil {
		return nil, ErrCacheMiss
	}

	return &PlateOwner{
		PlateID:     plateID,
		Number:      number,
		OwnerID:     ownerID,
		OwnerChatID: ownerChatID,
	}, nil
}

// SetPlateOwner stores plate ownership in cache.
func (c *Cache) SetPlateOwner(ctx context.Context, owner *PlateOwner) error {
	key := plateKeyPrefix + owner.Number

	fields := map[string]any{
		"plate_id":      strconv.FormatInt(owner.PlateID, 10),
		"owner_id":      strconv.FormatInt(owner.OwnerID, 10),
		"owner_chat_id": strconv.FormatInt(owner.OwnerChatID, 10),
	}

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, DefaultPlateTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache plate owner: %w", err)
	}

	// Remove negative cache if exists
	c.client.Del(ctx, key+negCacheKeySuffix)

	return nil
}

// DeletePlateOwner removes a plate from cache. Called on plate deletion or
// re-registration so lookups never serve a stale owner.
func (c *Cache) DeletePlateOwner(ctx context.Context, number string) error {
	key := plateKeyPrefix + number

	pipe := c.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.Del(ctx, key+negCacheKeySuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete plate from cache: %w", err)
	}

	return nil
}

// IsNegativelyCached checks if a plate number is in the negative cache.
func (c *Cache) IsNegativelyCached(ctx context.Context, number string) (bool, error) {
	key := plateKeyPrefix + number + negCacheKeySuffix

	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}

	return exists > 0, nil
}

// SetNegativeCache marks a plate number as not registered.
func (c *Cache) SetNegativeCache(ctx context.Context, number string) error {
	key := plateKeyPrefix + number + negCacheKeySuffix

	if err := c.client.SetEx(ctx, key, "", NegativeCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}

	return nil
}
