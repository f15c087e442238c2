package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Scotty108/Cascadian-sub010/internal/domain"
)

// MarkPriceCache implements domain.MarkPriceCache. Marks are point-in-time
// snapshots, so entries carry a short TTL and a batch run refreshes each
// condition at most once.
//
// Key schema: mark:{conditionID}
type MarkPriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewMarkPriceCache creates a MarkPriceCache backed by the given Client.
// A non-positive ttl falls back to 30 seconds.
func NewMarkPriceCache(c *Client, ttl time.Duration) *MarkPriceCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &MarkPriceCache{rdb: c.Underlying(), ttl: ttl}
}

func markKey(conditionID string) string { return "mark:" + conditionID }

// Set stores the mark prices for a condition.
func (mc *MarkPriceCache) Set(ctx context.Context, conditionID string, prices domain.MarkPrices) error {
	data, err := json.Marshal(prices)
	if err != nil {
		return fmt.Errorf("redis: marshal marks %s: %w", conditionID, err)
	}
	if err := mc.rdb.Set(ctx, markKey(conditionID), data, mc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set marks %s: %w", conditionID, err)
	}
	return nil
}

// Get retrieves the mark prices for a condition. It returns
// domain.ErrNotFound on a miss.
func (mc *MarkPriceCache) Get(ctx context.Context, conditionID string) (domain.MarkPrices, error) {
	data, err := mc.rdb.Get(ctx, markKey(conditionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get marks %s: %w", conditionID, err)
	}

	var prices domain.MarkPrices
	if err := json.Unmarshal(data, &prices); err != nil {
		return nil, fmt.Errorf("redis: unmarshal marks %s: %w", conditionID, err)
	}
	return prices, nil
}

// GetBatch retrieves marks for many conditions with a pipeline. Misses are
// absent from the result map.
func (mc *MarkPriceCache) GetBatch(ctx context.Context, conditionIDs []string) (map[string]domain.MarkPrices, error) {
	if len(conditionIDs) == 0 {
		return map[string]domain.MarkPrices{}, nil
	}

	pipe := mc.rdb.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(conditionIDs))
	for _, id := range conditionIDs {
		cmds[id] = pipe.Get(ctx, markKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get marks pipeline: %w", err)
	}

	result := make(map[string]domain.MarkPrices, len(conditionIDs))
	for id, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}
		var prices domain.MarkPrices
		if err := json.Unmarshal(data, &prices); err != nil {
			continue
		}
		result[id] = prices
	}
	return result, nil
}

// Invalidate removes cached marks for a condition.
func (mc *MarkPriceCache) Invalidate(ctx context.Context, conditionID string) error {
	if err := mc.rdb.Del(ctx, markKey(conditionID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate marks %s: %w", conditionID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MarkPriceCache = (*MarkPriceCache)(nil)
