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

// ResolutionCache implements domain.ResolutionCache using Redis strings with
// JSON-serialized payout vectors.
//
// Resolutions are immutable once a condition settles, so the TTL is long by
// default; Invalidate exists for the rare upstream correction.
//
// Key schema: resolution:{conditionID}
type ResolutionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewResolutionCache creates a ResolutionCache backed by the given Client.
// A non-positive ttl falls back to 24 hours.
func NewResolutionCache(c *Client, ttl time.Duration) *ResolutionCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ResolutionCache{rdb: c.Underlying(), ttl: ttl}
}

func resolutionKey(conditionID string) string { return "resolution:" + conditionID }

// Set stores a resolution.
func (rc *ResolutionCache) Set(ctx context.Context, res domain.Resolution) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("redis: marshal resolution %s: %w", res.ConditionID, err)
	}
	if err := rc.rdb.Set(ctx, resolutionKey(res.ConditionID), data, rc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set resolution %s: %w", res.ConditionID, err)
	}
	return nil
}

// Get retrieves a resolution. It returns domain.ErrNotFound when the
// condition is not cached.
func (rc *ResolutionCache) Get(ctx context.Context, conditionID string) (domain.Resolution, error) {
	data, err := rc.rdb.Get(ctx, resolutionKey(conditionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Resolution{}, domain.ErrNotFound
		}
		return domain.Resolution{}, fmt.Errorf("redis: get resolution %s: %w", conditionID, err)
	}

	var res domain.Resolution
	if err := json.Unmarshal(data, &res); err != nil {
		return domain.Resolution{}, fmt.Errorf("redis: unmarshal resolution %s: %w", conditionID, err)
	}
	return res, nil
}

// GetBatch retrieves many resolutions with a pipeline. Conditions that are
// not cached are simply absent from the result map.
func (rc *ResolutionCache) GetBatch(ctx context.Context, conditionIDs []string) (map[string]domain.Resolution, error) {
	if len(conditionIDs) == 0 {
		return map[string]domain.Resolution{}, nil
	}

	pipe := rc.rdb.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(conditionIDs))
	for _, id := range conditionIDs {
		cmds[id] = pipe.Get(ctx, resolutionKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get resolutions pipeline: %w", err)
	}

	result := make(map[string]domain.Resolution, len(conditionIDs))
	for id, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}
		var res domain.Resolution
		if err := json.Unmarshal(data, &res); err != nil {
			continue
		}
		result[id] = res
	}
	return result, nil
}

// Invalidate removes a cached resolution.
func (rc *ResolutionCache) Invalidate(ctx context.Context, conditionID string) error {
	if err := rc.rdb.Del(ctx, resolutionKey(conditionID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate resolution %s: %w", conditionID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ResolutionCache = (*ResolutionCache)(nil)
