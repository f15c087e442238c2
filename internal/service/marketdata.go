package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Scotty108/Cascadian-sub010/internal/domain"
)

// CachedResolutionSource is a read-through wrapper around a ResolutionSource.
// Batch lookups hit the cache first and only fetch the remaining conditions
// from the upstream source. Cache failures degrade to the source; they never
// fail the lookup.
type CachedResolutionSource struct {
	source domain.ResolutionSource
	cache  domain.ResolutionCache
	logger *slog.Logger
}

// NewCachedResolutionSource wraps source with the given cache.
func NewCachedResolutionSource(
	source domain.ResolutionSource,
	cache domain.ResolutionCache,
	logger *slog.Logger,
) *CachedResolutionSource {
	return &CachedResolutionSource{source: source, cache: cache, logger: logger}
}

// GetResolutions returns resolutions for the given conditions, serving what
// it can from the cache and back-filling fetched entries.
func (s *CachedResolutionSource) GetResolutions(ctx context.Context, conditionIDs []string) (map[string]domain.Resolution, error) {
	if len(conditionIDs) == 0 {
		return map[string]domain.Resolution{}, nil
	}

	cached, err := s.cache.GetBatch(ctx, conditionIDs)
	if err != nil {
		s.logger.WarnContext(ctx, "marketdata: resolution cache read failed",
			slog.String("error", err.Error()),
		)
		cached = map[string]domain.Resolution{}
	}

	missing := make([]string, 0, len(conditionIDs))
	for _, id := range conditionIDs {
		if _, ok := cached[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return cached, nil
	}

	fetched, err := s.source.GetResolutions(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("marketdata: get resolutions: %w", err)
	}

	for id, res := range fetched {
		cached[id] = res
		if cacheErr := s.cache.Set(ctx, res); cacheErr != nil {
			s.logger.WarnContext(ctx, "marketdata: resolution cache set failed",
				slog.String("condition_id", id),
				slog.String("error", cacheErr.Error()),
			)
		}
	}
	return cached, nil
}

// CachedMarkPriceSource is a read-through wrapper around a MarkPriceSource.
// Marks carry a short TTL, so within a batch run each condition's quote is
// fetched at most once across wallets.
type CachedMarkPriceSource struct {
	source domain.MarkPriceSource
	cache  domain.MarkPriceCache
	logger *slog.Logger
}

// NewCachedMarkPriceSource wraps source with the given cache.
func NewCachedMarkPriceSource(
	source domain.MarkPriceSource,
	cache domain.MarkPriceCache,
	logger *slog.Logger,
) *CachedMarkPriceSource {
	return &CachedMarkPriceSource{source: source, cache: cache, logger: logger}
}

// GetMarkPrices returns mark prices for the given conditions, serving what it
// can from the cache and back-filling fetched entries.
func (s *CachedMarkPriceSource) GetMarkPrices(ctx context.Context, conditionIDs []string) (map[string]domain.MarkPrices, error) {
	if len(conditionIDs) == 0 {
		return map[string]domain.MarkPrices{}, nil
	}

	cached, err := s.cache.GetBatch(ctx, conditionIDs)
	if err != nil {
		s.logger.WarnContext(ctx, "marketdata: mark cache read failed",
			slog.String("error", err.Error()),
		)
		cached = map[string]domain.MarkPrices{}
	}

	missing := make([]string, 0, len(conditionIDs))
	for _, id := range conditionIDs {
		if _, ok := cached[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return cached, nil
	}

	fetched, err := s.source.GetMarkPrices(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("marketdata: get mark prices: %w", err)
	}

	for id, prices := range fetched {
		cached[id] = prices
		if cacheErr := s.cache.Set(ctx, id, prices); cacheErr != nil {
			s.logger.WarnContext(ctx, "marketdata: mark cache set failed",
				slog.String("condition_id", id),
				slog.String("error", cacheErr.Error()),
			)
		}
	}
	return cached, nil
}

// Compile-time interface checks.
var (
	_ domain.ResolutionSource = (*CachedResolutionSource)(nil)
	_ domain.MarkPriceSource  = (*CachedMarkPriceSource)(nil)
)
