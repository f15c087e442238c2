package domain

import "context"

// ResolutionCache caches final market outcomes. Resolutions are immutable
// once set, so entries may live with a long TTL; Invalidate exists for
// operator intervention when an upstream resolution is corrected.
type ResolutionCache interface {
	Get(ctx context.Context, conditionID string) (Resolution, error)
	GetBatch(ctx context.Context, conditionIDs []string) (map[string]Resolution, error)
	Set(ctx context.Context, res Resolution) error
	Invalidate(ctx context.Context, conditionID string) error
}

// MarkPriceCache caches latest-snapshot mark prices with a short TTL, so a
// batch run loads each condition's quote at most once.
type MarkPriceCache interface {
	Get(ctx context.Context, conditionID string) (MarkPrices, error)
	GetBatch(ctx context.Context, conditionIDs []string) (map[string]MarkPrices, error)
	Set(ctx context.Context, conditionID string, prices MarkPrices) error
	Invalidate(ctx context.Context, conditionID string) error
}
