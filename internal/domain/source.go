package domain

import "context"

// EventSource supplies a wallet's raw event ledger. Implementations pull
// from the event warehouse or directly from a subgraph indexer; the engine
// never cares which.
type EventSource interface {
	// GetTradeEvents returns the wallet's CLOB order-fill events.
	GetTradeEvents(ctx context.Context, wallet string) ([]RawEvent, error)
	// GetLifecycleEvents returns the wallet's split/merge/redeem/convert events.
	GetLifecycleEvents(ctx context.Context, wallet string) ([]RawEvent, error)
}

// TokenResolver maps outcome token IDs to market terms. Callers batch their
// lookups; implementations may be backed by an HTTP API with query-size
// limits, so requests are chunked upstream.
type TokenResolver interface {
	ResolveTokens(ctx context.Context, tokenIDs []string) (map[string]TokenRef, error)
}

// ResolutionSource supplies final market outcomes. Conditions without a
// resolution are simply absent from the returned map.
type ResolutionSource interface {
	GetResolutions(ctx context.Context, conditionIDs []string) (map[string]Resolution, error)
}

// MarkPriceSource supplies latest-snapshot valuation prices for unresolved
// conditions. Conditions without a quote are absent from the returned map.
type MarkPriceSource interface {
	GetMarkPrices(ctx context.Context, conditionIDs []string) (map[string]MarkPrices, error)
}

// ReferencePnL is a wallet's P&L as reported by an authoritative external
// source, used to empirically verify the engine's output.
type ReferencePnL struct {
	Wallet   string
	TotalPnL float64
}

// ReferencePnLSource supplies reference P&L figures for verification runs.
type ReferencePnLSource interface {
	GetReferencePnL(ctx context.Context, wallet string) (ReferencePnL, error)
}
