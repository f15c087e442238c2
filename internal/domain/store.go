package domain

import "context"

// EventStore persists the raw event ledger. It is also an EventSource so
// the engine can compute straight from the warehouse.
type EventStore interface {
	EventSource
	InsertEvents(ctx context.Context, events []RawEvent) error
	ListWallets(ctx context.Context) ([]string, error)
}

// ResultStore persists computed engine results.
type ResultStore interface {
	Upsert(ctx context.Context, result EngineResult) error
	Get(ctx context.Context, wallet string) (EngineResult, error)
}

// ResultArchiver writes a batch run's results to cold storage for audit.
type ResultArchiver interface {
	ArchiveResults(ctx context.Context, runID string, results []EngineResult) error
}
