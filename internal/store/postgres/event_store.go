package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Scotty108/Cascadian-sub010/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL. It is both the
// ingestion target for scraped events and the engine's event source.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

const eventSelectCols = `event_id, tx_hash, wallet, event_type, token_id,
	condition_id, side, qty_micros, usdc_micros, price, ts`

func scanEventRows(rows pgx.Rows) ([]domain.RawEvent, error) {
	var events []domain.RawEvent
	for rows.Next() {
		var ev domain.RawEvent
		if err := rows.Scan(
			&ev.EventID, &ev.TxHash, &ev.Wallet, &ev.Type, &ev.TokenID,
			&ev.ConditionID, &ev.Side, &ev.QtyMicros, &ev.USDCMicros,
			&ev.Price, &ev.Timestamp,
		); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// InsertEvents batch-inserts raw events using pgx Batch. Duplicate events
// (same event_id) are silently skipped via ON CONFLICT DO NOTHING, matching
// the engine's dedupe semantics.
func (s *EventStore) InsertEvents(ctx context.Context, events []domain.RawEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO wallet_events (
			event_id, tx_hash, wallet, event_type, token_id,
			condition_id, side, qty_micros, usdc_micros, price, ts
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11
		) ON CONFLICT (event_id) DO NOTHING`

	for _, ev := range events {
		batch.Queue(query,
			ev.EventID, ev.TxHash, ev.Wallet, ev.Type, ev.TokenID,
			ev.ConditionID, ev.Side, ev.QtyMicros, ev.USDCMicros,
			ev.Price, ev.Timestamp,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert event batch item %d: %w", i, err)
		}
	}
	return nil
}

// GetTradeEvents returns the wallet's order-fill events in chronological
// order.
func (s *EventStore) GetTradeEvents(ctx context.Context, wallet string) ([]domain.RawEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+eventSelectCols+`
		   FROM wallet_events
		  WHERE wallet = $1 AND event_type = $2
		  ORDER BY ts, event_id`,
		wallet, domain.EventTypeTrade,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: get trade events for %s: %w", wallet, err)
	}
	defer rows.Close()

	events, err := scanEventRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trade events for %s: %w", wallet, err)
	}
	return events, nil
}

// GetLifecycleEvents returns the wallet's split/merge/redeem/convert events
// in chronological order.
func (s *EventStore) GetLifecycleEvents(ctx context.Context, wallet string) ([]domain.RawEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+eventSelectCols+`
		   FROM wallet_events
		  WHERE wallet = $1 AND event_type <> $2
		  ORDER BY ts, event_id`,
		wallet, domain.EventTypeTrade,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: get lifecycle events for %s: %w", wallet, err)
	}
	defer rows.Close()

	events, err := scanEventRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan lifecycle events for %s: %w", wallet, err)
	}
	return events, nil
}

// ListWallets returns every distinct wallet present in the event ledger.
func (s *EventStore) ListWallets(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT DISTINCT wallet FROM wallet_events ORDER BY wallet")
	if err != nil {
		return nil, fmt.Errorf("postgres: list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("postgres: scan wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// Compile-time interface check.
var _ domain.EventStore = (*EventStore)(nil)
