package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Scotty108/Cascadian-sub010/internal/domain"
)

// ResultStore implements domain.ResultStore using PostgreSQL. Quality
// metrics are stored as JSONB so the schema does not chase the metric set.
type ResultStore struct {
	pool *pgxpool.Pool
}

// NewResultStore creates a new ResultStore backed by the given pool.
func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// Upsert writes the latest computed result for a wallet.
func (s *ResultStore) Upsert(ctx context.Context, r domain.EngineResult) error {
	quality, err := json.Marshal(r.Quality)
	if err != nil {
		return fmt.Errorf("postgres: marshal quality metrics for %s: %w", r.Wallet, err)
	}

	const query = `
		INSERT INTO pnl_results (
			wallet, realized_pnl, unrealized_pnl, total_pnl, gain, loss,
			positions_open, positions_resolved, volume_traded,
			confidence, quality_metrics, computed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9,
			$10, $11, $12
		) ON CONFLICT (wallet) DO UPDATE SET
			realized_pnl = EXCLUDED.realized_pnl,
			unrealized_pnl = EXCLUDED.unrealized_pnl,
			total_pnl = EXCLUDED.total_pnl,
			gain = EXCLUDED.gain,
			loss = EXCLUDED.loss,
			positions_open = EXCLUDED.positions_open,
			positions_resolved = EXCLUDED.positions_resolved,
			volume_traded = EXCLUDED.volume_traded,
			confidence = EXCLUDED.confidence,
			quality_metrics = EXCLUDED.quality_metrics,
			computed_at = EXCLUDED.computed_at`

	_, err = s.pool.Exec(ctx, query,
		r.Wallet, r.RealizedPnL, r.UnrealizedPnL, r.TotalPnL, r.Gain, r.Loss,
		r.PositionsOpen, r.PositionsResolved, r.VolumeTraded,
		string(r.Confidence), quality, r.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert result for %s: %w", r.Wallet, err)
	}
	return nil
}

// Get returns the latest stored result for a wallet. It returns
// domain.ErrNotFound when the wallet has never been computed.
func (s *ResultStore) Get(ctx context.Context, wallet string) (domain.EngineResult, error) {
	const query = `
		SELECT wallet, realized_pnl, unrealized_pnl, total_pnl, gain, loss,
		       positions_open, positions_resolved, volume_traded,
		       confidence, quality_metrics, computed_at
		  FROM pnl_results
		 WHERE wallet = $1`

	var (
		r       domain.EngineResult
		quality []byte
	)
	err := s.pool.QueryRow(ctx, query, wallet).Scan(
		&r.Wallet, &r.RealizedPnL, &r.UnrealizedPnL, &r.TotalPnL, &r.Gain, &r.Loss,
		&r.PositionsOpen, &r.PositionsResolved, &r.VolumeTraded,
		&r.Confidence, &quality, &r.ComputedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.EngineResult{}, domain.ErrNotFound
		}
		return domain.EngineResult{}, fmt.Errorf("postgres: get result for %s: %w", wallet, err)
	}

	if err := json.Unmarshal(quality, &r.Quality); err != nil {
		return domain.EngineResult{}, fmt.Errorf("postgres: unmarshal quality metrics for %s: %w", wallet, err)
	}
	return r, nil
}

// Compile-time interface check.
var _ domain.ResultStore = (*ResultStore)(nil)
