// Package service contains the application services that sit between the
// engine and the adapters: single-wallet computation, concurrent batch runs,
// and verification against the platform's reference figures.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Scotty108/Cascadian-sub010/internal/domain"
	"github.com/Scotty108/Cascadian-sub010/internal/engine"
)

// WalletLister is the narrow slice of the event store a batch run needs to
// enumerate its targets.
type WalletLister interface {
	ListWallets(ctx context.Context) ([]string, error)
}

// PnLService coordinates wallet computations: it runs the engine, persists
// results, and optionally archives batch output to cold storage.
type PnLService struct {
	engine        *engine.Engine
	results       domain.ResultStore
	wallets       WalletLister
	archiver      domain.ResultArchiver // nil disables archival
	maxConcurrent int
	logger        *slog.Logger
}

// NewPnLService creates a PnLService. archiver may be nil.
func NewPnLService(
	eng *engine.Engine,
	results domain.ResultStore,
	wallets WalletLister,
	archiver domain.ResultArchiver,
	maxConcurrent int,
	logger *slog.Logger,
) *PnLService {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &PnLService{
		engine:        eng,
		results:       results,
		wallets:       wallets,
		archiver:      archiver,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

// ComputeWallet computes one wallet's P&L and upserts the result.
func (s *PnLService) ComputeWallet(ctx context.Context, wallet string) (domain.EngineResult, error) {
	result, err := s.engine.ComputePnL(ctx, wallet)
	if err != nil {
		return domain.EngineResult{}, fmt.Errorf("pnl_service: compute %s: %w", wallet, err)
	}

	if err := s.results.Upsert(ctx, result); err != nil {
		return domain.EngineResult{}, fmt.Errorf("pnl_service: persist %s: %w", wallet, err)
	}

	return result, nil
}

// WalletFailure records one wallet that could not be computed during a batch
// run.
type WalletFailure struct {
	Wallet string
	Err    error
}

// BatchReport summarises one batch run.
type BatchReport struct {
	RunID     string
	Succeeded int
	Failures  []WalletFailure
	Elapsed   time.Duration
}

// ComputeBatch computes P&L for the given wallets concurrently, bounded by
// the configured worker limit. An empty wallet list means every wallet the
// event store knows. Per-wallet failures are collected, not fatal; the run
// only errors when the context is cancelled or the wallet listing fails.
func (s *PnLService) ComputeBatch(ctx context.Context, wallets []string) (BatchReport, error) {
	start := time.Now()
	runID := uuid.New().String()

	if len(wallets) == 0 {
		var err error
		wallets, err = s.wallets.ListWallets(ctx)
		if err != nil {
			return BatchReport{}, fmt.Errorf("pnl_service: list wallets: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "pnl_service: batch starting",
		slog.String("run_id", runID),
		slog.Int("wallets", len(wallets)),
		slog.Int("max_concurrent", s.maxConcurrent),
	)

	var (
		mu       sync.Mutex
		results  = make([]domain.EngineResult, 0, len(wallets))
		failures []WalletFailure
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for _, wallet := range wallets {
		g.Go(func() error {
			result, err := s.ComputeWallet(gctx, wallet)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.WarnContext(gctx, "pnl_service: wallet failed",
					slog.String("run_id", runID),
					slog.String("wallet", wallet),
					slog.String("error", err.Error()),
				)
				mu.Lock()
				failures = append(failures, WalletFailure{Wallet: wallet, Err: err})
				mu.Unlock()
				return nil
			}

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return BatchReport{}, fmt.Errorf("pnl_service: batch %s: %w", runID, err)
	}

	if s.archiver != nil && len(results) > 0 {
		if err := s.archiver.ArchiveResults(ctx, runID, results); err != nil {
			// Results are already persisted; a missing archive is
			// recoverable from the result store.
			s.logger.WarnContext(ctx, "pnl_service: archive failed",
				slog.String("run_id", runID),
				slog.String("error", err.Error()),
			)
		}
	}

	report := BatchReport{
		RunID:     runID,
		Succeeded: len(results),
		Failures:  failures,
		Elapsed:   time.Since(start),
	}

	s.logger.InfoContext(ctx, "pnl_service: batch finished",
		slog.String("run_id", runID),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", len(report.Failures)),
		slog.Duration("elapsed", report.Elapsed),
	)

	return report, nil
}
