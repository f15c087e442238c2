// Package engine reconstructs a wallet's realized and unrealized P&L from
// its raw event ledger. The computation is a pure function of its inputs:
// it holds no mutable state between runs, so wallets can be processed in
// parallel without locking.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Scotty108/Cascadian-sub010/internal/domain"
)

// Options are the accounting and execution knobs for one Engine instance.
type Options struct {
	CostBasisMethod  string
	SettlementMode   SettlementMode
	DefaultMarkPrice float64
	WashEpsilon      float64
	LookupChunkSize  int
	WalletTimeout    time.Duration
	Quality          QualityThresholds
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		CostBasisMethod:  "average",
		SettlementMode:   SettleImmediate,
		DefaultMarkPrice: 0.5,
		WashEpsilon:      0.001,
		LookupChunkSize:  500,
		WalletTimeout:    2 * time.Minute,
		Quality: QualityThresholds{
			ExternalSellLowPct:    5.0,
			ExternalSellMediumPct: 0.5,
			MappedRatioLow:        0.90,
			MappedRatioMedium:     0.999,
			IrregularLowCount:     100,
			IrregularMediumCount:  10,
		},
	}
}

// Engine computes wallet P&L against pull-based collaborators. It performs
// no side effects on them and no retries; transient-failure retry belongs in
// the collaborator adapters.
type Engine struct {
	events      domain.EventSource
	tokens      domain.TokenResolver
	resolutions domain.ResolutionSource
	marks       domain.MarkPriceSource
	opts        Options
	newPolicy   PolicyFactory
	logger      *slog.Logger
}

// New creates an Engine. It validates the cost-basis method and settlement
// mode up front so a misconfigured engine fails at wire time, not per
// wallet.
func New(
	events domain.EventSource,
	tokens domain.TokenResolver,
	resolutions domain.ResolutionSource,
	marks domain.MarkPriceSource,
	opts Options,
	logger *slog.Logger,
) (*Engine, error) {
	factory, err := NewPolicyFactory(opts.CostBasisMethod)
	if err != nil {
		return nil, err
	}
	switch opts.SettlementMode {
	case SettleImmediate, SettleDeferred:
	default:
		return nil, fmt.Errorf("engine: unknown settlement mode %q", opts.SettlementMode)
	}
	if opts.WashEpsilon <= 0 {
		opts.WashEpsilon = 0.001
	}
	if opts.LookupChunkSize <= 0 {
		opts.LookupChunkSize = 500
	}

	return &Engine{
		events:      events,
		tokens:      tokens,
		resolutions: resolutions,
		marks:       marks,
		opts:        opts,
		newPolicy:   factory,
		logger:      logger.With(slog.String("component", "engine")),
	}, nil
}

// ComputePnL reconstructs one wallet's P&L. It honors the configured
// per-wallet deadline and fails atomically: on any collaborator failure or
// timeout the error is returned and no partial result escapes.
func (e *Engine) ComputePnL(ctx context.Context, wallet string) (domain.EngineResult, error) {
	wallet = NormalizeAddress(wallet)

	if e.opts.WalletTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.WalletTimeout)
		defer cancel()
	}

	start := time.Now()

	events, ingStats, err := e.ingest(ctx, wallet)
	if err != nil {
		return domain.EngineResult{}, fmt.Errorf("engine: ingest %s: %w", wallet, err)
	}

	resolutions, err := e.fetchResolutions(ctx, events)
	if err != nil {
		return domain.EngineResult{}, fmt.Errorf("engine: %s: %w", wallet, err)
	}

	groups := groupEvents(events)
	trades, grpStats, err := e.analyzeGroups(wallet, groups, resolutions)
	if err != nil {
		return domain.EngineResult{}, fmt.Errorf("engine: group %s: %w", wallet, err)
	}

	led := NewLedger(e.newPolicy, resolutions)
	for _, t := range trades {
		if err := led.Apply(t); err != nil {
			// InvariantError: a bug, surfaced loudly rather than absorbed.
			return domain.EngineResult{}, fmt.Errorf("engine: apply %s: %w", wallet, err)
		}
	}

	settled, err := e.settle(ctx, wallet, led, resolutions)
	if err != nil {
		return domain.EngineResult{}, fmt.Errorf("engine: settle %s: %w", wallet, err)
	}

	if err := ctx.Err(); err != nil {
		return domain.EngineResult{}, fmt.Errorf("engine: compute %s: %w", wallet, err)
	}

	metrics := buildQualityMetrics(ingStats, grpStats, led)

	// Intermediate accumulators stay unrounded; only the output contract
	// fields are rounded, and total is derived from the rounded parts so
	// realized + unrealized always equals total exactly.
	realized := round2(led.RealizedPnL())
	unrealized := round2(settled.unrealized)

	result := domain.EngineResult{
		Wallet:            wallet,
		RealizedPnL:       realized,
		UnrealizedPnL:     unrealized,
		TotalPnL:          realized + unrealized,
		Gain:              round2(settled.gain),
		Loss:              round2(settled.loss),
		PositionsOpen:     settled.positionsOpen,
		PositionsResolved: settled.positionsResolved,
		VolumeTraded:      round2(led.VolumeTraded()),
		Confidence:        scoreConfidence(metrics, e.opts.Quality),
		Quality:           metrics,
		ComputedAt:        time.Now().UTC(),
	}

	e.logger.InfoContext(ctx, "engine: wallet computed",
		slog.String("wallet", wallet),
		slog.Float64("total_pnl", result.TotalPnL),
		slog.Float64("realized_pnl", result.RealizedPnL),
		slog.Float64("unrealized_pnl", result.UnrealizedPnL),
		slog.String("confidence", string(result.Confidence)),
		slog.Int("positions_open", result.PositionsOpen),
		slog.Int("positions_resolved", result.PositionsResolved),
		slog.Duration("elapsed", time.Since(start)),
	)

	return result, nil
}

// fetchResolutions pulls payout vectors for every condition the wallet
// touched, in chunks.
func (e *Engine) fetchResolutions(ctx context.Context, events []domain.NormalizedEvent) (map[string]domain.Resolution, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, ev := range events {
		if ev.ConditionID != "" && !seen[ev.ConditionID] {
			seen[ev.ConditionID] = true
			ids = append(ids, ev.ConditionID)
		}
	}

	resolutions := make(map[string]domain.Resolution, len(ids))
	for _, chunk := range chunkKeys(ids, e.opts.LookupChunkSize) {
		m, err := e.resolutions.GetResolutions(ctx, chunk)
		if err != nil {
			return nil, domain.CollaboratorFailure("get resolutions", err)
		}
		for id, res := range m {
			resolutions[id] = res
		}
	}
	return resolutions, nil
}

// round2 rounds to cents. Applied only at the output boundary.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
