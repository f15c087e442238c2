package engine

import (
	"context"
	"log/slog"

	"github.com/Scotty108/Cascadian-sub010/internal/domain"
)

// SettlementMode controls how resolved-but-unredeemed positions are valued.
type SettlementMode string

const (
	// SettleImmediate liquidates winning inventory at the resolution payout
	// as soon as the condition resolves.
	SettleImmediate SettlementMode = "immediate"
	// SettleDeferred carries resolved inventory as unrealized P&L at the
	// payout price until an actual redemption event consumes it.
	SettleDeferred SettlementMode = "deferred"
)

// settleOutcome summarizes the valuation pass over remaining inventory.
type settleOutcome struct {
	unrealized        float64
	gain              float64
	loss              float64
	positionsOpen     int
	positionsResolved int
	missingMarks      int
	positions         []domain.Position
}

// settle values every position with remaining inventory: resolved conditions
// settle at the normalized payout, unresolved ones mark to the latest quote
// (falling back to the configured default when no quote exists, a
// documented degradation, never a silent one). It then derives the
// gain/loss breakdown across all positions the ledger touched.
func (e *Engine) settle(ctx context.Context, wallet string, led *Ledger, resolutions map[string]domain.Resolution) (settleOutcome, error) {
	var out settleOutcome

	open := led.openPositions()

	// Mark prices are only needed for conditions without a resolution.
	var unresolvedIDs []string
	seen := make(map[string]bool)
	for _, pos := range open {
		id := pos.key.ConditionID
		if _, ok := resolutions[id]; !ok && !seen[id] {
			seen[id] = true
			unresolvedIDs = append(unresolvedIDs, id)
		}
	}

	marks := make(map[string]domain.MarkPrices, len(unresolvedIDs))
	for _, chunk := range chunkKeys(unresolvedIDs, e.opts.LookupChunkSize) {
		m, err := e.marks.GetMarkPrices(ctx, chunk)
		if err != nil {
			return out, domain.CollaboratorFailure("get mark prices", err)
		}
		for id, prices := range m {
			marks[id] = prices
		}
	}

	unrealizedByKey := make(map[domain.PositionKey]float64)
	for _, pos := range open {
		qty := pos.policy.Quantity()
		avg := pos.policy.AverageCost()

		if res, ok := resolutions[pos.key.ConditionID]; ok {
			payout := res.PayoutFor(pos.key.OutcomeIndex)
			if e.opts.SettlementMode == SettleImmediate {
				pos.realized += pos.policy.Sell(qty, payout)
				pos.status = domain.PositionStatusResolved
				out.positionsResolved++
			} else {
				unrealizedByKey[pos.key] = qty * (payout - avg)
				out.positionsOpen++
			}
			continue
		}

		mark, ok := marks[pos.key.ConditionID][pos.key.OutcomeIndex]
		if !ok {
			mark = e.opts.DefaultMarkPrice
			out.missingMarks++
			e.logger.WarnContext(ctx, "engine: no mark price, using default",
				slog.String("wallet", wallet),
				slog.String("condition_id", pos.key.ConditionID),
				slog.Int("outcome_index", pos.key.OutcomeIndex),
				slog.Float64("default_mark", mark),
			)
		}
		unrealizedByKey[pos.key] = qty * (mark - avg)
		out.positionsOpen++
	}

	// Final snapshot and gain/loss breakdown over every touched position.
	out.positions = led.Positions()
	for i := range out.positions {
		pos := &out.positions[i]
		pos.UnrealizedPnL = unrealizedByKey[pos.Key]
		out.unrealized += pos.UnrealizedPnL

		total := pos.RealizedPnL + pos.UnrealizedPnL
		if total >= 0 {
			out.gain += total
		} else {
			out.loss += -total
		}
	}

	return out, nil
}
