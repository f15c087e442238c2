package engine

import (
	"sort"

	"github.com/Scotty108/Cascadian-sub010/internal/domain"
)

// quantityEpsilon is the token dust threshold below which inventory is
// treated as zero.
const quantityEpsilon = 1e-9

// position is the ledger's internal per-(condition, outcome) state.
type position struct {
	key      domain.PositionKey
	policy   CostBasisPolicy
	realized float64
	status   domain.PositionStatus
	// outcomeCount is remembered so settlement can reason about the
	// condition's partition without re-resolving tokens.
	outcomeCount int
}

// Ledger applies buys, sells, splits, merges, and redemptions to per-outcome
// inventory under a pluggable cost-basis policy. Every consuming operation
// clamps to tracked inventory, so quantity never goes negative; sells against
// untracked (externally acquired) tokens are recorded as diagnostics instead
// of errors.
type Ledger struct {
	newPolicy   PolicyFactory
	resolutions map[string]domain.Resolution
	positions   map[domain.PositionKey]*position

	volumeTraded       float64
	attemptedSellValue float64
	clampedSellValue   float64
	irregularEvents    int
}

// NewLedger creates an empty ledger. resolutions supplies payout vectors for
// redemption pricing and may be nil when the wallet has no redemptions.
func NewLedger(newPolicy PolicyFactory, resolutions map[string]domain.Resolution) *Ledger {
	return &Ledger{
		newPolicy:   newPolicy,
		resolutions: resolutions,
		positions:   make(map[domain.PositionKey]*position),
	}
}

// Apply processes one grouper output in chronological order. Wash-flagged
// trades are skipped entirely: they are bookkeeping, not economic activity.
func (l *Ledger) Apply(t domain.ProcessedTrade) error {
	if t.Wash {
		return nil
	}

	switch t.Type {
	case domain.EventTypeTrade:
		return l.applyTrade(t)
	case domain.EventTypeSplit:
		return l.applySplit(t)
	case domain.EventTypeMerge:
		return l.applyMerge(t)
	case domain.EventTypeRedeem:
		return l.applyRedeem(t)
	case domain.EventTypeConvert:
		// Conversions move exposure between equivalent token sets without a
		// price; they carry no P&L but count as irregular activity.
		l.irregularEvents++
		return nil
	default:
		l.irregularEvents++
		return nil
	}
}

func (l *Ledger) applyTrade(t domain.ProcessedTrade) error {
	key := domain.PositionKey{ConditionID: t.ConditionID, OutcomeIndex: t.OutcomeIndex}
	switch t.Side {
	case domain.SideBuy:
		l.buy(key, t.OutcomeCount, t.Qty, t.Price)
		l.volumeTraded += t.USDC
	case domain.SideSell:
		consumed := l.sell(key, t.Qty, t.Price)
		if t.Qty > 0 {
			l.volumeTraded += t.USDC * (consumed / t.Qty)
		}
	}
	return l.checkInventory(key)
}

// applySplit treats a split as a BUY of qty tokens on every outcome of the
// partition at 1/N per token: the collateral locked is redistributed evenly
// across the minted set.
func (l *Ledger) applySplit(t domain.ProcessedTrade) error {
	n := t.OutcomeCount
	if n < 2 {
		n = 2
	}
	price := 1.0 / float64(n)
	for idx := 0; idx < n; idx++ {
		key := domain.PositionKey{ConditionID: t.ConditionID, OutcomeIndex: idx}
		l.buy(key, n, t.Qty, price)
		if err := l.checkInventory(key); err != nil {
			return err
		}
	}
	return nil
}

// applyMerge is the inverse: a SELL of qty on every outcome at 1/N. It nets
// to zero P&L only when those tokens were acquired at that same price.
func (l *Ledger) applyMerge(t domain.ProcessedTrade) error {
	n := t.OutcomeCount
	if n < 2 {
		n = 2
	}
	price := 1.0 / float64(n)
	for idx := 0; idx < n; idx++ {
		key := domain.PositionKey{ConditionID: t.ConditionID, OutcomeIndex: idx}
		l.sell(key, t.Qty, price)
		if err := l.checkInventory(key); err != nil {
			return err
		}
	}
	return nil
}

// applyRedeem treats a redemption as a SELL at the resolution payout price
// for the held outcome. When the raw event reports cash rather than a token
// count, the quantity is derived from the payout.
func (l *Ledger) applyRedeem(t domain.ProcessedTrade) error {
	res, ok := l.resolutions[t.ConditionID]
	if !ok {
		// Redemption against a condition we have no resolution for: degrade
		// to a counter, never abort the wallet.
		l.irregularEvents++
		return nil
	}

	key, held := l.heldOutcome(t, res)
	if !held {
		l.irregularEvents++
		return nil
	}

	payout := res.PayoutFor(key.OutcomeIndex)
	qty := t.Qty
	if qty <= 0 && t.USDC > 0 && payout > 0 {
		qty = t.USDC / payout
	}
	if qty <= 0 {
		l.irregularEvents++
		return nil
	}

	l.sell(key, qty, payout)
	return l.checkInventory(key)
}

// heldOutcome picks the outcome a condition-level redemption applies to:
// the event's own outcome when it names one, otherwise the held outcome with
// a positive payout (winning tokens are the only ones worth redeeming).
func (l *Ledger) heldOutcome(t domain.ProcessedTrade, res domain.Resolution) (domain.PositionKey, bool) {
	if t.OutcomeIndex >= 0 {
		return domain.PositionKey{ConditionID: t.ConditionID, OutcomeIndex: t.OutcomeIndex}, true
	}
	var best domain.PositionKey
	found := false
	for key, pos := range l.positions {
		if key.ConditionID != t.ConditionID || pos.policy.Quantity() <= quantityEpsilon {
			continue
		}
		if !found || res.PayoutFor(key.OutcomeIndex) > res.PayoutFor(best.OutcomeIndex) {
			best = key
			found = true
		}
	}
	return best, found
}

// buy routes an acquisition into the position's policy, creating or
// reopening the position as needed.
func (l *Ledger) buy(key domain.PositionKey, outcomeCount int, qty, price float64) {
	if qty <= 0 {
		return
	}
	pos := l.getOrCreate(key, outcomeCount)
	if pos.status == domain.PositionStatusResolved {
		// Terminal state; acquisitions after settlement are irregular.
		l.irregularEvents++
		return
	}
	pos.policy.Buy(qty, price)
	pos.status = domain.PositionStatusOpen
}

// sell consumes inventory with clamping: at most the tracked quantity is
// consumed, proceeds scale proportionally, and the clamped remainder is
// recorded as externally acquired sell value. Returns the consumed quantity.
func (l *Ledger) sell(key domain.PositionKey, qty, price float64) float64 {
	if qty <= 0 {
		return 0
	}
	proceeds := qty * price
	l.attemptedSellValue += proceeds

	pos, ok := l.positions[key]
	if !ok || pos.status == domain.PositionStatusResolved {
		l.clampedSellValue += proceeds
		return 0
	}

	current := pos.policy.Quantity()
	consumed := qty
	if consumed > current {
		consumed = current
	}
	if consumed < qty {
		l.clampedSellValue += proceeds * (qty - consumed) / qty
	}
	if consumed <= quantityEpsilon {
		return 0
	}

	pos.realized += pos.policy.Sell(consumed, price)
	if pos.policy.Quantity() <= quantityEpsilon {
		pos.status = domain.PositionStatusClosed
	}
	return consumed
}

func (l *Ledger) getOrCreate(key domain.PositionKey, outcomeCount int) *position {
	pos, ok := l.positions[key]
	if !ok {
		pos = &position{
			key:          key,
			policy:       l.newPolicy(),
			status:       domain.PositionStatusOpen,
			outcomeCount: outcomeCount,
		}
		l.positions[key] = pos
	}
	return pos
}

// checkInventory surfaces negative inventory as a loud programmer error.
// Clamping makes it unreachable; if it fires, the ledger has a bug.
func (l *Ledger) checkInventory(key domain.PositionKey) error {
	pos, ok := l.positions[key]
	if !ok {
		return nil
	}
	if q := pos.policy.Quantity(); q < -quantityEpsilon {
		return domain.Invariantf("negative inventory %g on %s/%d", q, key.ConditionID, key.OutcomeIndex)
	}
	return nil
}

// RealizedPnL sums realized P&L across all positions.
func (l *Ledger) RealizedPnL() float64 {
	var total float64
	for _, pos := range l.positions {
		total += pos.realized
	}
	return total
}

// VolumeTraded returns the clamp-adjusted traded USDC volume, wash excluded.
func (l *Ledger) VolumeTraded() float64 { return l.volumeTraded }

// SellDiagnostics returns the attempted and clamped (externally acquired)
// sell values accumulated so far.
func (l *Ledger) SellDiagnostics() (attempted, clamped float64) {
	return l.attemptedSellValue, l.clampedSellValue
}

// IrregularEvents returns the count of events the ledger absorbed without
// applying (unresolvable redemptions, conversions, post-settlement buys).
func (l *Ledger) IrregularEvents() int { return l.irregularEvents }

// Positions returns a deterministic snapshot of every position the ledger
// has touched, ordered by condition then outcome.
func (l *Ledger) Positions() []domain.Position {
	out := make([]domain.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, domain.Position{
			Key:         pos.key,
			Qty:         pos.policy.Quantity(),
			AvgCost:     pos.policy.AverageCost(),
			TotalCost:   pos.policy.TotalCost(),
			RealizedPnL: pos.realized,
			Status:      pos.status,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.ConditionID != out[j].Key.ConditionID {
			return out[i].Key.ConditionID < out[j].Key.ConditionID
		}
		return out[i].Key.OutcomeIndex < out[j].Key.OutcomeIndex
	})
	return out
}

// openPositions yields the internal states with remaining inventory.
func (l *Ledger) openPositions() []*position {
	var open []*position
	for _, pos := range l.positions {
		if pos.policy.Quantity() > quantityEpsilon && pos.status != domain.PositionStatusResolved {
			open = append(open, pos)
		}
	}
	sort.Slice(open, func(i, j int) bool {
		if open[i].key.ConditionID != open[j].key.ConditionID {
			return open[i].key.ConditionID < open[j].key.ConditionID
		}
		return open[i].key.OutcomeIndex < open[j].key.OutcomeIndex
	})
	return open
}
