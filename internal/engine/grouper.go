package engine

import (
	"math"
	"sort"
	"time"

	"github.com/Scotty108/Cascadian-sub010/internal/domain"
)

// flow accumulates the bought/sold token and USDC totals of one bucket
// (a single outcome or a whole condition) within a transaction group.
type flow struct {
	buyQty, sellQty   float64
	buyUSDC, sellUSDC float64
}

// groupStats counts the grouper's per-transaction findings.
type groupStats struct {
	wash       int
	bundled    int
	attributed int
}

// groupEvents buckets normalized events by tx hash, preserving the
// chronological order of each transaction's first event. Every event belongs
// to exactly one group.
func groupEvents(events []domain.NormalizedEvent) []domain.TransactionGroup {
	index := make(map[string]int)
	var groups []domain.TransactionGroup
	for _, ev := range events {
		i, ok := index[ev.TxHash]
		if !ok {
			i = len(groups)
			index[ev.TxHash] = i
			groups = append(groups, domain.TransactionGroup{
				TxHash:           ev.TxHash,
				AttributionRatio: 1,
			})
		}
		groups[i].Events = append(groups[i].Events, ev)
	}
	return groups
}

// analyzeGroups walks transaction groups in chronological order, performs
// attribution, wash detection, and bundled split+sell detection, and emits
// the ledger-applicable operations. It maintains a running inventory
// estimate so bundle detection can ask "did the wallet hold this outcome
// before this transaction".
func (e *Engine) analyzeGroups(wallet string, groups []domain.TransactionGroup, resolutions map[string]domain.Resolution) ([]domain.ProcessedTrade, groupStats, error) {
	var (
		out   []domain.ProcessedTrade
		stats groupStats
		held  = make(map[domain.PositionKey]float64)
	)

	for gi := range groups {
		g := &groups[gi]

		legs, attributed, err := attributeLegs(wallet, g)
		if err != nil {
			return nil, stats, err
		}
		if attributed {
			stats.attributed++
		}

		trades, lifecycle := splitByKind(legs)

		emitted := e.analyzeTrades(g, trades, held)
		switch {
		case g.IsWash:
			stats.wash++
		case g.IsBundled:
			stats.bundled++
		}

		out = append(out, emitted...)
		out = append(out, lifecycle...)

		for _, t := range emitted {
			updateHeld(held, t, resolutions)
		}
		for _, t := range lifecycle {
			updateHeld(held, t, resolutions)
		}
	}

	return out, stats, nil
}

// attributeLegs converts a group's events into effective legs for this
// wallet. CTF-derived legs recorded against a different address of record
// (exchange/adapter contracts in a multi-wallet tx) are attributed
// proportionally by the wallet's share of the transaction's USDC flow.
func attributeLegs(wallet string, g *domain.TransactionGroup) ([]domain.ProcessedTrade, bool, error) {
	var ownUSDC, totalUSDC float64
	foreign := false
	for _, ev := range g.Events {
		totalUSDC += ev.USDC
		if ev.Wallet == wallet {
			ownUSDC += ev.USDC
		} else {
			foreign = true
		}
	}

	ratio := 1.0
	if foreign {
		if totalUSDC > 0 {
			ratio = ownUSDC / totalUSDC
		} else {
			// No USDC flow to apportion, so none of the foreign legs can
			// be tied to this wallet.
			ratio = 0
		}
	}
	if ratio < 0 || ratio > 1 || math.IsNaN(ratio) {
		return nil, false, domain.Invariantf("attribution ratio %g outside [0,1] for tx %s", ratio, g.TxHash)
	}
	g.AttributionRatio = ratio

	legs := make([]domain.ProcessedTrade, 0, len(g.Events))
	for _, ev := range g.Events {
		leg := domain.ProcessedTrade{
			TxHash:       ev.TxHash,
			Type:         ev.Type,
			ConditionID:  ev.ConditionID,
			OutcomeIndex: ev.OutcomeIndex,
			OutcomeCount: ev.OutcomeCount,
			Side:         ev.Side,
			Qty:          ev.Qty,
			USDC:         ev.USDC,
			Price:        ev.Price,
			Timestamp:    ev.Timestamp,
		}
		if ev.Wallet != wallet {
			if ratio == 0 {
				continue // none of this leg belongs to us
			}
			leg.Qty *= ratio
			leg.USDC *= ratio
			leg.Attributed = true
		}
		legs = append(legs, leg)
	}

	return legs, foreign && ratio > 0, nil
}

func splitByKind(legs []domain.ProcessedTrade) (trades, lifecycle []domain.ProcessedTrade) {
	for _, leg := range legs {
		if leg.Type == domain.EventTypeTrade {
			trades = append(trades, leg)
		} else {
			lifecycle = append(lifecycle, leg)
		}
	}
	return trades, lifecycle
}

// analyzeTrades classifies a group's trade legs and returns the operations
// the ledger should see. Wash groups keep their legs, flagged, for
// diagnostics; bundled groups collapse into one synthetic net BUY.
func (e *Engine) analyzeTrades(g *domain.TransactionGroup, trades []domain.ProcessedTrade, held map[domain.PositionKey]float64) []domain.ProcessedTrade {
	if len(trades) == 0 {
		return nil
	}
	eps := e.opts.WashEpsilon

	perOutcome := make(map[domain.PositionKey]*flow)
	perCondition := make(map[string]*flow)
	outcomeCounts := make(map[string]int)

	for _, t := range trades {
		key := domain.PositionKey{ConditionID: t.ConditionID, OutcomeIndex: t.OutcomeIndex}
		of, ok := perOutcome[key]
		if !ok {
			of = &flow{}
			perOutcome[key] = of
		}
		cf, ok := perCondition[t.ConditionID]
		if !ok {
			cf = &flow{}
			perCondition[t.ConditionID] = cf
		}
		outcomeCounts[t.ConditionID] = t.OutcomeCount
		if t.Side == domain.SideBuy {
			of.buyQty += t.Qty
			of.buyUSDC += t.USDC
			cf.buyQty += t.Qty
			cf.buyUSDC += t.USDC
		} else {
			of.sellQty += t.Qty
			of.sellUSDC += t.USDC
			cf.sellQty += t.Qty
			cf.sellUSDC += t.USDC
		}
	}

	// Wash: bought ≈ sold on every outcome touched, with real two-sided
	// volume somewhere in the group.
	twoSided := false
	wash := true
	for _, f := range perOutcome {
		if f.buyQty > eps && f.sellQty > eps {
			twoSided = true
		}
		if math.Abs(f.buyQty-f.sellQty) > eps {
			wash = false
		}
	}
	if twoSided && wash {
		g.IsWash = true
		flagged := make([]domain.ProcessedTrade, len(trades))
		for i, t := range trades {
			t.Wash = true
			flagged[i] = t
		}
		return flagged
	}

	// Bundled split+sell: a buy on one outcome paired with a sell on a
	// complementary outcome the wallet never held. The proxy splits
	// collateral and immediately sells the unwanted side; crediting that
	// sell against empty inventory would fabricate a gain. Only the
	// matching condition's legs collapse into the synthetic BUY; legs on
	// other conditions sharing the tx pass through untouched.
	conditions := make([]string, 0, len(perCondition))
	for condition := range perCondition {
		conditions = append(conditions, condition)
	}
	sort.Strings(conditions)

	synths := make(map[string]domain.ProcessedTrade)
	for _, condition := range conditions {
		if synth, ok := detectBundle(g.TxHash, condition, perOutcome, perCondition[condition], outcomeCounts[condition], held, trades, eps); ok {
			synths[condition] = synth
		}
	}
	if len(synths) == 0 {
		return trades
	}
	g.IsBundled = true

	out := make([]domain.ProcessedTrade, 0, len(trades))
	collapsed := make(map[string]bool)
	for _, t := range trades {
		synth, bundled := synths[t.ConditionID]
		if !bundled {
			out = append(out, t)
			continue
		}
		if !collapsed[t.ConditionID] {
			out = append(out, synth)
			collapsed[t.ConditionID] = true
		}
	}
	return out
}

// detectBundle returns the synthetic net BUY replacing one condition's
// trade legs, when that condition matches the split+sell shape within the
// group.
func detectBundle(
	txHash, condition string,
	perOutcome map[domain.PositionKey]*flow,
	cf *flow,
	outcomeCount int,
	held map[domain.PositionKey]float64,
	trades []domain.ProcessedTrade,
	eps float64,
) (domain.ProcessedTrade, bool) {
	if cf.buyQty <= eps || cf.sellQty <= eps {
		return domain.ProcessedTrade{}, false
	}

	var longKey domain.PositionKey
	longFound := false
	for key, f := range perOutcome {
		if key.ConditionID != condition {
			continue
		}
		if f.buyQty-f.sellQty > eps {
			if longFound {
				return domain.ProcessedTrade{}, false // ambiguous net-long side
			}
			longKey = key
			longFound = true
		}
	}
	if !longFound {
		return domain.ProcessedTrade{}, false
	}

	unheldSell := false
	for key, f := range perOutcome {
		if key.ConditionID != condition || key == longKey {
			continue
		}
		if f.sellQty > eps && held[key] <= eps {
			unheldSell = true
			break
		}
	}
	if !unheldSell {
		return domain.ProcessedTrade{}, false
	}

	// Net quantity is the net-long outcome's token delta; the sells on
	// the complementary side burn tokens the wallet never held. Net cost
	// is what actually left the wallet across this condition's legs.
	lf := perOutcome[longKey]
	netQty := lf.buyQty - lf.sellQty
	if netQty <= eps {
		return domain.ProcessedTrade{}, false
	}
	netCost := cf.buyUSDC - cf.sellUSDC

	var ts time.Time
	attributed := false
	for _, t := range trades {
		if t.ConditionID != condition {
			continue
		}
		if ts.IsZero() {
			ts = t.Timestamp
		}
		if t.Attributed {
			attributed = true
		}
	}

	return domain.ProcessedTrade{
		TxHash:       txHash,
		Type:         domain.EventTypeTrade,
		ConditionID:  condition,
		OutcomeIndex: longKey.OutcomeIndex,
		OutcomeCount: outcomeCount,
		Side:         domain.SideBuy,
		Qty:          netQty,
		USDC:         netCost,
		Price:        netCost / netQty,
		Timestamp:    ts,
		Bundled:      true,
		Attributed:   attributed,
	}, true
}

// updateHeld maintains the grouper's running inventory estimate. It mirrors
// the ledger's clamping: holdings never go below zero.
func updateHeld(held map[domain.PositionKey]float64, t domain.ProcessedTrade, resolutions map[string]domain.Resolution) {
	if t.Wash {
		return
	}
	switch t.Type {
	case domain.EventTypeTrade:
		key := domain.PositionKey{ConditionID: t.ConditionID, OutcomeIndex: t.OutcomeIndex}
		if t.Side == domain.SideBuy {
			held[key] += t.Qty
		} else {
			held[key] = math.Max(0, held[key]-t.Qty)
		}
	case domain.EventTypeSplit:
		n := t.OutcomeCount
		if n < 2 {
			n = 2
		}
		for idx := 0; idx < n; idx++ {
			held[domain.PositionKey{ConditionID: t.ConditionID, OutcomeIndex: idx}] += t.Qty
		}
	case domain.EventTypeMerge:
		n := t.OutcomeCount
		if n < 2 {
			n = 2
		}
		for idx := 0; idx < n; idx++ {
			key := domain.PositionKey{ConditionID: t.ConditionID, OutcomeIndex: idx}
			held[key] = math.Max(0, held[key]-t.Qty)
		}
	case domain.EventTypeRedeem:
		res, hasRes := resolutions[t.ConditionID]
		key := domain.PositionKey{ConditionID: t.ConditionID, OutcomeIndex: t.OutcomeIndex}
		if t.OutcomeIndex < 0 {
			// Condition-level redemption: same selection the ledger makes,
			// the held outcome with the highest payout.
			if !hasRes {
				return
			}
			found := false
			for k, q := range held {
				if k.ConditionID != t.ConditionID || q <= quantityEpsilon {
					continue
				}
				switch {
				case !found:
					key, found = k, true
				case res.PayoutFor(k.OutcomeIndex) > res.PayoutFor(key.OutcomeIndex):
					key = k
				case res.PayoutFor(k.OutcomeIndex) == res.PayoutFor(key.OutcomeIndex) && k.OutcomeIndex < key.OutcomeIndex:
					key = k
				}
			}
			if !found {
				return
			}
		}
		qty := t.Qty
		if qty <= 0 && t.USDC > 0 && hasRes {
			if payout := res.PayoutFor(key.OutcomeIndex); payout > 0 {
				qty = t.USDC / payout
			}
		}
		held[key] = math.Max(0, held[key]-qty)
	}
}
