package domain

// TokenRef maps an outcome token to its market terms.
type TokenRef struct {
	ConditionID  string
	OutcomeIndex int
	OutcomeCount int
}

// Resolution is the final outcome of a condition. Payouts is the normalized
// payout vector: one entry per outcome, summing to 1 (e.g. [1, 0] when Yes
// wins a binary market, [0.5, 0.5] on a 50/50 resolution).
type Resolution struct {
	ConditionID string
	Payouts     []float64
}

// PayoutFor returns the normalized payout for an outcome index, or 0 when
// the index is out of range.
func (r Resolution) PayoutFor(idx int) float64 {
	if idx < 0 || idx >= len(r.Payouts) {
		return 0
	}
	return r.Payouts[idx]
}

// MarkPrices holds latest-snapshot valuation prices for one condition,
// keyed by outcome index.
type MarkPrices map[int]float64
