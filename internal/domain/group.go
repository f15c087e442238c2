package domain

import "time"

// TransactionGroup is every normalized event sharing one tx hash, plus the
// analysis the grouper performed on it. A single on-chain transaction can
// bundle legs from several wallets and mix trade legs with CTF lifecycle
// legs, so accounting decisions are made per group, never per event.
type TransactionGroup struct {
	TxHash           string
	Events           []NormalizedEvent
	AttributionRatio float64 // share of the tx's USDC flow belonging to this wallet
	IsWash           bool    // nets to zero inventory on every outcome touched
	IsBundled        bool    // proxy-mediated split + immediate sale
}

// ProcessedTrade is a single ledger-applicable operation emitted by the
// grouper: an ordinary trade leg, a lifecycle operation, or a synthetic net
// BUY that replaces the legs of a bundled split+sell transaction.
type ProcessedTrade struct {
	TxHash       string
	Type         EventType
	ConditionID  string
	OutcomeIndex int
	OutcomeCount int
	Side         Side
	Qty          float64
	USDC         float64
	Price        float64
	Timestamp    time.Time

	Wash       bool // retained for diagnostics, excluded from accounting
	Bundled    bool // synthetic net buy replacing a split+sell bundle
	Attributed bool // scaled by the group's attribution ratio
}
