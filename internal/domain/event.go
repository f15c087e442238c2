package domain

import "time"

// EventType classifies a ledger record.
type EventType string

const (
	// EventTypeTrade is a CLOB order fill.
	EventTypeTrade EventType = "trade"
	// EventTypeSplit mints one token of every outcome by locking collateral.
	EventTypeSplit EventType = "split"
	// EventTypeMerge burns one token of every outcome to reclaim collateral.
	EventTypeMerge EventType = "merge"
	// EventTypeRedeem burns winning tokens after resolution to claim payout.
	EventTypeRedeem EventType = "redeem"
	// EventTypeConvert is a platform-specific conversion (e.g. neg-risk).
	EventTypeConvert EventType = "convert"
)

// Side is the direction of a trade leg.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// RawEvent is one record from a wallet's event ledger, exactly as the
// upstream source reports it. Amounts are in micro-units (1e6 = $1 / 1 token)
// the way the CTF contracts emit them. RawEvent is immutable once ingested.
//
// Trade events carry TokenID and Side; lifecycle events (split, merge,
// redeem, convert) carry ConditionID directly and leave TokenID empty.
type RawEvent struct {
	EventID     string
	TxHash      string
	Wallet      string
	Type        EventType
	TokenID     string
	ConditionID string
	Side        Side
	QtyMicros   int64
	USDCMicros  int64
	Price       float64 // dollars per token; 0 when the source omits it
	Timestamp   time.Time
}

// NormalizedEvent is a RawEvent resolved to market terms: token identifiers
// mapped to (condition, outcome), addresses lowercased, and amounts converted
// to decimal dollars and whole tokens.
type NormalizedEvent struct {
	EventID      string
	TxHash       string
	Wallet       string
	Type         EventType
	ConditionID  string
	OutcomeIndex int
	OutcomeCount int
	Side         Side
	Qty          float64 // tokens
	USDC         float64 // dollars
	Price        float64 // dollars per token
	Timestamp    time.Time
}
