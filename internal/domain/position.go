package domain

// PositionKey identifies inventory of one outcome token.
type PositionKey struct {
	ConditionID  string
	OutcomeIndex int
}

// PositionStatus tracks the lifecycle of a position. A closed position
// reopens on a new buy; resolved is terminal and set only by settlement.
type PositionStatus string

const (
	PositionStatusOpen     PositionStatus = "open"
	PositionStatusClosed   PositionStatus = "closed"
	PositionStatusResolved PositionStatus = "resolved"
)

// Lot is one FIFO inventory lot: a quantity of tokens acquired at a single
// per-token cost.
type Lot struct {
	Qty  float64
	Cost float64 // dollars per token
}

// Position is the externally visible state of one (condition, outcome)
// inventory after a wallet computation.
type Position struct {
	Key           PositionKey
	Qty           float64
	AvgCost       float64
	TotalCost     float64
	RealizedPnL   float64
	UnrealizedPnL float64
	Status        PositionStatus
}
