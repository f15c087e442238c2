package engine

import (
	"fmt"

	"github.com/Scotty108/Cascadian-sub010/internal/domain"
)

// CostBasisPolicy tracks open inventory of one outcome token and decides how
// cost flows out of it on a sell. Implementations are not safe for concurrent
// use; each position owns its own instance.
//
// Sell must only ever be called with qty <= Quantity(); the ledger clamps
// before dispatching.
type CostBasisPolicy interface {
	Buy(qty, price float64)
	// Sell consumes qty tokens at the given per-token price and returns the
	// realized P&L of the consumption.
	Sell(qty, price float64) float64
	Quantity() float64
	AverageCost() float64
	TotalCost() float64
	// Lots returns the open inventory as FIFO lots. Average-cost inventory
	// reports a single blended lot.
	Lots() []domain.Lot
}

// PolicyFactory builds a fresh policy instance for a new position.
type PolicyFactory func() CostBasisPolicy

// NewPolicyFactory returns the factory for a cost-basis method name:
// "average" or "fifo".
func NewPolicyFactory(method string) (PolicyFactory, error) {
	switch method {
	case "average":
		return func() CostBasisPolicy { return &averageCost{} }, nil
	case "fifo":
		return func() CostBasisPolicy { return &fifoCost{} }, nil
	default:
		return nil, fmt.Errorf("engine: unknown cost basis method %q", method)
	}
}

// averageCost blends every acquisition into a single weighted-average cost.
type averageCost struct {
	qty float64
	avg float64
}

func (a *averageCost) Buy(qty, price float64) {
	if qty <= 0 {
		return
	}
	a.avg = (a.avg*a.qty + price*qty) / (a.qty + qty)
	a.qty += qty
}

func (a *averageCost) Sell(qty, price float64) float64 {
	if qty <= 0 {
		return 0
	}
	realized := qty * (price - a.avg)
	a.qty -= qty
	if a.qty <= quantityEpsilon {
		a.qty = 0
		a.avg = 0
	}
	return realized
}

func (a *averageCost) Quantity() float64    { return a.qty }
func (a *averageCost) AverageCost() float64 { return a.avg }
func (a *averageCost) TotalCost() float64   { return a.qty * a.avg }

func (a *averageCost) Lots() []domain.Lot {
	if a.qty <= 0 {
		return nil
	}
	return []domain.Lot{{Qty: a.qty, Cost: a.avg}}
}

// fifoCost keeps an ordered lot list and consumes the oldest lots first.
type fifoCost struct {
	lots []domain.Lot
}

func (f *fifoCost) Buy(qty, price float64) {
	if qty <= 0 {
		return
	}
	f.lots = append(f.lots, domain.Lot{Qty: qty, Cost: price})
}

func (f *fifoCost) Sell(qty, price float64) float64 {
	var realized float64
	remaining := qty
	for remaining > quantityEpsilon && len(f.lots) > 0 {
		lot := &f.lots[0]
		consumed := remaining
		if consumed > lot.Qty {
			consumed = lot.Qty
		}
		realized += consumed * (price - lot.Cost)
		lot.Qty -= consumed
		remaining -= consumed
		if lot.Qty <= quantityEpsilon {
			f.lots = f.lots[1:]
		}
	}
	return realized
}

func (f *fifoCost) Quantity() float64 {
	var q float64
	for _, lot := range f.lots {
		q += lot.Qty
	}
	return q
}

func (f *fifoCost) AverageCost() float64 {
	q := f.Quantity()
	if q == 0 {
		return 0
	}
	return f.TotalCost() / q
}

func (f *fifoCost) TotalCost() float64 {
	var c float64
	for _, lot := range f.lots {
		c += lot.Qty * lot.Cost
	}
	return c
}

func (f *fifoCost) Lots() []domain.Lot {
	out := make([]domain.Lot, len(f.lots))
	copy(out, f.lots)
	return out
}
