package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Scotty108/Cascadian-sub010/internal/domain"
)

func settleEngine(t *testing.T, mode SettlementMode, marks domain.MarkPriceSource) *Engine {
	t.Helper()
	opts := DefaultOptions()
	opts.SettlementMode = mode
	eng, err := New(&fakeEventSource{}, &fakeTokenResolver{},
		&fakeResolutionSource{}, marks, opts, discardLogger())
	require.NoError(t, err)
	return eng
}

func TestSettleImmediateLiquidatesResolvedInventory(t *testing.T) {
	// Resolved but unredeemed: immediate mode sells the inventory at the
	// payout, so the win lands in realized P&L.
	resolutions := map[string]domain.Resolution{
		"c1": {ConditionID: "c1", Payouts: []float64{1, 0}},
	}
	led := NewLedger(averageFactory(t), resolutions)
	require.NoError(t, led.Apply(trade("c1", 0, domain.SideBuy, 50, 15)))

	eng := settleEngine(t, SettleImmediate, &fakeMarkSource{})
	out, err := eng.settle(context.Background(), testWallet, led, resolutions)
	require.NoError(t, err)

	assert.Zero(t, out.unrealized)
	assert.Equal(t, 1, out.positionsResolved)
	assert.Zero(t, out.positionsOpen)
	assert.InDelta(t, 35, led.RealizedPnL(), 1e-9)
	assert.InDelta(t, 35, out.gain, 1e-9)
	assert.Zero(t, out.loss)

	require.Len(t, out.positions, 1)
	assert.Equal(t, domain.PositionStatusResolved, out.positions[0].Status)
}

func TestSettleDeferredCarriesPayoutAsUnrealized(t *testing.T) {
	// Deferred mode values the same inventory at the payout but leaves it
	// open until a redemption event actually consumes it.
	resolutions := map[string]domain.Resolution{
		"c1": {ConditionID: "c1", Payouts: []float64{1, 0}},
	}
	led := NewLedger(averageFactory(t), resolutions)
	require.NoError(t, led.Apply(trade("c1", 0, domain.SideBuy, 100, 40)))

	eng := settleEngine(t, SettleDeferred, &fakeMarkSource{})
	out, err := eng.settle(context.Background(), testWallet, led, resolutions)
	require.NoError(t, err)

	assert.InDelta(t, 60, out.unrealized, 1e-9)
	assert.Equal(t, 1, out.positionsOpen)
	assert.Zero(t, out.positionsResolved)
	assert.Zero(t, led.RealizedPnL())

	require.Len(t, out.positions, 1)
	assert.InDelta(t, 60, out.positions[0].UnrealizedPnL, 1e-9)
}

func TestSettleMarksUnresolvedAtQuote(t *testing.T) {
	led := NewLedger(averageFactory(t), nil)
	require.NoError(t, led.Apply(trade("c2", 0, domain.SideBuy, 50, 30)))

	marks := &fakeMarkSource{marks: map[string]domain.MarkPrices{
		"c2": {0: 0.80},
	}}
	eng := settleEngine(t, SettleImmediate, marks)
	out, err := eng.settle(context.Background(), testWallet, led, nil)
	require.NoError(t, err)

	assert.InDelta(t, 10, out.unrealized, 1e-9) // 50 * (0.80 - 0.60)
	assert.Equal(t, 1, out.positionsOpen)
	assert.Zero(t, out.missingMarks)
}

func TestSettleFallsBackToDefaultMark(t *testing.T) {
	led := NewLedger(averageFactory(t), nil)
	require.NoError(t, led.Apply(trade("c2", 0, domain.SideBuy, 100, 30)))

	eng := settleEngine(t, SettleImmediate, &fakeMarkSource{})
	out, err := eng.settle(context.Background(), testWallet, led, nil)
	require.NoError(t, err)

	// No quote: valued at the configured default of 0.50.
	assert.InDelta(t, 20, out.unrealized, 1e-9)
	assert.Equal(t, 1, out.missingMarks)
}

func TestSettleSplitsGainAndLoss(t *testing.T) {
	resolutions := map[string]domain.Resolution{
		"c1": {ConditionID: "c1", Payouts: []float64{0, 1}},
	}
	led := NewLedger(averageFactory(t), resolutions)
	require.NoError(t, led.Apply(trade("c1", 0, domain.SideBuy, 100, 40))) // loses
	require.NoError(t, led.Apply(trade("c2", 0, domain.SideBuy, 10, 5)))

	marks := &fakeMarkSource{marks: map[string]domain.MarkPrices{
		"c2": {0: 0.90},
	}}
	eng := settleEngine(t, SettleImmediate, marks)
	out, err := eng.settle(context.Background(), testWallet, led, resolutions)
	require.NoError(t, err)

	assert.InDelta(t, 4, out.gain, 1e-9)  // c2: 10 * (0.90 - 0.50)
	assert.InDelta(t, 40, out.loss, 1e-9) // c1 liquidated at zero payout
}

func TestSettlePropagatesMarkSourceFailure(t *testing.T) {
	boom := errors.New("gamma down")
	led := NewLedger(averageFactory(t), nil)
	require.NoError(t, led.Apply(trade("c2", 0, domain.SideBuy, 10, 5)))

	eng := settleEngine(t, SettleImmediate, &fakeMarkSource{err: boom})
	_, err := eng.settle(context.Background(), testWallet, led, nil)
	require.Error(t, err)

	var collab *domain.CollaboratorError
	require.ErrorAs(t, err, &collab)
	assert.Equal(t, "get mark prices", collab.Op)
	assert.ErrorIs(t, err, boom)
}
