package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Scotty108/Cascadian-sub010/internal/domain"
)

type fakeReferenceSource struct {
	figures map[string]float64
	err     error
}

func (f *fakeReferenceSource) GetReferencePnL(ctx context.Context, wallet string) (domain.ReferencePnL, error) {
	if f.err != nil {
		return domain.ReferencePnL{}, f.err
	}
	pnl, ok := f.figures[wallet]
	if !ok {
		return domain.ReferencePnL{}, domain.ErrNotFound
	}
	return domain.ReferencePnL{Wallet: wallet, TotalPnL: pnl}, nil
}

func verifyService(t *testing.T, reference domain.ReferencePnLSource, absTol, relTol float64) *VerifyService {
	t.Helper()
	pnl := NewPnLService(testEngine(t, nil), newFakeResultStore(), &fakeWalletLister{}, nil, 1, testLogger())
	return NewVerifyService(pnl, reference, absTol, relTol, testLogger())
}

func TestVerifyAgreesWithinAbsoluteTolerance(t *testing.T) {
	// walletA computes to $30.00; the platform reports $30.40.
	svc := verifyService(t, &fakeReferenceSource{figures: map[string]float64{walletA: 30.40}}, 1.0, 0.001)

	report, err := svc.Verify(context.Background(), []string{walletA})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Agreeing)
	require.Len(t, report.Verdicts, 1)

	v := report.Verdicts[0]
	assert.True(t, v.Agrees)
	assert.InDelta(t, 30, v.Computed, 1e-9)
	assert.InDelta(t, 30.40, v.Reference, 1e-9)
	assert.InDelta(t, -0.40, v.Diff, 1e-9)
	assert.NoError(t, v.Err)
}

func TestVerifyAgreesWithinRelativeTolerance(t *testing.T) {
	// $5 off on a $3500 reference: outside the absolute tolerance but well
	// within 1% of the reference figure.
	svc := verifyService(t, &fakeReferenceSource{figures: map[string]float64{walletA: 3500}}, 1.0, 0.01)
	svc.pnl = NewPnLService(testEngine(t, &fakeEventSource{trades: map[string][]domain.RawEvent{
		walletA: {{
			EventID:    "e1",
			TxHash:     "0xtx1",
			Wallet:     walletA,
			Type:       domain.EventTypeTrade,
			TokenID:    "tok1",
			Side:       domain.SideBuy,
			QtyMicros:  11650e6,
			USDCMicros: 5825e6,
			Timestamp:  time.Unix(1700000000, 0),
		}},
	}}), newFakeResultStore(), &fakeWalletLister{}, nil, 1, testLogger())

	report, err := svc.Verify(context.Background(), []string{walletA})
	require.NoError(t, err)
	require.Len(t, report.Verdicts, 1)
	assert.True(t, report.Verdicts[0].Agrees)
}

func TestVerifyFlagsMismatch(t *testing.T) {
	svc := verifyService(t, &fakeReferenceSource{figures: map[string]float64{walletA: 100}}, 1.0, 0.01)

	report, err := svc.Verify(context.Background(), []string{walletA})
	require.NoError(t, err)

	assert.Zero(t, report.Agreeing)
	require.Len(t, report.Verdicts, 1)
	assert.False(t, report.Verdicts[0].Agrees)
	assert.InDelta(t, -70, report.Verdicts[0].Diff, 1e-9)
}

func TestVerifyUnknownWalletCarriesError(t *testing.T) {
	svc := verifyService(t, &fakeReferenceSource{}, 1.0, 0.01)

	report, err := svc.Verify(context.Background(), []string{walletA})
	require.NoError(t, err)

	require.Len(t, report.Verdicts, 1)
	v := report.Verdicts[0]
	assert.False(t, v.Agrees)
	require.Error(t, v.Err)
	assert.ErrorIs(t, v.Err, domain.ErrNotFound)
	// The computed figure still comes along for the operator.
	assert.InDelta(t, 30, v.Computed, 1e-9)
}

func TestVerifyComputeFailureCarriesError(t *testing.T) {
	boom := errors.New("subgraph down")
	pnl := NewPnLService(testEngine(t, &fakeEventSource{err: boom}),
		newFakeResultStore(), &fakeWalletLister{}, nil, 1, testLogger())
	svc := NewVerifyService(pnl, &fakeReferenceSource{}, 1.0, 0.01, testLogger())

	report, err := svc.Verify(context.Background(), []string{walletA})
	require.NoError(t, err)

	require.Len(t, report.Verdicts, 1)
	assert.False(t, report.Verdicts[0].Agrees)
	assert.ErrorIs(t, report.Verdicts[0].Err, boom)
}

func TestVerifyHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := verifyService(t, &fakeReferenceSource{}, 1.0, 0.01)
	_, err := svc.Verify(ctx, []string{walletA})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
