package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/Scotty108/Cascadian-sub010/internal/domain"
)

// VerifyService compares engine output against the platform's own reported
// P&L. A wallet agrees when the difference is within the absolute tolerance
// or within the relative tolerance of the reference figure.
type VerifyService struct {
	pnl       *PnLService
	reference domain.ReferencePnLSource
	absTol    float64
	relTol    float64
	logger    *slog.Logger
}

// NewVerifyService creates a VerifyService with the given tolerances.
func NewVerifyService(
	pnl *PnLService,
	reference domain.ReferencePnLSource,
	absTol, relTol float64,
	logger *slog.Logger,
) *VerifyService {
	return &VerifyService{
		pnl:       pnl,
		reference: reference,
		absTol:    absTol,
		relTol:    relTol,
		logger:    logger,
	}
}

// WalletVerdict is the comparison outcome for one wallet.
type WalletVerdict struct {
	Wallet     string
	Computed   float64
	Reference  float64
	Diff       float64
	Agrees     bool
	Confidence domain.Confidence
	Err        error // non-nil when compute or reference lookup failed
}

// VerifyReport aggregates a verification run.
type VerifyReport struct {
	Total    int
	Agreeing int
	Verdicts []WalletVerdict
}

// Verify computes each wallet and scores it against the reference source.
// Wallets the reference does not know, or that fail to compute, carry a
// non-nil Err in their verdict and count as disagreeing.
func (s *VerifyService) Verify(ctx context.Context, wallets []string) (VerifyReport, error) {
	report := VerifyReport{Total: len(wallets)}

	for _, wallet := range wallets {
		if err := ctx.Err(); err != nil {
			return VerifyReport{}, fmt.Errorf("verify_service: %w", err)
		}

		verdict := s.verifyOne(ctx, wallet)
		if verdict.Agrees {
			report.Agreeing++
		}
		report.Verdicts = append(report.Verdicts, verdict)
	}

	s.logger.InfoContext(ctx, "verify_service: run finished",
		slog.Int("total", report.Total),
		slog.Int("agreeing", report.Agreeing),
	)
	return report, nil
}

func (s *VerifyService) verifyOne(ctx context.Context, wallet string) WalletVerdict {
	result, err := s.pnl.ComputeWallet(ctx, wallet)
	if err != nil {
		return WalletVerdict{Wallet: wallet, Err: err}
	}

	ref, err := s.reference.GetReferencePnL(ctx, wallet)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			err = fmt.Errorf("verify_service: wallet %s unknown to reference: %w", wallet, err)
		}
		return WalletVerdict{
			Wallet:     wallet,
			Computed:   result.TotalPnL,
			Confidence: result.Confidence,
			Err:        err,
		}
	}

	diff := result.TotalPnL - ref.TotalPnL
	agrees := math.Abs(diff) <= s.absTol || math.Abs(diff) <= s.relTol*math.Abs(ref.TotalPnL)

	verdict := WalletVerdict{
		Wallet:     result.Wallet,
		Computed:   result.TotalPnL,
		Reference:  ref.TotalPnL,
		Diff:       diff,
		Agrees:     agrees,
		Confidence: result.Confidence,
	}

	if !agrees {
		s.logger.WarnContext(ctx, "verify_service: mismatch",
			slog.String("wallet", verdict.Wallet),
			slog.Float64("computed", verdict.Computed),
			slog.Float64("reference", verdict.Reference),
			slog.Float64("diff", verdict.Diff),
			slog.String("confidence", string(verdict.Confidence)),
		)
	}
	return verdict
}
