package app

import (
	"context"
	"fmt"
	"log/slog"
)

// ComputeMode computes P&L for the wallets given on the command line, one at
// a time, persisting each result. It requires at least one wallet.
func (a *App) ComputeMode(ctx context.Context, deps *Dependencies) error {
	if len(a.wallets) == 0 {
		return fmt.Errorf("app: compute mode requires at least one -wallet")
	}

	for _, wallet := range a.wallets {
		result, err := deps.PnL.ComputeWallet(ctx, wallet)
		if err != nil {
			return fmt.Errorf("app: compute mode: %w", err)
		}
		fmt.Printf("%s total=%.2f realized=%.2f unrealized=%.2f confidence=%s\n",
			result.Wallet, result.TotalPnL, result.RealizedPnL,
			result.UnrealizedPnL, result.Confidence,
		)
	}
	return nil
}

// BatchMode computes P&L for the given wallets concurrently, or for every
// wallet in the event store when none were given. Per-wallet failures are
// reported but do not fail the run; the run errors only when nothing
// succeeded.
func (a *App) BatchMode(ctx context.Context, deps *Dependencies) error {
	report, err := deps.PnL.ComputeBatch(ctx, a.wallets)
	if err != nil {
		return fmt.Errorf("app: batch mode: %w", err)
	}

	for _, f := range report.Failures {
		a.logger.ErrorContext(ctx, "batch wallet failed",
			slog.String("run_id", report.RunID),
			slog.String("wallet", f.Wallet),
			slog.String("error", f.Err.Error()),
		)
	}

	if report.Succeeded == 0 && len(report.Failures) > 0 {
		return fmt.Errorf("app: batch mode: all %d wallets failed", len(report.Failures))
	}

	fmt.Printf("run %s: %d succeeded, %d failed in %s\n",
		report.RunID, report.Succeeded, len(report.Failures), report.Elapsed,
	)
	return nil
}

// VerifyMode computes the given wallets and compares each against the
// reference P&L source, printing a per-wallet verdict.
func (a *App) VerifyMode(ctx context.Context, deps *Dependencies) error {
	if len(a.wallets) == 0 {
		return fmt.Errorf("app: verify mode requires at least one -wallet")
	}

	report, err := deps.Verify.Verify(ctx, a.wallets)
	if err != nil {
		return fmt.Errorf("app: verify mode: %w", err)
	}

	for _, v := range report.Verdicts {
		switch {
		case v.Err != nil:
			fmt.Printf("%s ERROR %v\n", v.Wallet, v.Err)
		case v.Agrees:
			fmt.Printf("%s OK computed=%.2f reference=%.2f confidence=%s\n",
				v.Wallet, v.Computed, v.Reference, v.Confidence)
		default:
			fmt.Printf("%s MISMATCH computed=%.2f reference=%.2f diff=%.2f confidence=%s\n",
				v.Wallet, v.Computed, v.Reference, v.Diff, v.Confidence)
		}
	}

	fmt.Printf("%d/%d wallets agree\n", report.Agreeing, report.Total)
	if report.Agreeing < report.Total {
		return fmt.Errorf("app: verify mode: %d wallets disagree", report.Total-report.Agreeing)
	}
	return nil
}
