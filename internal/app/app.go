// Package app provides the top-level application lifecycle for the P&L
// reconciliation engine. It wires the stores, caches, market-data adapters
// and services together, then runs the configured operating mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Scotty108/Cascadian-sub010/internal/config"
)

// App is the root application object. It owns the configuration, the target
// wallet list from the command line, and a list of cleanup functions run in
// reverse order on shutdown.
type App struct {
	cfg     *config.Config
	wallets []string
	logger  *slog.Logger
	closers []func()
}

// New creates an App. wallets are the command-line targets; batch mode may
// leave them empty to process every wallet in the event store.
func New(cfg *config.Config, wallets []string, logger *slog.Logger) *App {
	return &App{
		cfg:     cfg,
		wallets: wallets,
		logger:  logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, dispatches to the configured mode, and blocks
// until it finishes or the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("event_source", a.cfg.Engine.EventSource),
		slog.Int("wallets", len(a.wallets)),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch strings.ToLower(a.cfg.Mode) {
	case "compute":
		return a.ComputeMode(ctx, deps)
	case "batch":
		return a.BatchMode(ctx, deps)
	case "verify":
		return a.VerifyMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. Safe to call
// multiple times.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
