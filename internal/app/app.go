// Package app wires the vmarket dependencies (stores, caches, chain
// contracts, sports providers, exports and notifications) and runs the
// configured mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-sql/civil"

	"github.com/vmarket/vmarket/internal/config"
	"github.com/vmarket/vmarket/internal/domain"
)

// JobArgs narrow a one-shot mode. Zero values mean "every league", "the
// local date for the mode", "every scheduler room" and "every market".
type JobArgs struct {
	League   domain.League
	Date     civil.Date
	Room     domain.Room
	MarketID int64
}

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	args    JobArgs
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, args JobArgs, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		args:   args,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, runs the configured mode and blocks until it
// finishes or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	svc, err := newServices(a.cfg, deps, a.logger)
	if err != nil {
		return fmt.Errorf("app: build services: %w", err)
	}

	switch strings.ToLower(a.cfg.Mode) {
	case "server":
		return a.ServerMode(ctx, deps, svc)
	case "scheduler":
		return a.SchedulerMode(ctx, deps, svc)
	case "full":
		return a.FullMode(ctx, deps, svc)
	case "fetch":
		return a.FetchMode(ctx, svc)
	case "create":
		return a.CreateMode(ctx, deps, svc)
	case "resolve":
		return a.ResolveMode(ctx, deps, svc)
	case "claim":
		return a.ClaimMode(ctx, deps, svc)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
