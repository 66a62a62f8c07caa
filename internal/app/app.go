// Package app owns the process lifecycle. It wires the infrastructure and
// services from configuration and runs the configured mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/polyagents/internal/config"
	"github.com/alanyoungcy/polyagents/internal/domain"
)

// App is the root application object. It owns the configuration, logger and
// a list of cleanup functions that run in reverse order on Close.
type App struct {
	cfg     *config.Config
	agents  []domain.AgentProfile
	logger  *slog.Logger
	closers []func()
}

// New creates an App for the given roster.
func New(cfg *config.Config, agents []domain.AgentProfile, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		agents: agents,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires dependencies, then runs the configured mode until ctx is
// cancelled (serve, full) or the work is done (cycle).
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "app: starting",
		slog.String("mode", a.cfg.Mode),
		slog.Int("agents", len(a.agents)),
	)

	deps, svc, err := a.Start(ctx)
	if err != nil {
		return err
	}

	switch strings.ToLower(a.cfg.Mode) {
	case "serve":
		return a.ServeMode(ctx, deps, svc)
	case "cycle":
		return a.CycleMode(ctx, deps, svc)
	case "full":
		return a.FullMode(ctx, deps, svc)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Start wires the infrastructure and services without running a mode. The
// CLI uses it for one-shot commands.
func (a *App) Start(ctx context.Context) (*Dependencies, *Services, error) {
	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	svc, err := BuildServices(ctx, a.cfg, a.agents, deps, a.logger)
	if err != nil {
		return nil, nil, err
	}
	return deps, svc, nil
}

// Close releases resources in reverse registration order. It is safe to
// call more than once.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
