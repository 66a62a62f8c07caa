package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyagents/internal/pipeline"
	"github.com/alanyoungcy/polyagents/internal/server"
	"github.com/alanyoungcy/polyagents/internal/server/handler"
	"github.com/alanyoungcy/polyagents/internal/server/ws"
)

// ServeMode runs the HTTP API and websocket hub. Generation happens only on
// request.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies, svc *Services) error {
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, svc)
	return g.Wait()
}

// CycleMode runs one generation for every agent, books settlements and
// exits.
func (a *App) CycleMode(ctx context.Context, deps *Dependencies, svc *Services) error {
	orch := a.newOrchestrator(deps, svc)
	results := orch.RunCycle(ctx)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if _, err := svc.Portfolios.SyncSettlements(ctx); err != nil {
		a.logger.WarnContext(ctx, "app: settlement sync failed", slog.String("error", err.Error()))
	}
	a.logger.InfoContext(ctx, "app: cycle finished",
		slog.Int("agents", len(results)),
		slog.Int("failed", failed),
	)
	return nil
}

// FullMode runs the scheduler alongside the HTTP API.
func (a *App) FullMode(ctx context.Context, deps *Dependencies, svc *Services) error {
	g, ctx := errgroup.WithContext(ctx)

	orch := a.newOrchestrator(deps, svc)
	g.Go(func() error {
		return orch.Run(ctx)
	})

	a.startHTTPServer(ctx, g, deps, svc)
	return g.Wait()
}

func (a *App) newOrchestrator(deps *Dependencies, svc *Services) *pipeline.Orchestrator {
	gc := a.cfg.Generator

	var archiver *pipeline.Archiver
	if deps.Archiver != nil {
		archiver = pipeline.NewArchiver(deps.Archiver, gc.ArchiveAfterDays, a.logger)
	}

	return pipeline.NewOrchestrator(
		svc.Generator,
		svc.Portfolios,
		deps.Locks,
		pipeline.NewScraper(svc.Markets, svc.News, a.logger),
		archiver,
		deps.Notifier,
		pipeline.Config{
			CycleInterval:      gc.CycleInterval.Duration,
			ValuationInterval:  gc.ValuationInterval.Duration,
			SettlementInterval: gc.SettlementInterval.Duration,
			ScrapeInterval:     a.cfg.Polymarket.MarketTTL.Duration,
			ArchiveCron:        gc.ArchiveCron,
		},
		a.logger,
	)
}

func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *Services) {
	hub := ws.NewHub(deps.Bus, a.logger, ws.Config{
		Mode:       a.cfg.Mode,
		AgentCount: len(svc.Agents),
		StartedAt:  time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
	}, server.Handlers{
		Health:      handler.NewHealthHandler(a.cfg.Mode, deps.Checks, a.logger),
		Agents:      handler.NewAgentHandler(svc.Generator, svc.Portfolios, deps.Trades, deps.Research, a.logger),
		Leaderboard: handler.NewLeaderboardHandler(svc.Generator, svc.Leaderboard, a.logger),
	}, hub, deps.Limiter, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "app: HTTP server listening", slog.Int("port", a.cfg.Server.Port))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
