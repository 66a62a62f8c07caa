// Package pipeline schedules the background work of full mode: agent
// generation cycles, portfolio valuation, settlement sync, feed warming and
// archival.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyagents/internal/domain"
	"github.com/alanyoungcy/polyagents/internal/metrics"
	"github.com/alanyoungcy/polyagents/internal/notify"
)

// Generator runs one agent's generation cycle.
type Generator interface {
	Agents() []domain.AgentProfile
	GenerateAgentTrades(ctx context.Context, agentID string) ([]domain.AgentTrade, error)
}

// Portfolios revalues open positions and books settled markets.
type Portfolios interface {
	ValueAll(ctx context.Context, agentIDs []string) error
	SyncSettlements(ctx context.Context) (int, error)
}

// Config sets the scheduler cadence. Zero intervals disable their loop,
// except CycleInterval which is required by Run.
type Config struct {
	CycleInterval      time.Duration
	ValuationInterval  time.Duration
	SettlementInterval time.Duration
	ScrapeInterval     time.Duration
	ArchiveCron        string
}

// CycleResult is the outcome of one agent within a cycle.
type CycleResult struct {
	AgentID string
	Trades  []domain.AgentTrade
	Skipped bool
	Err     error
}

// Orchestrator runs the full-mode loops.
type Orchestrator struct {
	gen        Generator
	portfolios Portfolios
	locks      domain.LockManager
	scraper    *Scraper
	archiver   *Archiver
	notifier   *notify.Notifier
	cfg        Config
	logger     *slog.Logger
}

// NewOrchestrator creates an Orchestrator. locks, scraper, archiver and
// notifier may be nil; without locks every cycle runs unguarded.
func NewOrchestrator(
	gen Generator,
	portfolios Portfolios,
	locks domain.LockManager,
	scraper *Scraper,
	archiver *Archiver,
	notifier *notify.Notifier,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		gen:        gen,
		portfolios: portfolios,
		locks:      locks,
		scraper:    scraper,
		archiver:   archiver,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "orchestrator")),
	}
}

// Run starts every enabled loop and blocks until ctx is cancelled or a loop
// fails.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.cfg.CycleInterval <= 0 {
		return fmt.Errorf("pipeline: cycle interval must be > 0")
	}
	o.logger.InfoContext(ctx, "orchestrator: starting",
		slog.Duration("cycle_interval", o.cfg.CycleInterval),
		slog.Duration("valuation_interval", o.cfg.ValuationInterval),
		slog.Duration("settlement_interval", o.cfg.SettlementInterval),
		slog.String("archive_cron", o.cfg.ArchiveCron),
	)

	g, ctx := errgroup.WithContext(ctx)

	if o.scraper != nil && o.cfg.ScrapeInterval > 0 {
		g.Go(func() error {
			return cleanExit(ctx, o.scraper.RunLoop(ctx, o.cfg.ScrapeInterval))
		})
	}

	g.Go(func() error {
		return cleanExit(ctx, every(ctx, o.cfg.CycleInterval, true, func(ctx context.Context) {
			o.RunCycle(ctx)
		}))
	})

	if o.cfg.ValuationInterval > 0 {
		g.Go(func() error {
			return cleanExit(ctx, every(ctx, o.cfg.ValuationInterval, false, o.value))
		})
	}

	if o.cfg.SettlementInterval > 0 {
		g.Go(func() error {
			return cleanExit(ctx, every(ctx, o.cfg.SettlementInterval, false, o.settle))
		})
	}

	if o.archiver != nil && o.cfg.ArchiveCron != "" {
		g.Go(func() error {
			return cleanExit(ctx, o.archiver.RunCron(ctx, o.cfg.ArchiveCron))
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("orchestrator: stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("orchestrator: stopped")
	return nil
}

// RunCycle generates for every agent in roster order. An agent whose lock is
// held by another process is skipped for this cycle.
func (o *Orchestrator) RunCycle(ctx context.Context) []CycleResult {
	agents := o.gen.Agents()
	results := make([]CycleResult, 0, len(agents))
	opened := 0
	for _, agent := range agents {
		if ctx.Err() != nil {
			break
		}
		res := o.runAgent(ctx, agent.ID)
		opened += len(res.Trades)
		results = append(results, res)
	}
	o.logger.InfoContext(ctx, "orchestrator: cycle complete",
		slog.Int("agents", len(results)),
		slog.Int("trades_opened", opened),
	)
	return results
}

func (o *Orchestrator) runAgent(ctx context.Context, agentID string) CycleResult {
	res := CycleResult{AgentID: agentID}

	if o.locks != nil {
		unlock, err := o.locks.Acquire(ctx, "generate:"+agentID, o.lockTTL())
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			metrics.CyclesSkipped.WithLabelValues(agentID, "lock_held").Inc()
			o.logger.InfoContext(ctx, "orchestrator: agent busy elsewhere, skipping", slog.String("agent", agentID))
			res.Skipped = true
			return res
		case err != nil:
			o.logger.WarnContext(ctx, "orchestrator: lock unavailable, running unguarded",
				slog.String("agent", agentID),
				slog.String("error", err.Error()),
			)
		default:
			defer unlock()
		}
	}

	res.Trades, res.Err = o.gen.GenerateAgentTrades(ctx, agentID)
	if res.Err != nil {
		o.logger.ErrorContext(ctx, "orchestrator: agent cycle failed",
			slog.String("agent", agentID),
			slog.String("error", res.Err.Error()),
		)
		if o.notifier != nil {
			if err := o.notifier.CycleFailed(ctx, agentID, res.Err); err != nil {
				o.logger.WarnContext(ctx, "orchestrator: notify failed", slog.String("error", err.Error()))
			}
		}
	}
	return res
}

// lockTTL bounds a crashed holder's lock to one cycle.
func (o *Orchestrator) lockTTL() time.Duration {
	if o.cfg.CycleInterval > 0 {
		return o.cfg.CycleInterval
	}
	return 5 * time.Minute
}

func (o *Orchestrator) value(ctx context.Context) {
	agents := o.gen.Agents()
	ids := make([]string, len(agents))
	for i, a := range agents {
		ids[i] = a.ID
	}
	if err := o.portfolios.ValueAll(ctx, ids); err != nil {
		o.logger.WarnContext(ctx, "orchestrator: valuation failed", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) settle(ctx context.Context) {
	n, err := o.portfolios.SyncSettlements(ctx)
	if err != nil {
		o.logger.WarnContext(ctx, "orchestrator: settlement sync failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		o.logger.InfoContext(ctx, "orchestrator: trades settled", slog.Int("count", n))
	}
}

// every calls fn on each tick, and once up front when immediate is set,
// until ctx is done.
func every(ctx context.Context, interval time.Duration, immediate bool, fn func(context.Context)) error {
	if immediate {
		fn(ctx)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// cleanExit turns a loop's cancellation error into a clean stop.
func cleanExit(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}
