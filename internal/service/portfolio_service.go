package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyagents/internal/domain"
	"github.com/alanyoungcy/polyagents/internal/feed"
	"github.com/alanyoungcy/polyagents/internal/ledger"
	"github.com/alanyoungcy/polyagents/internal/metrics"
	"github.com/alanyoungcy/polyagents/internal/notify"
)

// PortfolioService keeps the ledger in step with market prices and with
// settlements recorded by the external settlement process.
type PortfolioService struct {
	ledger     *ledger.Ledger
	markets    MarketSource
	trades     domain.TradeStore
	portfolios domain.PortfolioStore
	notifier   *notify.Notifier
	events     eventPublisher
	// drawdownAlert is the drawdown fraction that triggers a notification;
	// 0 disables alerts.
	drawdownAlert float64
	logger        *slog.Logger
}

// NewPortfolioService creates a PortfolioService. bus and notifier may be nil.
func NewPortfolioService(
	l *ledger.Ledger,
	markets MarketSource,
	trades domain.TradeStore,
	portfolios domain.PortfolioStore,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	drawdownAlert float64,
	logger *slog.Logger,
) *PortfolioService {
	logger = logger.With(slog.String("component", "portfolio_service"))
	return &PortfolioService{
		ledger:        l,
		markets:       markets,
		trades:        trades,
		portfolios:    portfolios,
		notifier:      notifier,
		events:        eventPublisher{bus: bus, logger: logger, now: time.Now},
		drawdownAlert: drawdownAlert,
		logger:        logger,
	}
}

// Restore loads persisted portfolios into the ledger. It is called once at
// startup before any cycle runs.
func (s *PortfolioService) Restore(ctx context.Context) error {
	books, err := s.portfolios.List(ctx)
	if err != nil {
		return fmt.Errorf("portfolio_service: list portfolios: %w", err)
	}
	for _, p := range books {
		s.ledger.Load(p)
		metrics.AgentEquity.WithLabelValues(p.AgentID).Set(p.CurrentCapitalUSD)
	}
	s.logger.InfoContext(ctx, "portfolio_service: restored portfolios", slog.Int("count", len(books)))
	return nil
}

// Portfolio returns the live portfolio of agentID.
func (s *PortfolioService) Portfolio(agentID string) domain.AgentPortfolio {
	return s.ledger.Portfolio(agentID)
}

// ValueAll marks every agent's open positions against the current market
// list and persists the result.
func (s *PortfolioService) ValueAll(ctx context.Context, agentIDs []string) error {
	markets, err := s.markets.FetchAllMarkets(ctx)
	if err != nil {
		return fmt.Errorf("portfolio_service: fetch markets: %w", err)
	}
	lookup := feed.Lookup(markets)

	for _, id := range agentIDs {
		before := s.ledger.Portfolio(id)
		after := s.ledger.Revalue(id, lookup)
		s.persist(ctx, after)
		s.checkDrawdown(ctx, before, after)
	}
	s.logger.DebugContext(ctx, "portfolio_service: valued portfolios",
		slog.Int("agents", len(agentIDs)),
		slog.Int("markets", len(lookup)),
	)
	return nil
}

// SyncSettlements closes ledger positions whose trade has been marked
// CLOSED in the store and books the settled PnL. It returns the number of
// positions closed.
func (s *PortfolioService) SyncSettlements(ctx context.Context) (int, error) {
	closed := 0
	for _, p := range s.ledger.All() {
		changed := false
		before := p
		for marketID, pos := range p.OpenPositions {
			if pos.TradeID == "" {
				continue
			}
			t, err := s.trades.GetByID(ctx, pos.TradeID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return closed, fmt.Errorf("portfolio_service: get trade %s: %w", pos.TradeID, err)
			}
			if !t.IsClosed() {
				continue
			}
			pnl := 0.0
			if t.PnlUSD != nil {
				pnl = *t.PnlUSD
			}
			if _, ok := s.ledger.ClosePosition(p.AgentID, marketID, pnl); ok {
				closed++
				changed = true
				s.logger.InfoContext(ctx, "portfolio_service: position settled",
					slog.String("agent_id", p.AgentID),
					slog.String("market_id", marketID),
					slog.Float64("pnl_usd", pnl),
				)
			}
		}
		if changed {
			after := s.ledger.Portfolio(p.AgentID)
			s.persist(ctx, after)
			s.checkDrawdown(ctx, before, after)
		}
	}
	return closed, nil
}

func (s *PortfolioService) persist(ctx context.Context, p domain.AgentPortfolio) {
	metrics.AgentEquity.WithLabelValues(p.AgentID).Set(p.CurrentCapitalUSD)
	if err := s.portfolios.Upsert(ctx, p); err != nil {
		s.logger.WarnContext(ctx, "portfolio_service: save portfolio failed",
			slog.String("agent_id", p.AgentID),
			slog.String("error", err.Error()),
		)
	}
	s.events.publish(ctx, domain.ChannelPortfolios, "portfolio_updated", p.AgentID, p)
}

// checkDrawdown alerts once, when drawdown first crosses the threshold.
func (s *PortfolioService) checkDrawdown(ctx context.Context, before, after domain.AgentPortfolio) {
	if s.drawdownAlert <= 0 {
		return
	}
	if before.MaxDrawdownPct >= s.drawdownAlert || after.MaxDrawdownPct < s.drawdownAlert {
		return
	}
	s.logger.WarnContext(ctx, "portfolio_service: drawdown threshold crossed",
		slog.String("agent_id", after.AgentID),
		slog.Float64("max_drawdown_pct", after.MaxDrawdownPct),
	)
	if err := s.notifier.Drawdown(ctx, after, s.drawdownAlert); err != nil {
		s.logger.WarnContext(ctx, "portfolio_service: notify failed", slog.String("error", err.Error()))
	}
}
