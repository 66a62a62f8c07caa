package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyagents/internal/cache"
	"github.com/alanyoungcy/polyagents/internal/decision"
	"github.com/alanyoungcy/polyagents/internal/domain"
	"github.com/alanyoungcy/polyagents/internal/ledger"
	"github.com/alanyoungcy/polyagents/internal/metrics"
	"github.com/alanyoungcy/polyagents/internal/notify"
	"github.com/alanyoungcy/polyagents/internal/rotation"
	"github.com/alanyoungcy/polyagents/internal/scoring"
)

// MarketSource is the cached market collaborator.
type MarketSource interface {
	FetchAllMarkets(ctx context.Context) ([]domain.Market, error)
}

// NewsSource is the cached news collaborator.
type NewsSource interface {
	FetchLatestNews(ctx context.Context) ([]domain.NewsArticle, error)
}

// Decider produces a decision for one candidate. *decision.Engine is the
// production implementation.
type Decider interface {
	Decide(ctx context.Context, req decision.Request) decision.Result
}

// GeneratorConfig holds the trade threshold. A candidate becomes a trade
// when its raw score reaches MinScore, its confidence reaches MinConfidence
// and the ledger sizes it above zero; anything else is research.
type GeneratorConfig struct {
	MinScore      float64
	MinConfidence float64
}

// DefaultMinScore is the raw score a candidate needs to be traded.
const DefaultMinScore = 5.0

// GeneratorDeps are the collaborators of a Generator. Bus and Notifier may
// be nil.
type GeneratorDeps struct {
	Agents     []domain.AgentProfile
	Markets    MarketSource
	News       NewsSource
	Decider    Decider
	Caches     *cache.Registry
	Ledger     *ledger.Ledger
	Trades     domain.TradeStore
	Research   domain.ResearchStore
	Portfolios domain.PortfolioStore
	Bus        domain.SignalBus
	Notifier   *notify.Notifier
	Now        func() time.Time
}

// Generator runs agent cycles: score, rotate, decide, then trade or record
// research.
type Generator struct {
	agents []domain.AgentProfile
	byID   map[string]domain.AgentProfile
	deps   GeneratorDeps
	cfg    GeneratorConfig
	events eventPublisher
	logger *slog.Logger
	now    func() time.Time

	// cycles holds a one-slot semaphore per agent so that cycles of the
	// same agent never interleave.
	cycles map[string]chan struct{}
}

// NewGenerator creates a Generator over the agent roster.
func NewGenerator(deps GeneratorDeps, cfg GeneratorConfig, logger *slog.Logger) *Generator {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	byID := make(map[string]domain.AgentProfile, len(deps.Agents))
	cycles := make(map[string]chan struct{}, len(deps.Agents))
	for _, a := range deps.Agents {
		byID[a.ID] = a
		cycles[a.ID] = make(chan struct{}, 1)
	}
	logger = logger.With(slog.String("component", "generator"))
	return &Generator{
		agents: deps.Agents,
		byID:   byID,
		deps:   deps,
		cfg:    cfg,
		events: eventPublisher{bus: deps.Bus, logger: logger, now: deps.Now},
		logger: logger,
		now:    deps.Now,
		cycles: cycles,
	}
}

// Agents returns the roster in configuration order.
func (g *Generator) Agents() []domain.AgentProfile {
	out := make([]domain.AgentProfile, len(g.agents))
	copy(out, g.agents)
	return out
}

// Agent looks up one profile.
func (g *Generator) Agent(id string) (domain.AgentProfile, bool) {
	a, ok := g.byID[id]
	return a, ok
}

// GetAgentResearch returns the research notes of the agent's latest cycle.
func (g *Generator) GetAgentResearch(agentID string) []domain.ResearchDecision {
	return g.deps.Caches.Research.Get(agentID)
}

// GenerateAgentTrades runs one cycle for agentID and returns the trades it
// opened, or the cached trades of the last cycle while they are still
// valid. Cycles of one agent run one at a time; a caller waiting for the
// running cycle gives up when ctx ends. Apart from that it only fails for an
// unknown agent or when no market data can be obtained at all; callers
// should treat the latter as "try again later".
func (g *Generator) GenerateAgentTrades(ctx context.Context, agentID string) ([]domain.AgentTrade, error) {
	agent, ok := g.byID[agentID]
	if !ok {
		return nil, fmt.Errorf("generator: agent %q: %w", agentID, domain.ErrUnknownAgent)
	}

	slot := g.cycles[agentID]
	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("generator: wait for %s cycle: %w", agentID, ctx.Err())
	}
	defer func() { <-slot }()

	start := time.Now()
	defer func() {
		metrics.CycleDuration.WithLabelValues(agentID).Observe(time.Since(start).Seconds())
	}()

	markets, news, err := g.fetchInputs(ctx)
	if err != nil {
		return nil, err
	}

	valid := make([]domain.Market, 0, len(markets))
	for _, m := range markets {
		if m.ID != "" {
			valid = append(valid, m)
		}
	}
	if dropped := len(markets) - len(valid); dropped > 0 {
		g.logger.WarnContext(ctx, "generator: rejected markets without id",
			slog.String("agent_id", agentID),
			slog.Int("count", dropped),
		)
	}
	marketIDs := domain.MarketIDs(valid)

	if cached, ok := g.deps.Caches.Trades.Get(agentID, marketIDs); ok {
		g.logger.DebugContext(ctx, "generator: trade cache hit",
			slog.String("agent_id", agentID),
			slog.Int("trades", len(cached)),
		)
		return cached, nil
	}

	now := g.now()
	index := scoring.NewNewsIndex(news)
	ranked := scoring.RankForAgent(valid, agent, index, now)
	candidates := rotation.Select(ranked, agent.ID, agent.MaxTrades, now)
	scoring.SortByAgentScore(candidates)

	trades := make([]domain.AgentTrade, 0, agent.MaxTrades)
	var research []domain.ResearchDecision

	for i, c := range candidates {
		if len(trades) >= agent.MaxTrades {
			break
		}
		if ctx.Err() != nil {
			g.logger.WarnContext(ctx, "generator: cycle cancelled",
				slog.String("agent_id", agentID),
				slog.String("error", ctx.Err().Error()),
			)
			break
		}
		if g.deps.Ledger.HasOpenPosition(agent.ID, c.ID) {
			continue
		}

		related := index.Matching(c.Question)
		d := g.decide(ctx, agent, c, related, i)

		size := g.deps.Ledger.Size(agent.ID, agent.Risk, d.Confidence)
		if g.qualifies(c, d, size) {
			t, err := g.openTrade(ctx, agent, c, d, size)
			if err != nil {
				g.logger.ErrorContext(ctx, "generator: open trade failed",
					slog.String("agent_id", agentID),
					slog.String("market_id", c.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			trades = append(trades, t)
			continue
		}
		research = append(research, g.researchNote(agent, c, d))
	}

	g.recordResearch(ctx, agent.ID, research)
	g.deps.Caches.Trades.Put(agent.ID, trades, marketIDs)

	g.logger.InfoContext(ctx, "generator: cycle complete",
		slog.String("agent_id", agentID),
		slog.Int("markets", len(valid)),
		slog.Int("candidates", len(candidates)),
		slog.Int("trades", len(trades)),
		slog.Int("research", len(research)),
		slog.Int("news", len(news)),
	)
	return trades, nil
}

// fetchInputs loads markets and news concurrently. Only a market failure is
// fatal; the cycle runs without news otherwise.
func (g *Generator) fetchInputs(ctx context.Context) ([]domain.Market, []domain.NewsArticle, error) {
	var (
		markets []domain.Market
		news    []domain.NewsArticle
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		markets, err = g.deps.Markets.FetchAllMarkets(egCtx)
		if err != nil && !errors.Is(err, domain.ErrMarketData) {
			err = fmt.Errorf("%w: %w", domain.ErrMarketData, err)
		}
		return err
	})
	eg.Go(func() error {
		if g.deps.News == nil {
			return nil
		}
		var err error
		news, err = g.deps.News.FetchLatestNews(egCtx)
		if err != nil {
			g.logger.WarnContext(ctx, "generator: news unavailable, continuing without",
				slog.String("error", err.Error()),
			)
			news = nil
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, nil, fmt.Errorf("generator: fetch markets: %w", err)
	}
	return markets, news, nil
}

// decide reuses a provider decision cached for the same agent and market
// within the trade TTL before asking the engine again.
func (g *Generator) decide(ctx context.Context, agent domain.AgentProfile, c domain.ScoredMarket, related []domain.NewsArticle, index int) domain.Decision {
	if d, ok := g.deps.Caches.Trades.Decision(agent.ID, c.ID); ok {
		return d
	}
	res := g.deps.Decider.Decide(ctx, decision.Request{
		Agent:     agent,
		Candidate: c,
		News:      related,
		Index:     index,
	})
	if res.Kind == decision.KindOK {
		g.deps.Caches.Trades.PutDecision(agent.ID, c.ID, res.Decision)
	}
	return res.Decision
}

func (g *Generator) qualifies(c domain.ScoredMarket, d domain.Decision, size float64) bool {
	if d.Side != domain.SideYes && d.Side != domain.SideNo {
		return false
	}
	minScore := g.cfg.MinScore
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	return c.Score >= minScore && d.Confidence >= g.cfg.MinConfidence && size > 0
}

func (g *Generator) openTrade(ctx context.Context, agent domain.AgentProfile, c domain.ScoredMarket, d domain.Decision, size float64) (domain.AgentTrade, error) {
	t := domain.AgentTrade{
		ID:               uuid.NewString(),
		AgentID:          agent.ID,
		MarketID:         c.ID,
		Question:         c.Question,
		Category:         c.Category,
		Side:             d.Side,
		Confidence:       d.Confidence,
		SizeUSD:          size,
		EntryProbability: c.CurrentProbability,
		Status:           domain.TradeStatusOpen,
		Reasoning:        d.Reasoning,
		DecisionSource:   d.Source,
		OpenedAt:         g.now().UTC(),
	}

	// The ledger slot is reserved first so a stored OPEN trade always has a
	// position behind it.
	portfolio, err := g.deps.Ledger.Open(t)
	if err != nil {
		return domain.AgentTrade{}, fmt.Errorf("generator: open position: %w", err)
	}
	if err := g.deps.Trades.Insert(ctx, t); err != nil {
		g.deps.Ledger.Discard(agent.ID, t.MarketID, t.ID)
		return domain.AgentTrade{}, fmt.Errorf("generator: insert trade: %w", err)
	}
	if err := g.deps.Portfolios.Upsert(ctx, portfolio); err != nil {
		g.logger.WarnContext(ctx, "generator: save portfolio failed",
			slog.String("agent_id", agent.ID),
			slog.String("error", err.Error()),
		)
	}

	metrics.TradesOpened.WithLabelValues(agent.ID, string(t.Side)).Inc()
	metrics.AgentEquity.WithLabelValues(agent.ID).Set(portfolio.CurrentCapitalUSD)
	g.events.publish(ctx, domain.ChannelAgentTrades, "trade_opened", agent.ID, t)
	g.events.publish(ctx, domain.ChannelPortfolios, "portfolio_updated", agent.ID, portfolio)

	name := agent.DisplayName
	if name == "" {
		name = agent.ID
	}
	if err := g.deps.Notifier.TradeOpened(ctx, name, t); err != nil {
		g.logger.WarnContext(ctx, "generator: notify failed", slog.String("error", err.Error()))
	}

	g.logger.InfoContext(ctx, "generator: trade opened",
		slog.String("agent_id", agent.ID),
		slog.String("market_id", c.ID),
		slog.String("side", string(t.Side)),
		slog.Float64("size_usd", t.SizeUSD),
		slog.Float64("confidence", t.Confidence),
		slog.String("source", t.DecisionSource),
	)
	return t, nil
}

func (g *Generator) researchNote(agent domain.AgentProfile, c domain.ScoredMarket, d domain.Decision) domain.ResearchDecision {
	side := d.Side
	if d.Confidence < 0.5 {
		side = domain.SideNeutral
	}
	return domain.ResearchDecision{
		ID:             uuid.NewString(),
		AgentID:        agent.ID,
		MarketID:       c.ID,
		Question:       c.Question,
		Side:           side,
		Confidence:     d.Confidence,
		Score:          c.Score,
		Reasoning:      d.Reasoning,
		DecisionSource: d.Source,
		Timestamp:      g.now().UTC(),
	}
}

// recordResearch replaces the agent's latest research and appends it to the
// persistent history.
func (g *Generator) recordResearch(ctx context.Context, agentID string, notes []domain.ResearchDecision) {
	g.deps.Caches.Research.Replace(agentID, notes)
	if len(notes) == 0 {
		return
	}
	metrics.ResearchNotes.WithLabelValues(agentID).Add(float64(len(notes)))
	if err := g.deps.Research.InsertBatch(ctx, notes); err != nil {
		g.logger.WarnContext(ctx, "generator: persist research failed",
			slog.String("agent_id", agentID),
			slog.String("error", err.Error()),
		)
	}
	g.events.publish(ctx, domain.ChannelAgentResearch, "research_recorded", agentID, notes)
}
