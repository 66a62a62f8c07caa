package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/polyagents/internal/domain"
	"github.com/alanyoungcy/polyagents/internal/leaderboard"
	"github.com/alanyoungcy/polyagents/internal/ledger"
)

// LeaderboardService answers performance and consensus queries from the
// trade store and the live ledger. Results are recomputed on every call.
type LeaderboardService struct {
	agents []domain.AgentProfile
	trades domain.TradeStore
	ledger *ledger.Ledger
	now    func() time.Time
}

// NewLeaderboardService creates a LeaderboardService.
func NewLeaderboardService(agents []domain.AgentProfile, trades domain.TradeStore, l *ledger.Ledger, now func() time.Time) *LeaderboardService {
	if now == nil {
		now = time.Now
	}
	return &LeaderboardService{agents: agents, trades: trades, ledger: l, now: now}
}

// AgentMetrics computes one agent's metrics over window.
func (s *LeaderboardService) AgentMetrics(ctx context.Context, agent domain.AgentProfile, window domain.TimeWindow) (domain.AgentMetrics, error) {
	now := s.now()
	opts := domain.ListOpts{}
	if since := window.Since(now); !since.IsZero() {
		opts.Since = &since
	}
	trades, err := s.trades.ListByAgent(ctx, agent.ID, opts)
	if err != nil {
		return domain.AgentMetrics{}, fmt.Errorf("leaderboard_service: list trades of %s: %w", agent.ID, err)
	}
	m := leaderboard.CalculateAgentMetrics(agent.ID, s.ledger.Portfolio(agent.ID), trades, window, now)
	m.DisplayName = agent.DisplayName
	return m, nil
}

// Leaderboard ranks every agent over window.
func (s *LeaderboardService) Leaderboard(ctx context.Context, window domain.TimeWindow) ([]domain.AgentMetrics, error) {
	out := make([]domain.AgentMetrics, 0, len(s.agents))
	for _, a := range s.agents {
		m, err := s.AgentMetrics(ctx, a, window)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return leaderboard.RankAgents(out), nil
}

// Consensus returns markets held by two or more agents.
func (s *LeaderboardService) Consensus(ctx context.Context) ([]domain.ConsensusMetrics, error) {
	open, err := s.trades.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("leaderboard_service: list open trades: %w", err)
	}
	return leaderboard.FindConsensusMarkets(open), nil
}

// Conflicts returns markets where agents disagree.
func (s *LeaderboardService) Conflicts(ctx context.Context) ([]domain.ConflictMetrics, error) {
	open, err := s.trades.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("leaderboard_service: list open trades: %w", err)
	}
	return leaderboard.FindConflicts(open), nil
}
