package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func pnl(v float64) *float64 { return &v }

func closedTrade(agent, market, cat string, p float64, opened, closed time.Time) domain.AgentTrade {
	return domain.AgentTrade{
		AgentID:  agent,
		MarketID: market,
		Category: cat,
		Side:     domain.SideYes,
		Status:   domain.TradeStatusClosed,
		PnlUSD:   pnl(p),
		OpenedAt: opened,
		ClosedAt: &closed,
	}
}

func openTrade(agent, market string, side domain.Side, opened time.Time) domain.AgentTrade {
	return domain.AgentTrade{
		AgentID:  agent,
		MarketID: market,
		Question: "Q " + market,
		Side:     side,
		Status:   domain.TradeStatusOpen,
		OpenedAt: opened,
	}
}

func TestWinRateExcludesOpenTrades(t *testing.T) {
	trades := []domain.AgentTrade{
		closedTrade("a", "m1", "Politics", 5, now.Add(-2*time.Hour), now.Add(-time.Hour)),
		closedTrade("a", "m2", "Crypto", -3, now.Add(-3*time.Hour), now.Add(-time.Hour)),
		openTrade("a", "m3", domain.SideYes, now.Add(-time.Hour)),
	}
	m := CalculateAgentMetrics("a", ledgerPortfolio(), trades, domain.WindowAll, now)

	assert.Equal(t, 0.5, m.WinRate)
	assert.Equal(t, 3, m.TotalTrades)
	assert.Equal(t, 1, m.OpenTrades)
	assert.Equal(t, 2, m.ClosedTrades)
	assert.Equal(t, 2.0, m.RealizedPnlUSD)
	assert.Equal(t, 90.0, m.AvgHoldingMinutes)
	assert.Equal(t, "Politics", m.BestCategory)
	assert.Equal(t, "Crypto", m.WorstCategory)
}

func ledgerPortfolio() domain.AgentPortfolio {
	return domain.AgentPortfolio{
		AgentID:            "a",
		StartingCapitalUSD: 10000,
		CurrentCapitalUSD:  10012,
		MaxDrawdownPct:     0.01,
		OpenPositions: map[string]domain.AgentPosition{
			"m3": {MarketID: "m3", UnrealizedPnl: 10, OpenedAt: now.Add(-time.Hour)},
			"m9": {MarketID: "m9", UnrealizedPnl: 40, OpenedAt: now.Add(-10 * 24 * time.Hour)},
		},
	}
}

func TestMetricsWindowFiltersByOpenTime(t *testing.T) {
	trades := []domain.AgentTrade{
		closedTrade("a", "old", "Sports", 100, now.Add(-10*24*time.Hour), now.Add(-9*24*time.Hour)),
		closedTrade("a", "new", "Sports", -4, now.Add(-time.Hour), now),
		closedTrade("b", "other", "Sports", 50, now.Add(-time.Hour), now),
	}

	week := CalculateAgentMetrics("a", ledgerPortfolio(), trades, domain.Window7d, now)
	assert.Equal(t, 1, week.TotalTrades)
	assert.Equal(t, 0.0, week.WinRate)
	assert.Equal(t, -4.0, week.RealizedPnlUSD)
	assert.Equal(t, 10.0, week.UnrealizedPnlUSD, "position opened before the window is excluded")
	assert.Equal(t, 6.0, week.TotalPnlUSD)

	all := CalculateAgentMetrics("a", ledgerPortfolio(), trades, domain.WindowAll, now)
	assert.Equal(t, 2, all.TotalTrades)
	assert.Equal(t, 146.0, all.TotalPnlUSD)
	assert.InDelta(t, 0.0146, all.ROI, 1e-9)
	assert.Equal(t, 10012.0, all.CurrentCapitalUSD)
	assert.Equal(t, 0.01, all.MaxDrawdownPct)
}

func TestMetricsEmpty(t *testing.T) {
	m := CalculateAgentMetrics("z", domain.AgentPortfolio{}, nil, domain.Window24h, now)
	assert.Zero(t, m.WinRate)
	assert.Zero(t, m.AvgHoldingMinutes)
	assert.Empty(t, m.BestCategory)
	assert.NotNil(t, m.Categories)
}

func TestBestWorstTiesKeepFirstSeen(t *testing.T) {
	best, worst := bestWorst([]domain.CategoryPnL{
		{Category: "A", PnlUSD: 1},
		{Category: "B", PnlUSD: 1},
		{Category: "C", PnlUSD: 1},
	})
	assert.Equal(t, "A", best)
	assert.Equal(t, "A", worst)
}

func TestConsensusMajority(t *testing.T) {
	trades := []domain.AgentTrade{
		openTrade("a", "m", domain.SideYes, now),
		openTrade("b", "m", domain.SideYes, now),
		openTrade("c", "m", domain.SideNo, now),
		openTrade("a", "solo", domain.SideYes, now),
	}
	got := FindConsensusMarkets(trades)
	require.Len(t, got, 1)
	assert.Equal(t, "m", got[0].MarketID)
	assert.Equal(t, domain.ConsensusYes, got[0].ConsensusSide)
	assert.InDelta(t, 2.0/3.0, got[0].ConsensusStrength, 1e-12)
	assert.Equal(t, 3, got[0].AgentCount)
	assert.Equal(t, []string{"a", "b", "c"}, got[0].Agents)
}

func TestConsensusTieAndOrdering(t *testing.T) {
	closed := openTrade("e", "tie", domain.SideYes, now)
	closed.Status = domain.TradeStatusClosed
	trades := []domain.AgentTrade{
		openTrade("a", "tie", domain.SideYes, now),
		openTrade("b", "tie", domain.SideNo, now),
		closed,
		openTrade("a", "agree", domain.SideNo, now),
		openTrade("b", "agree", domain.SideNo, now),
	}
	got := FindConsensusMarkets(trades)
	require.Len(t, got, 2)
	assert.Equal(t, "agree", got[0].MarketID)
	assert.Equal(t, domain.ConsensusNo, got[0].ConsensusSide)
	assert.Equal(t, 1.0, got[0].ConsensusStrength)
	assert.Equal(t, domain.ConsensusNone, got[1].ConsensusSide)
	assert.Equal(t, 0.5, got[1].ConsensusStrength)
	assert.Equal(t, 2, got[1].AgentCount, "closed trades do not vote")
}

func TestConsensusLatestTradeVotes(t *testing.T) {
	trades := []domain.AgentTrade{
		openTrade("a", "m", domain.SideNo, now.Add(-time.Hour)),
		openTrade("a", "m", domain.SideYes, now),
		openTrade("b", "m", domain.SideYes, now),
	}
	got := FindConsensusMarkets(trades)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].AgentCount)
	assert.Equal(t, 2, got[0].YesCount)
}

func TestFindConflicts(t *testing.T) {
	trades := []domain.AgentTrade{
		openTrade("a", "x", domain.SideYes, now),
		openTrade("b", "x", domain.SideYes, now),
		openTrade("c", "x", domain.SideNo, now),
		openTrade("a", "y", domain.SideYes, now),
		openTrade("b", "y", domain.SideNo, now),
		openTrade("a", "z", domain.SideYes, now),
		openTrade("b", "z", domain.SideYes, now),
	}
	got := FindConflicts(trades)
	require.Len(t, got, 2)
	assert.Equal(t, "y", got[0].MarketID)
	assert.Equal(t, 1.0, got[0].Intensity)
	assert.Equal(t, "x", got[1].MarketID)
	assert.Equal(t, 0.5, got[1].Intensity)
	assert.Equal(t, []string{"a", "b"}, got[1].YesAgents)
	assert.Equal(t, []string{"c"}, got[1].NoAgents)
}

func TestRankAgents(t *testing.T) {
	in := []domain.AgentMetrics{
		{AgentID: "c", TotalPnlUSD: 10, WinRate: 0.2},
		{AgentID: "a", TotalPnlUSD: 50, WinRate: 0.1},
		{AgentID: "b", TotalPnlUSD: 10, WinRate: 0.9},
	}
	got := RankAgents(in)
	assert.Equal(t, "a", got[0].AgentID)
	assert.Equal(t, "b", got[1].AgentID)
	assert.Equal(t, "c", got[2].AgentID)
	assert.Equal(t, "c", in[0].AgentID)
}
