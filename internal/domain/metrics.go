package domain

import (
	"fmt"
	"time"
)

// TimeWindow bounds leaderboard queries by trade open time.
type TimeWindow string

const (
	WindowAll TimeWindow = "all"
	Window30d TimeWindow = "30d"
	Window7d  TimeWindow = "7d"
	Window24h TimeWindow = "24h"
)

// ParseTimeWindow accepts the string forms of the windows; empty means all.
func ParseTimeWindow(s string) (TimeWindow, error) {
	switch TimeWindow(s) {
	case "", WindowAll:
		return WindowAll, nil
	case Window30d, Window7d, Window24h:
		return TimeWindow(s), nil
	default:
		return "", fmt.Errorf("unknown window %q", s)
	}
}

// Since returns the earliest OpenedAt included by the window, or the zero
// time for all-time.
func (w TimeWindow) Since(now time.Time) time.Time {
	switch w {
	case Window30d:
		return now.Add(-30 * 24 * time.Hour)
	case Window7d:
		return now.Add(-7 * 24 * time.Hour)
	case Window24h:
		return now.Add(-24 * time.Hour)
	default:
		return time.Time{}
	}
}

// CategoryPnL is the signed PnL of closed trades in one category.
type CategoryPnL struct {
	Category string  `json:"category"`
	PnlUSD   float64 `json:"pnl_usd"`
	Trades   int     `json:"trades"`
}

// AgentMetrics is derived on demand and never persisted.
type AgentMetrics struct {
	AgentID            string        `json:"agent_id"`
	DisplayName        string        `json:"display_name,omitempty"`
	Window             TimeWindow    `json:"window"`
	TotalTrades        int           `json:"total_trades"`
	OpenTrades         int           `json:"open_trades"`
	ClosedTrades       int           `json:"closed_trades"`
	Wins               int           `json:"wins"`
	Losses             int           `json:"losses"`
	WinRate            float64       `json:"win_rate"`
	TotalPnlUSD        float64       `json:"total_pnl_usd"`
	RealizedPnlUSD     float64       `json:"realized_pnl_usd"`
	UnrealizedPnlUSD   float64       `json:"unrealized_pnl_usd"`
	ROI                float64       `json:"roi"`
	CurrentCapitalUSD  float64       `json:"current_capital_usd"`
	MaxDrawdownPct     float64       `json:"max_drawdown_pct"`
	AvgHoldingMinutes  float64       `json:"avg_holding_minutes"`
	Categories         []CategoryPnL `json:"categories"`
	BestCategory       string        `json:"best_category,omitempty"`
	WorstCategory      string        `json:"worst_category,omitempty"`
}

// ConsensusSide is the majority view on a market; NONE marks a tie.
type ConsensusSide string

const (
	ConsensusYes  ConsensusSide = "YES"
	ConsensusNo   ConsensusSide = "NO"
	ConsensusNone ConsensusSide = "NONE"
)

// ConsensusMetrics describes agreement among agents holding the same market.
type ConsensusMetrics struct {
	MarketID          string        `json:"market_id"`
	Question          string        `json:"question"`
	AgentCount        int           `json:"agent_count"`
	YesCount          int           `json:"yes_count"`
	NoCount           int           `json:"no_count"`
	ConsensusSide     ConsensusSide `json:"consensus_side"`
	ConsensusStrength float64       `json:"consensus_strength"`
	Agents            []string      `json:"agents"`
}

// ConflictMetrics describes a market where agents hold opposite sides.
type ConflictMetrics struct {
	MarketID   string   `json:"market_id"`
	Question   string   `json:"question"`
	YesAgents  []string `json:"yes_agents"`
	NoAgents   []string `json:"no_agents"`
	AgentCount int      `json:"agent_count"`
	Intensity  float64  `json:"intensity"`
}
