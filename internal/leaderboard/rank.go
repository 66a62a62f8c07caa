package leaderboard

import (
	"sort"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

// RankAgents orders metrics by total PnL, then win rate, then agent id.
// The input slice is not modified.
func RankAgents(metrics []domain.AgentMetrics) []domain.AgentMetrics {
	out := make([]domain.AgentMetrics, len(metrics))
	copy(out, metrics)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalPnlUSD != out[j].TotalPnlUSD {
			return out[i].TotalPnlUSD > out[j].TotalPnlUSD
		}
		if out[i].WinRate != out[j].WinRate {
			return out[i].WinRate > out[j].WinRate
		}
		return out[i].AgentID < out[j].AgentID
	})
	return out
}
