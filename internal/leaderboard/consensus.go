package leaderboard

import (
	"sort"
	"time"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

// vote is one agent's current side on a market.
type vote struct {
	agentID  string
	side     domain.Side
	question string
	openedAt time.Time
}

// openVotes groups OPEN trades by market, keeping each agent's latest trade
// as its single vote. Markets are returned in first-seen order.
func openVotes(trades []domain.AgentTrade) (order []string, votes map[string]map[string]vote) {
	votes = make(map[string]map[string]vote)
	for _, t := range trades {
		if t.Status != domain.TradeStatusOpen || t.MarketID == "" {
			continue
		}
		if t.Side != domain.SideYes && t.Side != domain.SideNo {
			continue
		}
		byAgent, ok := votes[t.MarketID]
		if !ok {
			byAgent = make(map[string]vote)
			votes[t.MarketID] = byAgent
			order = append(order, t.MarketID)
		}
		if prev, seen := byAgent[t.AgentID]; seen && prev.openedAt.After(t.OpenedAt) {
			continue
		}
		byAgent[t.AgentID] = vote{agentID: t.AgentID, side: t.Side, question: t.Question, openedAt: t.OpenedAt}
	}
	return order, votes
}

func tally(byAgent map[string]vote) (yes, no []string, question string) {
	for _, v := range byAgent {
		if question == "" {
			question = v.question
		}
		if v.side == domain.SideYes {
			yes = append(yes, v.agentID)
		} else {
			no = append(no, v.agentID)
		}
	}
	sort.Strings(yes)
	sort.Strings(no)
	return yes, no, question
}

// FindConsensusMarkets reports every market held open by at least two
// agents with its majority side, NONE on an exact tie.
func FindConsensusMarkets(trades []domain.AgentTrade) []domain.ConsensusMetrics {
	order, votes := openVotes(trades)
	out := make([]domain.ConsensusMetrics, 0, len(order))
	for _, id := range order {
		byAgent := votes[id]
		if len(byAgent) < 2 {
			continue
		}
		yes, no, question := tally(byAgent)
		total := len(yes) + len(no)

		side := domain.ConsensusNone
		switch {
		case len(yes) > len(no):
			side = domain.ConsensusYes
		case len(no) > len(yes):
			side = domain.ConsensusNo
		}
		agents := append(append([]string{}, yes...), no...)
		sort.Strings(agents)

		out = append(out, domain.ConsensusMetrics{
			MarketID:          id,
			Question:          question,
			AgentCount:        total,
			YesCount:          len(yes),
			NoCount:           len(no),
			ConsensusSide:     side,
			ConsensusStrength: float64(max(len(yes), len(no))) / float64(total),
			Agents:            agents,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ConsensusStrength != out[j].ConsensusStrength {
			return out[i].ConsensusStrength > out[j].ConsensusStrength
		}
		if out[i].AgentCount != out[j].AgentCount {
			return out[i].AgentCount > out[j].AgentCount
		}
		return out[i].MarketID < out[j].MarketID
	})
	return out
}

// FindConflicts reports markets where at least one agent holds each side.
// Intensity is the minority share of the majority, 1.0 for an even split.
func FindConflicts(trades []domain.AgentTrade) []domain.ConflictMetrics {
	order, votes := openVotes(trades)
	out := make([]domain.ConflictMetrics, 0)
	for _, id := range order {
		yes, no, question := tally(votes[id])
		if len(yes) == 0 || len(no) == 0 {
			continue
		}
		out = append(out, domain.ConflictMetrics{
			MarketID:   id,
			Question:   question,
			YesAgents:  yes,
			NoAgents:   no,
			AgentCount: len(yes) + len(no),
			Intensity:  float64(min(len(yes), len(no))) / float64(max(len(yes), len(no))),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Intensity != out[j].Intensity {
			return out[i].Intensity > out[j].Intensity
		}
		if out[i].AgentCount != out[j].AgentCount {
			return out[i].AgentCount > out[j].AgentCount
		}
		return out[i].MarketID < out[j].MarketID
	})
	return out
}
