package scoring

import (
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

// Components computes every factor score of m against the indexed news.
func Components(m domain.Market, news *NewsIndex, now time.Time) domain.ScoreComponents {
	c := domain.ScoreComponents{
		VolumeScore:        ScoreVolume(m.VolumeUSD),
		LiquidityScore:     ScoreLiquidity(m.LiquidityUSD),
		PriceMovementScore: ScorePriceMovement(m.PriceChange24h),
		ProbScore:          ScoreProbability(m.CurrentProbability),
	}
	if news != nil {
		c.NewsScore = news.Score(m.Question, now)
	}
	return c
}

// Composite is the weight-normalized sum of the components. It returns 0
// when the weights sum to zero.
func Composite(c domain.ScoreComponents, w domain.ScoreWeights) float64 {
	total := w.Sum()
	if total <= 0 {
		return 0
	}
	sum := c.VolumeScore*w.Volume +
		c.LiquidityScore*w.Liquidity +
		c.PriceMovementScore*w.PriceMovement +
		c.NewsScore*w.News +
		c.ProbScore*w.Prob
	return sum / total
}

// ApplyBias multiplies score by the agent's bias for category, if any.
func ApplyBias(score float64, category string, bias map[string]float64) float64 {
	if len(bias) == 0 {
		return score
	}
	if mult, ok := bias[category]; ok {
		return score * mult
	}
	if mult, ok := bias[strings.ToLower(category)]; ok {
		return score * mult
	}
	return score
}

// ScoreMarket scores m for one agent.
func ScoreMarket(m domain.Market, agent domain.AgentProfile, news *NewsIndex, now time.Time) domain.ScoredMarket {
	c := Components(m, news, now)
	return domain.ScoredMarket{
		Market:     m,
		Score:      c.Total(),
		AgentScore: ApplyBias(Composite(c, agent.Weights), m.Category, agent.CategoryBias),
		Components: c,
	}
}

// FilterCandidates drops markets under the agent's volume and liquidity
// floors. When focus categories are declared, the focus subset is used only
// if it holds at least 2*MaxTrades markets.
func FilterCandidates(markets []domain.Market, agent domain.AgentProfile) []domain.Market {
	eligible := make([]domain.Market, 0, len(markets))
	for _, m := range markets {
		if m.VolumeUSD >= agent.MinVolume && m.LiquidityUSD >= agent.MinLiquidity {
			eligible = append(eligible, m)
		}
	}
	if len(agent.FocusCategories) == 0 {
		return eligible
	}

	focus := make(map[string]bool, len(agent.FocusCategories))
	for _, c := range agent.FocusCategories {
		focus[strings.ToLower(strings.TrimSpace(c))] = true
	}
	var focused []domain.Market
	for _, m := range eligible {
		if focus[strings.ToLower(strings.TrimSpace(m.Category))] {
			focused = append(focused, m)
		}
	}
	if len(focused) >= 2*agent.MaxTrades {
		return focused
	}
	return eligible
}

// RankForAgent filters and scores markets, returning them by AgentScore
// descending with ties broken by market id.
func RankForAgent(markets []domain.Market, agent domain.AgentProfile, news *NewsIndex, now time.Time) []domain.ScoredMarket {
	candidates := FilterCandidates(markets, agent)
	scored := make([]domain.ScoredMarket, len(candidates))
	for i, m := range candidates {
		scored[i] = ScoreMarket(m, agent, news, now)
	}
	SortByAgentScore(scored)
	return scored
}

// SortByAgentScore orders scored markets by AgentScore descending, then id.
func SortByAgentScore(scored []domain.ScoredMarket) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].AgentScore != scored[j].AgentScore {
			return scored[i].AgentScore > scored[j].AgentScore
		}
		return scored[i].ID < scored[j].ID
	})
}
