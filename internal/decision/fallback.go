package decision

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/alanyoungcy/polyagents/internal/domain"
	"github.com/alanyoungcy/polyagents/internal/rotation"
)

// Fallback derives a reproducible decision from the agent, the market and
// the candidate's position in the cycle. The same inputs always give the
// same output.
func Fallback(agentID string, m domain.ScoredMarket, newsRelevance, index int) domain.Decision {
	seed := rotation.HashString(agentID + ":" + m.ID + ":" + strconv.Itoa(index))

	perturbation := float64(seed%21-10) / 100
	side := domain.SideNo
	if m.CurrentProbability+perturbation >= 0.5 {
		side = domain.SideYes
	}

	confidence := clamp(0.35+m.Score/200+float64(seed%16)/100, 0, 1)
	confidence = math.Round(confidence*1e4) / 1e4

	c := m.Components
	reasoning := []string{
		fmt.Sprintf("Tradeability %.1f/100 (volume %.1f, liquidity %.1f, movement %.1f, news %.1f, balance %.1f).",
			m.Score, c.VolumeScore, c.LiquidityScore, c.PriceMovementScore, c.NewsScore, c.ProbScore),
		fmt.Sprintf("Market implies %.1f%% YES with a %s 24h move of %+.1f pts.",
			m.CurrentProbability*100, strings.ToLower(Sentiment(m.PriceChange24h)), m.PriceChange24h*100),
		fmt.Sprintf("%d related news article(s) in the current pool.", newsRelevance),
	}
	return domain.Decision{
		Side:       side,
		Confidence: confidence,
		Reasoning:  reasoning,
		Source:     domain.DecisionSourceFallback,
	}
}
