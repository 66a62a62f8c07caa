package domain

import "time"

// Market is a prediction-market listing as seen by the scoring pipeline. A
// fetch cycle produces an immutable snapshot of these.
type Market struct {
	ID                 string     `json:"id"`
	Question           string     `json:"question"`
	Slug               string     `json:"slug,omitempty"`
	Category           string     `json:"category"`
	VolumeUSD          float64    `json:"volume_usd"`
	LiquidityUSD       float64    `json:"liquidity_usd"`
	CurrentProbability float64    `json:"current_probability"` // YES price in [0,1]
	PriceChange24h     float64    `json:"price_change_24h"`
	EndDate            *time.Time `json:"end_date,omitempty"`
}

// NewsArticle is a read-only input to scoring and prompts.
type NewsArticle struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Content     string    `json:"content,omitempty"`
	Source      string    `json:"source"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Text returns the concatenated searchable body of the article.
func (a NewsArticle) Text() string {
	return a.Title + " " + a.Description + " " + a.Content
}

// ScoreComponents holds the individual factor scores of a market.
type ScoreComponents struct {
	VolumeScore        float64 `json:"volume_score"`
	LiquidityScore     float64 `json:"liquidity_score"`
	PriceMovementScore float64 `json:"price_movement_score"`
	NewsScore          float64 `json:"news_score"`
	ProbScore          float64 `json:"prob_score"`
}

// Total is the unweighted 0-100 tradeability score.
func (c ScoreComponents) Total() float64 {
	return c.VolumeScore + c.LiquidityScore + c.PriceMovementScore + c.NewsScore + c.ProbScore
}

// ScoredMarket is a Market annotated with its score for one scoring pass.
// Score is the raw 0-100 total; AgentScore is the agent-weighted composite.
type ScoredMarket struct {
	Market
	Score      float64         `json:"score"`
	AgentScore float64         `json:"agent_score"`
	Components ScoreComponents `json:"components"`
}

// MarketIDs returns the ids of the given markets in input order.
func MarketIDs(markets []Market) []string {
	ids := make([]string, len(markets))
	for i, m := range markets {
		ids[i] = m.ID
	}
	return ids
}
