package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestScoreProbability(t *testing.T) {
	assert.InDelta(t, 10.0, ScoreProbability(0.5), 1e-9)
	assert.InDelta(t, 0.0, ScoreProbability(0), 1e-9)
	assert.InDelta(t, 0.0, ScoreProbability(1), 1e-9)
	assert.InDelta(t, 5.0, ScoreProbability(0.25), 1e-9)
	assert.InDelta(t, 5.0, ScoreProbability(0.75), 1e-9)
}

func TestScoreVolumeAndLiquiditySaturate(t *testing.T) {
	assert.InDelta(t, 30.0, ScoreVolume(100000), 1e-9)
	assert.InDelta(t, 30.0, ScoreVolume(5_000_000), 1e-9)
	assert.InDelta(t, 15.0, ScoreVolume(50000), 1e-9)
	assert.Zero(t, ScoreVolume(-10))

	assert.InDelta(t, 20.0, ScoreLiquidity(50000), 1e-9)
	assert.InDelta(t, 20.0, ScoreLiquidity(1e9), 1e-9)
	assert.Zero(t, ScoreLiquidity(-1))
}

func TestScorePriceMovement(t *testing.T) {
	assert.InDelta(t, 7.5, ScorePriceMovement(0.05), 1e-9)
	assert.InDelta(t, 7.5, ScorePriceMovement(-0.05), 1e-9)
	assert.InDelta(t, 15.0, ScorePriceMovement(0.4), 1e-9)
}

func TestKeywords(t *testing.T) {
	kws := Keywords("Will Bitcoin reach $100,000 by December 2025? Bitcoin ETF approval!")
	assert.Equal(t, []string{"bitcoin", "approval"}, kws)
}

func TestRecencyWeight(t *testing.T) {
	cases := []struct {
		age  time.Duration
		want float64
	}{
		{-time.Hour, 1.0},
		{30 * time.Minute, 1.0},
		{2 * time.Hour, 0.7},
		{12 * time.Hour, 0.4},
		{48 * time.Hour, 0.25},
		{10 * 24 * time.Hour, 0.1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RecencyWeight(testNow.Add(-tc.age), testNow), "age %s", tc.age)
	}
}

func TestSourceQualityWeight(t *testing.T) {
	assert.Equal(t, 1.0, SourceQualityWeight("Reuters"))
	assert.Equal(t, 1.0, SourceQualityWeight("AP"))
	assert.Equal(t, 1.0, SourceQualityWeight("The Wall Street Journal"))
	assert.Equal(t, 0.8, SourceQualityWeight("CNBC"))
	assert.Equal(t, 0.8, SourceQualityWeight("The Guardian"))
	assert.Equal(t, 0.5, SourceQualityWeight("Some Blog"))
	assert.Equal(t, 0.5, SourceQualityWeight("Snap Daily"), "short codes only match exactly")
	assert.Equal(t, 0.5, SourceQualityWeight(""))
}

func TestNewsScore(t *testing.T) {
	articles := []domain.NewsArticle{
		{Title: "Bitcoin rallies", Source: "Reuters", PublishedAt: testNow.Add(-10 * time.Minute)},
		{Title: "Bitcoin ETF inflows", Source: "Blog", PublishedAt: testNow.Add(-2 * time.Hour)},
		{Title: "Unrelated election story", Source: "BBC", PublishedAt: testNow},
	}
	// 1.0*1.0 + 0.7*0.5 = 1.35 -> 1.35/6*25
	assert.InDelta(t, 1.35/6*25, NewsScore("Will Bitcoin close higher?", articles, testNow), 1e-9)
	assert.Equal(t, 2, NewsRelevance("Will Bitcoin close higher?", articles))
	assert.Zero(t, NewsScore("Will Bitcoin close higher?", nil, testNow))
}

func TestNewsScoreCaps(t *testing.T) {
	var articles []domain.NewsArticle
	for i := 0; i < 20; i++ {
		articles = append(articles, domain.NewsArticle{Title: "bitcoin", Source: "Reuters", PublishedAt: testNow})
	}
	assert.InDelta(t, 25.0, NewsScore("bitcoin halving", articles, testNow), 1e-9)
}

func TestCompositeAndBias(t *testing.T) {
	c := domain.ScoreComponents{VolumeScore: 30, LiquidityScore: 20}
	w := domain.ScoreWeights{Volume: 1, Liquidity: 1}
	assert.InDelta(t, 25.0, Composite(c, w), 1e-9)
	assert.Zero(t, Composite(c, domain.ScoreWeights{}))

	assert.InDelta(t, 50.0, ApplyBias(25, "Crypto", map[string]float64{"Crypto": 2}), 1e-9)
	assert.InDelta(t, 25.0, ApplyBias(25, "Sports", map[string]float64{"Crypto": 2}), 1e-9)
}

func TestFilterCandidatesFocusFallback(t *testing.T) {
	markets := []domain.Market{
		{ID: "a", Category: "Crypto", VolumeUSD: 5000, LiquidityUSD: 1000},
		{ID: "b", Category: "Politics", VolumeUSD: 5000, LiquidityUSD: 1000},
		{ID: "c", Category: "crypto", VolumeUSD: 5000, LiquidityUSD: 1000},
		{ID: "d", Category: "Crypto", VolumeUSD: 10, LiquidityUSD: 1000},
	}
	agent := domain.AgentProfile{MaxTrades: 1, MinVolume: 1000, MinLiquidity: 500, FocusCategories: []string{"CRYPTO"}}

	got := FilterCandidates(markets, agent)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"a", "c"}, domain.MarketIDs(got))

	agent.MaxTrades = 2
	got = FilterCandidates(markets, agent)
	assert.Equal(t, []string{"a", "b", "c"}, domain.MarketIDs(got))
}

func TestRankForAgentOrdersByAgentScoreThenID(t *testing.T) {
	markets := []domain.Market{
		{ID: "z", VolumeUSD: 50000, LiquidityUSD: 10000, CurrentProbability: 0.5},
		{ID: "a", VolumeUSD: 50000, LiquidityUSD: 10000, CurrentProbability: 0.5},
		{ID: "m", VolumeUSD: 100000, LiquidityUSD: 50000, CurrentProbability: 0.5},
	}
	agent := domain.AgentProfile{MaxTrades: 1, Weights: domain.ScoreWeights{Volume: 1, Liquidity: 1, Prob: 1}}

	ranked := RankForAgent(markets, agent, NewNewsIndex(nil), testNow)
	require.Len(t, ranked, 3)
	assert.Equal(t, "m", ranked[0].ID)
	assert.Equal(t, "a", ranked[1].ID)
	assert.Equal(t, "z", ranked[2].ID)
	assert.InDelta(t, 60.0, ranked[0].Score, 1e-9)
}
