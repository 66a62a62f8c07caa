package decision

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

const (
	maxPromptNews     = 5
	maxPromptResearch = 3
	sentimentBand     = 0.02
)

// Sentiment labels the 24h probability move.
func Sentiment(change24h float64) string {
	switch {
	case change24h >= sentimentBand:
		return "BULLISH"
	case change24h <= -sentimentBand:
		return "BEARISH"
	default:
		return "NEUTRAL"
	}
}

// PromptInput is everything the shared prompt template renders.
type PromptInput struct {
	Agent     domain.AgentProfile
	Candidate domain.ScoredMarket
	News      []domain.NewsArticle
	Research  []string
}

// BuildPrompt renders the provider-independent decision prompt. Adapters wrap
// it in their own request envelope.
func BuildPrompt(in PromptInput) string {
	m := in.Candidate
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, an autonomous prediction-market trader with %s risk tolerance.\n",
		displayName(in.Agent), strings.ToLower(string(in.Agent.Risk)))
	b.WriteString("Decide whether to buy YES or NO on the market below.\n\n")

	b.WriteString("MARKET\n")
	fmt.Fprintf(&b, "Question: %s\n", m.Question)
	if m.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", m.Category)
	}
	fmt.Fprintf(&b, "Implied YES probability: %.1f%%\n", m.CurrentProbability*100)
	fmt.Fprintf(&b, "24h change: %+.1f pts (%s)\n", m.PriceChange24h*100, Sentiment(m.PriceChange24h))
	fmt.Fprintf(&b, "Volume: $%.0f  Liquidity: $%.0f\n", m.VolumeUSD, m.LiquidityUSD)
	fmt.Fprintf(&b, "Tradeability score: %.1f/100\n", m.Score)
	if m.EndDate != nil {
		fmt.Fprintf(&b, "Resolves: %s\n", m.EndDate.UTC().Format("2006-01-02"))
	}

	if len(in.News) > 0 {
		b.WriteString("\nRECENT NEWS\n")
		for i, a := range in.News {
			if i == maxPromptNews {
				break
			}
			fmt.Fprintf(&b, "- [%s] %s", a.Source, a.Title)
			if a.Description != "" {
				fmt.Fprintf(&b, ": %s", truncate(a.Description, 240))
			}
			b.WriteByte('\n')
		}
	}

	if len(in.Research) > 0 {
		b.WriteString("\nWEB RESEARCH\n")
		for i, s := range in.Research {
			if i == maxPromptResearch {
				break
			}
			fmt.Fprintf(&b, "- %s\n", truncate(s, 400))
		}
	}

	b.WriteString("\nRespond with only a JSON object of the form ")
	b.WriteString(`{"side": "YES" | "NO", "confidence": <number between 0 and 1>, "reasoning": ["short point", ...]}`)
	b.WriteByte('\n')
	return b.String()
}

func displayName(a domain.AgentProfile) string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.ID
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
