package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alanyoungcy/polyagents/internal/domain"
	"github.com/alanyoungcy/polyagents/internal/platform/llm"
)

// rosterFile is the YAML layout of an agents file:
//
//	agents:
//	  - id: momentum
//	    risk: HIGH
//	    max_trades: 3
//	    provider: openai
//	    weights: {volume: 1, liquidity: 1, price_movement: 2, news: 1, prob: 1}
type rosterFile struct {
	Agents []domain.AgentProfile `yaml:"agents"`
}

// LoadAgents reads the roster at path, or returns DefaultAgents when path is
// empty. The roster is validated either way.
func LoadAgents(path string) ([]domain.AgentProfile, error) {
	if path == "" {
		return DefaultAgents(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read agents %s: %w", path, err)
	}
	return ParseAgents(data)
}

// ParseAgents decodes and validates a YAML roster. Missing display names
// default to the id and missing risk tiers to LOW.
func ParseAgents(data []byte) ([]domain.AgentProfile, error) {
	var f rosterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: decode agents: %w", err)
	}
	for i := range f.Agents {
		a := &f.Agents[i]
		a.Risk = domain.RiskTier(strings.ToUpper(string(a.Risk)))
		if a.Risk == "" {
			a.Risk = domain.RiskLow
		}
		if a.DisplayName == "" {
			a.DisplayName = a.ID
		}
		a.Provider = strings.ToLower(a.Provider)
	}
	if err := ValidateAgents(f.Agents); err != nil {
		return nil, err
	}
	return f.Agents, nil
}

// ValidateAgents checks the roster and returns one error listing every
// problem.
func ValidateAgents(agents []domain.AgentProfile) error {
	var errs []string
	if len(agents) == 0 {
		errs = append(errs, "at least one agent is required")
	}
	seen := make(map[string]bool, len(agents))
	for i, a := range agents {
		name := a.ID
		if name == "" {
			name = fmt.Sprintf("#%d", i)
			errs = append(errs, fmt.Sprintf("agent %s: id must not be empty", name))
		} else if seen[a.ID] {
			errs = append(errs, fmt.Sprintf("agent %s: duplicate id", name))
		}
		seen[a.ID] = true

		if a.MaxTrades < 1 {
			errs = append(errs, fmt.Sprintf("agent %s: max_trades must be >= 1", name))
		}
		if !a.Risk.Valid() {
			errs = append(errs, fmt.Sprintf("agent %s: unknown risk %q (valid: LOW, MEDIUM, HIGH)", name, a.Risk))
		}
		w := a.Weights
		if w.Volume < 0 || w.Liquidity < 0 || w.PriceMovement < 0 || w.News < 0 || w.Prob < 0 {
			errs = append(errs, fmt.Sprintf("agent %s: weights must be non-negative", name))
		}
		if a.MinVolume < 0 || a.MinLiquidity < 0 {
			errs = append(errs, fmt.Sprintf("agent %s: min_volume and min_liquidity must be non-negative", name))
		}
		if a.Provider != "" && !llm.IsKnown(a.Provider) {
			errs = append(errs, fmt.Sprintf("agent %s: unknown provider %q (valid: %s)", name, a.Provider, strings.Join(llm.Names, ", ")))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid agents:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// DefaultAgents is the built-in roster: one agent per provider with a
// spread of risk tiers and styles.
func DefaultAgents() []domain.AgentProfile {
	return []domain.AgentProfile{
		{
			ID:          "momentum",
			DisplayName: "Momentum Chaser",
			Risk:        domain.RiskHigh,
			MaxTrades:   3,
			MinVolume:   10000,
			Provider:    llm.NameOpenAI,
			Weights:     domain.ScoreWeights{Volume: 1, Liquidity: 0.5, PriceMovement: 2, News: 1, Prob: 0.5},
		},
		{
			ID:              "contrarian",
			DisplayName:     "Contrarian",
			Risk:            domain.RiskMedium,
			MaxTrades:       2,
			MinLiquidity:    5000,
			Provider:        llm.NameDeepSeek,
			Weights:         domain.ScoreWeights{Volume: 0.5, Liquidity: 1, PriceMovement: 1.5, News: 0.5, Prob: 1.5},
			FocusCategories: []string{"Politics", "Economics"},
		},
		{
			ID:          "newshound",
			DisplayName: "News Hound",
			Risk:        domain.RiskMedium,
			MaxTrades:   3,
			Provider:    llm.NameAnthropic,
			Weights:     domain.ScoreWeights{Volume: 0.5, Liquidity: 0.5, PriceMovement: 1, News: 3, Prob: 1},
		},
		{
			ID:           "steady",
			DisplayName:  "Steady Hand",
			Risk:         domain.RiskLow,
			MaxTrades:    2,
			MinVolume:    50000,
			MinLiquidity: 20000,
			Provider:     llm.NameGemini,
			Weights:      domain.ScoreWeights{Volume: 2, Liquidity: 2, PriceMovement: 0.5, News: 0.5, Prob: 1},
		},
		{
			ID:              "sportsbook",
			DisplayName:     "Sportsbook",
			Risk:            domain.RiskHigh,
			MaxTrades:       2,
			Provider:        llm.NameXAI,
			Weights:         domain.ScoreWeights{Volume: 1, Liquidity: 1, PriceMovement: 1, News: 1, Prob: 1},
			FocusCategories: []string{"Sports"},
			CategoryBias:    map[string]float64{"Sports": 1.5},
		},
		{
			ID:          "generalist",
			DisplayName: "Generalist",
			Risk:        domain.RiskLow,
			MaxTrades:   2,
			Provider:    llm.NameBedrock,
			Weights:     domain.ScoreWeights{Volume: 1, Liquidity: 1, PriceMovement: 1, News: 1, Prob: 1},
		},
	}
}
