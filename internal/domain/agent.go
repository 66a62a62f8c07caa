package domain

// RiskTier is an agent's appetite for position size.
type RiskTier string

const (
	RiskLow    RiskTier = "LOW"
	RiskMedium RiskTier = "MEDIUM"
	RiskHigh   RiskTier = "HIGH"
)

// Valid reports whether r is one of the known tiers.
func (r RiskTier) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	default:
		return false
	}
}

// ScoreWeights weights the score components when ranking markets for one agent.
type ScoreWeights struct {
	Volume        float64 `json:"volume" yaml:"volume"`
	Liquidity     float64 `json:"liquidity" yaml:"liquidity"`
	PriceMovement float64 `json:"price_movement" yaml:"price_movement"`
	News          float64 `json:"news" yaml:"news"`
	Prob          float64 `json:"prob" yaml:"prob"`
}

// Sum returns the total of all weights.
func (w ScoreWeights) Sum() float64 {
	return w.Volume + w.Liquidity + w.PriceMovement + w.News + w.Prob
}

// AgentProfile is the static configuration of one autonomous agent. Profiles
// are loaded once at startup and never mutated.
type AgentProfile struct {
	ID              string             `json:"id" yaml:"id"`
	DisplayName     string             `json:"display_name" yaml:"display_name"`
	Risk            RiskTier           `json:"risk" yaml:"risk"`
	MaxTrades       int                `json:"max_trades" yaml:"max_trades"`
	MinVolume       float64            `json:"min_volume" yaml:"min_volume"`
	MinLiquidity    float64            `json:"min_liquidity" yaml:"min_liquidity"`
	FocusCategories []string           `json:"focus_categories" yaml:"focus_categories"`
	Weights         ScoreWeights       `json:"weights" yaml:"weights"`
	Provider        string             `json:"provider" yaml:"provider"`
	CategoryBias    map[string]float64 `json:"category_bias,omitempty" yaml:"category_bias"`
}
