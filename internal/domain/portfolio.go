package domain

import "time"

// StartingCapitalUSD is the simulated bankroll every agent begins with.
const StartingCapitalUSD = 10000.0

// AgentPosition is an open simulated position keyed by market.
type AgentPosition struct {
	MarketID           string    `json:"market_id"`
	TradeID            string    `json:"trade_id"`
	Side               Side      `json:"side"`
	SizeUSD            float64   `json:"size_usd"`
	EntryProbability   float64   `json:"entry_probability"`
	CurrentProbability float64   `json:"current_probability"`
	UnrealizedPnl      float64   `json:"unrealized_pnl"`
	OpenedAt           time.Time `json:"opened_at"`
}

// AgentPortfolio is the simulated account of one agent. MaxEquityUSD and
// MaxDrawdownPct only ever increase.
type AgentPortfolio struct {
	AgentID            string                   `json:"agent_id"`
	StartingCapitalUSD float64                  `json:"starting_capital_usd"`
	CurrentCapitalUSD  float64                  `json:"current_capital_usd"`
	RealizedPnlUSD     float64                  `json:"realized_pnl_usd"`
	UnrealizedPnlUSD   float64                  `json:"unrealized_pnl_usd"`
	MaxEquityUSD       float64                  `json:"max_equity_usd"`
	MaxDrawdownPct     float64                  `json:"max_drawdown_pct"`
	OpenPositions      map[string]AgentPosition `json:"open_positions"`
	UpdatedAt          time.Time                `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate positions freely.
func (p AgentPortfolio) Clone() AgentPortfolio {
	out := p
	out.OpenPositions = make(map[string]AgentPosition, len(p.OpenPositions))
	for k, v := range p.OpenPositions {
		out.OpenPositions[k] = v
	}
	return out
}
