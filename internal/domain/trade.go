package domain

import "time"

// Side is the directional view on a binary market.
type Side string

const (
	SideYes     Side = "YES"
	SideNo      Side = "NO"
	SideNeutral Side = "NEUTRAL" // research only
)

// TradeStatus tracks the lifecycle of an AgentTrade.
type TradeStatus string

const (
	TradeStatusOpen   TradeStatus = "OPEN"
	TradeStatusClosed TradeStatus = "CLOSED"
)

// DecisionSourceFallback marks decisions produced by the deterministic generator.
const DecisionSourceFallback = "fallback"

// Decision is a directional call on one market.
type Decision struct {
	Side       Side     `json:"side"`
	Confidence float64  `json:"confidence"`
	Reasoning  []string `json:"reasoning"`
	Source     string   `json:"source"`
}

// AgentTrade is a simulated position opened by an agent. Settlement outside
// this service flips Status to CLOSED and fills PnlUSD and ClosedAt.
type AgentTrade struct {
	ID               string      `json:"id"`
	AgentID          string      `json:"agent_id"`
	MarketID         string      `json:"market_id"`
	Question         string      `json:"question"`
	Category         string      `json:"category"`
	Side             Side        `json:"side"`
	Confidence       float64     `json:"confidence"`
	SizeUSD          float64     `json:"size_usd"`
	EntryProbability float64     `json:"entry_probability"`
	Status           TradeStatus `json:"status"`
	PnlUSD           *float64    `json:"pnl_usd,omitempty"`
	Reasoning        []string    `json:"reasoning"`
	DecisionSource   string      `json:"decision_source"`
	OpenedAt         time.Time   `json:"opened_at"`
	ClosedAt         *time.Time  `json:"closed_at,omitempty"`
}

// IsClosed reports whether the trade has been settled.
func (t AgentTrade) IsClosed() bool {
	return t.Status == TradeStatusClosed
}

// ResearchDecision records a candidate that did not clear the trade
// threshold. It never counts toward an agent's trade budget.
type ResearchDecision struct {
	ID             string    `json:"id"`
	AgentID        string    `json:"agent_id"`
	MarketID       string    `json:"market_id"`
	Question       string    `json:"question"`
	Side           Side      `json:"side"`
	Confidence     float64   `json:"confidence"`
	Score          float64   `json:"score"`
	Reasoning      []string  `json:"reasoning"`
	DecisionSource string    `json:"decision_source"`
	Timestamp      time.Time `json:"timestamp"`
}
