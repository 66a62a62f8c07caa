package domain

import "time"

// Pub/sub channels published by the generator and portfolio services.
const (
	ChannelAgentTrades    = "agent_trades"
	ChannelAgentResearch  = "agent_research"
	ChannelPortfolios     = "portfolio_updates"
	StreamAgentTradeAudit = "stream:agent_trades"
)

// AgentEvent is the JSON envelope published on the signal bus.
type AgentEvent struct {
	Type      string    `json:"type"`
	AgentID   string    `json:"agent_id"`
	Payload   any       `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}
