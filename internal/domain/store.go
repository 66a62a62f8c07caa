package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TradeStore persists agent trades. Settlement happens outside this service
// through UpdateSettlement.
type TradeStore interface {
	Insert(ctx context.Context, trade AgentTrade) error
	UpdateSettlement(ctx context.Context, id string, pnl float64, closedAt time.Time) error
	GetByID(ctx context.Context, id string) (AgentTrade, error)
	ListByAgent(ctx context.Context, agentID string, opts ListOpts) ([]AgentTrade, error)
	ListOpen(ctx context.Context) ([]AgentTrade, error)
	ListAll(ctx context.Context, opts ListOpts) ([]AgentTrade, error)
	ListClosedBefore(ctx context.Context, before time.Time) ([]AgentTrade, error)
}

// PortfolioStore persists one portfolio record per agent.
type PortfolioStore interface {
	Get(ctx context.Context, agentID string) (AgentPortfolio, error)
	Upsert(ctx context.Context, portfolio AgentPortfolio) error
	List(ctx context.Context) ([]AgentPortfolio, error)
}

// ResearchStore persists research notes as an append-only history.
type ResearchStore interface {
	InsertBatch(ctx context.Context, notes []ResearchDecision) error
	ListByAgent(ctx context.Context, agentID string, opts ListOpts) ([]ResearchDecision, error)
	ListBefore(ctx context.Context, before time.Time) ([]ResearchDecision, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
