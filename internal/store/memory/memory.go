// Package memory implements the domain stores with in-memory maps. It backs
// the cycle mode, development runs and tests; nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

// TradeStore implements domain.TradeStore.
type TradeStore struct {
	mu     sync.RWMutex
	trades []domain.AgentTrade
	byID   map[string]int
}

// NewTradeStore creates an empty trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{byID: make(map[string]int)}
}

func (s *TradeStore) Insert(_ context.Context, trade domain.AgentTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[trade.ID]; ok {
		return fmt.Errorf("memory: insert trade %s: %w", trade.ID, domain.ErrAlreadyExists)
	}
	s.byID[trade.ID] = len(s.trades)
	s.trades = append(s.trades, cloneTrade(trade))
	return nil
}

func (s *TradeStore) UpdateSettlement(_ context.Context, id string, pnl float64, closedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("memory: settle trade %s: %w", id, domain.ErrNotFound)
	}
	t := &s.trades[i]
	t.Status = domain.TradeStatusClosed
	t.PnlUSD = &pnl
	t.ClosedAt = &closedAt
	return nil
}

func (s *TradeStore) GetByID(_ context.Context, id string) (domain.AgentTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return domain.AgentTrade{}, fmt.Errorf("memory: get trade %s: %w", id, domain.ErrNotFound)
	}
	return cloneTrade(s.trades[i]), nil
}

func (s *TradeStore) ListByAgent(_ context.Context, agentID string, opts domain.ListOpts) ([]domain.AgentTrade, error) {
	return s.list(func(t domain.AgentTrade) bool {
		return t.AgentID == agentID && inRange(t.OpenedAt, opts)
	}, opts), nil
}

func (s *TradeStore) ListOpen(_ context.Context) ([]domain.AgentTrade, error) {
	return s.list(func(t domain.AgentTrade) bool {
		return t.Status == domain.TradeStatusOpen
	}, domain.ListOpts{}), nil
}

func (s *TradeStore) ListAll(_ context.Context, opts domain.ListOpts) ([]domain.AgentTrade, error) {
	return s.list(func(t domain.AgentTrade) bool {
		return inRange(t.OpenedAt, opts)
	}, opts), nil
}

func (s *TradeStore) ListClosedBefore(_ context.Context, before time.Time) ([]domain.AgentTrade, error) {
	return s.list(func(t domain.AgentTrade) bool {
		return t.IsClosed() && t.ClosedAt != nil && t.ClosedAt.Before(before)
	}, domain.ListOpts{}), nil
}

// list returns matching trades newest first.
func (s *TradeStore) list(keep func(domain.AgentTrade) bool, opts domain.ListOpts) []domain.AgentTrade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.AgentTrade
	for _, t := range s.trades {
		if keep(t) {
			out = append(out, cloneTrade(t))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OpenedAt.After(out[j].OpenedAt)
	})
	return page(out, opts)
}

func cloneTrade(t domain.AgentTrade) domain.AgentTrade {
	t.Reasoning = append([]string(nil), t.Reasoning...)
	if t.PnlUSD != nil {
		v := *t.PnlUSD
		t.PnlUSD = &v
	}
	if t.ClosedAt != nil {
		v := *t.ClosedAt
		t.ClosedAt = &v
	}
	return t
}

// PortfolioStore implements domain.PortfolioStore.
type PortfolioStore struct {
	mu    sync.RWMutex
	books map[string]domain.AgentPortfolio
}

// NewPortfolioStore creates an empty portfolio store.
func NewPortfolioStore() *PortfolioStore {
	return &PortfolioStore{books: make(map[string]domain.AgentPortfolio)}
}

func (s *PortfolioStore) Get(_ context.Context, agentID string) (domain.AgentPortfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.books[agentID]
	if !ok {
		return domain.AgentPortfolio{}, fmt.Errorf("memory: get portfolio %s: %w", agentID, domain.ErrNotFound)
	}
	return p.Clone(), nil
}

func (s *PortfolioStore) Upsert(_ context.Context, portfolio domain.AgentPortfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.books[portfolio.AgentID] = portfolio.Clone()
	return nil
}

func (s *PortfolioStore) List(_ context.Context) ([]domain.AgentPortfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AgentPortfolio, 0, len(s.books))
	for _, p := range s.books {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out, nil
}

// ResearchStore implements domain.ResearchStore.
type ResearchStore struct {
	mu    sync.RWMutex
	notes []domain.ResearchDecision
}

// NewResearchStore creates an empty research store.
func NewResearchStore() *ResearchStore {
	return &ResearchStore{}
}

func (s *ResearchStore) InsertBatch(_ context.Context, notes []domain.ResearchDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range notes {
		n.Reasoning = append([]string(nil), n.Reasoning...)
		s.notes = append(s.notes, n)
	}
	return nil
}

func (s *ResearchStore) ListByAgent(_ context.Context, agentID string, opts domain.ListOpts) ([]domain.ResearchDecision, error) {
	return s.list(func(n domain.ResearchDecision) bool {
		return n.AgentID == agentID && inRange(n.Timestamp, opts)
	}, opts), nil
}

func (s *ResearchStore) ListBefore(_ context.Context, before time.Time) ([]domain.ResearchDecision, error) {
	return s.list(func(n domain.ResearchDecision) bool {
		return n.Timestamp.Before(before)
	}, domain.ListOpts{}), nil
}

func (s *ResearchStore) list(keep func(domain.ResearchDecision) bool, opts domain.ListOpts) []domain.ResearchDecision {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ResearchDecision
	for _, n := range s.notes {
		if keep(n) {
			n.Reasoning = append([]string(nil), n.Reasoning...)
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return page(out, opts)
}

// AuditStore implements domain.AuditStore.
type AuditStore struct {
	mu      sync.RWMutex
	entries []domain.AuditEntry
	now     func() time.Time
}

// NewAuditStore creates an empty audit log.
func NewAuditStore() *AuditStore {
	return &AuditStore{now: time.Now}
}

func (s *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, domain.AuditEntry{
		ID:        int64(len(s.entries) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: s.now().UTC(),
	})
	return nil
}

func (s *AuditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditEntry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		if inRange(s.entries[i].CreatedAt, opts) {
			out = append(out, s.entries[i])
		}
	}
	return page(out, opts), nil
}

func inRange(ts time.Time, opts domain.ListOpts) bool {
	if opts.Since != nil && ts.Before(*opts.Since) {
		return false
	}
	if opts.Until != nil && !ts.Before(*opts.Until) {
		return false
	}
	return true
}

func page[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items
}
