package cache

import (
	"sync"
	"time"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

type tradeEntry struct {
	trades    []domain.AgentTrade
	marketIDs map[string]struct{}
	idCount   int
	storedAt  time.Time
}

type decisionKey struct {
	agentID  string
	marketID string
}

type decisionEntry struct {
	decision domain.Decision
	storedAt time.Time
}

// TradeCache keeps each agent's last generated trades. An entry is valid
// while younger than the TTL and while the known market id set is unchanged.
// It also remembers successful provider decisions per (agent, market).
type TradeCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       Clock
	entries   map[string]tradeEntry
	decisions map[decisionKey]decisionEntry
}

// NewTradeCache creates an empty trade cache.
func NewTradeCache(ttl time.Duration, now Clock) *TradeCache {
	if now == nil {
		now = time.Now
	}
	return &TradeCache{
		ttl:       ttl,
		now:       now,
		entries:   make(map[string]tradeEntry),
		decisions: make(map[decisionKey]decisionEntry),
	}
}

// Get returns the cached trades of agentID when the entry is unexpired and
// was stored against exactly the same market id list, compared as a set of
// the same length.
func (c *TradeCache) Get(agentID string, marketIDs []string) ([]domain.AgentTrade, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[agentID]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, agentID)
		return nil, false
	}
	if len(marketIDs) != e.idCount || !sameIDSet(e.marketIDs, marketIDs) {
		return nil, false
	}
	out := make([]domain.AgentTrade, len(e.trades))
	copy(out, e.trades)
	return out, true
}

// Put stores trades for agentID along with the market ids they were
// generated from.
func (c *TradeCache) Put(agentID string, trades []domain.AgentTrade, marketIDs []string) {
	set := make(map[string]struct{}, len(marketIDs))
	for _, id := range marketIDs {
		set[id] = struct{}{}
	}
	stored := make([]domain.AgentTrade, len(trades))
	copy(stored, trades)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[agentID] = tradeEntry{trades: stored, marketIDs: set, idCount: len(marketIDs), storedAt: c.now()}
}

// Invalidate drops the cached trades of one agent.
func (c *TradeCache) Invalidate(agentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, agentID)
}

// Decision returns a remembered provider decision that is still within TTL.
func (c *TradeCache) Decision(agentID, marketID string) (domain.Decision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := decisionKey{agentID, marketID}
	e, ok := c.decisions[key]
	if !ok {
		return domain.Decision{}, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.decisions, key)
		return domain.Decision{}, false
	}
	return e.decision, true
}

// PutDecision remembers a provider decision.
func (c *TradeCache) PutDecision(agentID, marketID string, d domain.Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decisions[decisionKey{agentID, marketID}] = decisionEntry{decision: d, storedAt: c.now()}
}

// Clear drops every entry.
func (c *TradeCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]tradeEntry)
	c.decisions = make(map[decisionKey]decisionEntry)
}

func sameIDSet(cached map[string]struct{}, ids []string) bool {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := cached[id]; !ok {
			return false
		}
		seen[id] = struct{}{}
	}
	return len(seen) == len(cached)
}

// ResearchBook keeps the latest research notes of each agent. Entries are
// replaced per cycle and never expire.
type ResearchBook struct {
	mu    sync.Mutex
	notes map[string][]domain.ResearchDecision
}

// NewResearchBook creates an empty book.
func NewResearchBook() *ResearchBook {
	return &ResearchBook{notes: make(map[string][]domain.ResearchDecision)}
}

// Replace swaps in the notes of the agent's latest cycle.
func (b *ResearchBook) Replace(agentID string, notes []domain.ResearchDecision) {
	stored := make([]domain.ResearchDecision, len(notes))
	copy(stored, notes)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.notes[agentID] = stored
}

// Get returns a copy of the agent's latest research notes.
func (b *ResearchBook) Get(agentID string) []domain.ResearchDecision {
	b.mu.Lock()
	defer b.mu.Unlock()
	notes := b.notes[agentID]
	out := make([]domain.ResearchDecision, len(notes))
	copy(out, notes)
	return out
}

// Clear drops every agent's notes.
func (b *ResearchBook) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notes = make(map[string][]domain.ResearchDecision)
}
