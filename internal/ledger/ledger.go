// Package ledger keeps each agent's simulated portfolio: position sizing,
// mark-to-market valuation and the drawdown ratchet. Money values are
// rounded to cents with shopspring/decimal.
package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

const maxPositionShare = 0.20

// riskBudgetUSD is the base stake per risk tier before confidence scaling.
var riskBudgetUSD = map[domain.RiskTier]float64{
	domain.RiskLow:    150,
	domain.RiskMedium: 300,
	domain.RiskHigh:   600,
}

// RiskBudget returns the base stake of a risk tier; unknown tiers get the
// LOW budget.
func RiskBudget(risk domain.RiskTier) float64 {
	if b, ok := riskBudgetUSD[risk]; ok {
		return b
	}
	return riskBudgetUSD[domain.RiskLow]
}

// PositionSize scales the tier budget by confidence clamped to [0.5,1.5]
// and caps the stake at 20% of current capital.
func PositionSize(risk domain.RiskTier, confidence, currentCapital float64) float64 {
	conf := confidence
	if conf < 0.5 {
		conf = 0.5
	}
	if conf > 1.5 {
		conf = 1.5
	}
	size := decimal.NewFromFloat(RiskBudget(risk)).Mul(decimal.NewFromFloat(conf))

	maxSize := decimal.NewFromFloat(currentCapital).Mul(decimal.NewFromFloat(maxPositionShare))
	if maxSize.IsNegative() {
		maxSize = decimal.Zero
	}
	if size.GreaterThan(maxSize) {
		size = maxSize
	}
	return size.Round(2).InexactFloat64()
}

// NewPortfolio returns the opening state of an agent's account.
func NewPortfolio(agentID string, now time.Time) domain.AgentPortfolio {
	return domain.AgentPortfolio{
		AgentID:            agentID,
		StartingCapitalUSD: domain.StartingCapitalUSD,
		CurrentCapitalUSD:  domain.StartingCapitalUSD,
		MaxEquityUSD:       domain.StartingCapitalUSD,
		OpenPositions:      make(map[string]domain.AgentPosition),
		UpdatedAt:          now,
	}
}

// UnrealizedPnL marks one position at the given probability.
func UnrealizedPnL(side domain.Side, size, entry, current float64) float64 {
	diff := decimal.NewFromFloat(current).Sub(decimal.NewFromFloat(entry))
	if side == domain.SideNo {
		diff = diff.Neg()
	}
	return diff.Mul(decimal.NewFromFloat(size)).Round(2).InexactFloat64()
}

// Revalue marks every open position whose market is known and recomputes
// capital, max equity and drawdown. Positions with no market entry keep
// their last mark. The input is not modified.
func Revalue(p domain.AgentPortfolio, markets map[string]domain.Market, now time.Time) domain.AgentPortfolio {
	out := p.Clone()
	for id, pos := range out.OpenPositions {
		m, ok := markets[id]
		if !ok {
			continue
		}
		pos.CurrentProbability = m.CurrentProbability
		pos.UnrealizedPnl = UnrealizedPnL(pos.Side, pos.SizeUSD, pos.EntryProbability, m.CurrentProbability)
		out.OpenPositions[id] = pos
	}
	recompute(&out)
	out.UpdatedAt = now
	return out
}

// recompute derives current capital from realized and unrealized PnL and
// ratchets max equity and drawdown. Neither ratchet ever decreases.
func recompute(p *domain.AgentPortfolio) {
	unrealized := decimal.Zero
	for _, pos := range p.OpenPositions {
		unrealized = unrealized.Add(decimal.NewFromFloat(pos.UnrealizedPnl))
	}
	start := decimal.NewFromFloat(p.StartingCapitalUSD)
	current := start.Add(decimal.NewFromFloat(p.RealizedPnlUSD)).Add(unrealized)

	p.UnrealizedPnlUSD = unrealized.Round(2).InexactFloat64()
	p.CurrentCapitalUSD = current.Round(2).InexactFloat64()

	maxEquity := decimal.NewFromFloat(p.MaxEquityUSD)
	if maxEquity.LessThan(start) {
		maxEquity = start
	}
	if current.GreaterThan(maxEquity) {
		maxEquity = current
	}
	p.MaxEquityUSD = maxEquity.Round(2).InexactFloat64()

	if maxEquity.IsPositive() {
		dd := maxEquity.Sub(current).Div(maxEquity).InexactFloat64()
		if dd > p.MaxDrawdownPct {
			p.MaxDrawdownPct = dd
		}
	}
}

// Ledger holds the live portfolios of all agents.
type Ledger struct {
	mu    sync.Mutex
	books map[string]domain.AgentPortfolio
	now   func() time.Time
}

// New creates an empty ledger.
func New(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{books: make(map[string]domain.AgentPortfolio), now: now}
}

// Load seeds the ledger with a persisted portfolio.
func (l *Ledger) Load(p domain.AgentPortfolio) {
	p = p.Clone()
	if p.StartingCapitalUSD == 0 {
		p.StartingCapitalUSD = domain.StartingCapitalUSD
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.books[p.AgentID] = p
}

// Portfolio returns a copy of the agent's portfolio, creating the opening
// state on first access.
func (l *Ledger) Portfolio(agentID string) domain.AgentPortfolio {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bookLocked(agentID).Clone()
}

// All returns copies of every portfolio ordered by agent id.
func (l *Ledger) All() []domain.AgentPortfolio {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.AgentPortfolio, 0, len(l.books))
	for _, p := range l.books {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

// HasOpenPosition reports whether the agent holds marketID.
func (l *Ledger) HasOpenPosition(agentID, marketID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.books[agentID]
	if !ok {
		return false
	}
	_, held := p.OpenPositions[marketID]
	return held
}

// Size returns the stake for a new trade given the agent's current capital.
func (l *Ledger) Size(agentID string, risk domain.RiskTier, confidence float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return PositionSize(risk, confidence, l.bookLocked(agentID).CurrentCapitalUSD)
}

// Open records a new position for trade. An agent holds at most one
// position per market.
func (l *Ledger) Open(trade domain.AgentTrade) (domain.AgentPortfolio, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.bookLocked(trade.AgentID)
	if _, held := p.OpenPositions[trade.MarketID]; held {
		return p.Clone(), fmt.Errorf("ledger: open %s/%s: %w", trade.AgentID, trade.MarketID, domain.ErrAlreadyExists)
	}
	p.OpenPositions[trade.MarketID] = domain.AgentPosition{
		MarketID:           trade.MarketID,
		TradeID:            trade.ID,
		Side:               trade.Side,
		SizeUSD:            trade.SizeUSD,
		EntryProbability:   trade.EntryProbability,
		CurrentProbability: trade.EntryProbability,
		OpenedAt:           trade.OpenedAt,
	}
	recompute(&p)
	p.UpdatedAt = l.now()
	l.books[trade.AgentID] = p
	return p.Clone(), nil
}

// Discard drops the position on marketID without booking PnL, provided it
// still belongs to tradeID. It undoes an Open whose trade was never stored.
func (l *Ledger) Discard(agentID, marketID, tradeID string) (domain.AgentPortfolio, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.bookLocked(agentID)
	pos, held := p.OpenPositions[marketID]
	if !held || pos.TradeID != tradeID {
		return p.Clone(), false
	}
	delete(p.OpenPositions, marketID)
	recompute(&p)
	p.UpdatedAt = l.now()
	l.books[agentID] = p
	return p.Clone(), true
}

// Revalue marks the agent's positions against markets.
func (l *Ledger) Revalue(agentID string, markets map[string]domain.Market) domain.AgentPortfolio {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := Revalue(l.bookLocked(agentID), markets, l.now())
	l.books[agentID] = p
	return p.Clone()
}

// RecordRealized books settled PnL that no longer has an open position.
func (l *Ledger) RecordRealized(agentID string, pnl float64) domain.AgentPortfolio {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.bookLocked(agentID)
	p.RealizedPnlUSD = addCents(p.RealizedPnlUSD, pnl)
	recompute(&p)
	p.UpdatedAt = l.now()
	l.books[agentID] = p
	return p.Clone()
}

// ClosePosition removes the position on marketID and books pnl as
// realized. It reports false when no such position is open.
func (l *Ledger) ClosePosition(agentID, marketID string, pnl float64) (domain.AgentPortfolio, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.bookLocked(agentID)
	if _, held := p.OpenPositions[marketID]; !held {
		return p.Clone(), false
	}
	delete(p.OpenPositions, marketID)
	p.RealizedPnlUSD = addCents(p.RealizedPnlUSD, pnl)
	recompute(&p)
	p.UpdatedAt = l.now()
	l.books[agentID] = p
	return p.Clone(), true
}

// bookLocked returns the agent's portfolio, creating it if needed. The
// caller must hold l.mu and store the value back after mutating.
func (l *Ledger) bookLocked(agentID string) domain.AgentPortfolio {
	p, ok := l.books[agentID]
	if !ok {
		p = NewPortfolio(agentID, l.now())
		l.books[agentID] = p
	}
	if p.OpenPositions == nil {
		p.OpenPositions = make(map[string]domain.AgentPosition)
		l.books[agentID] = p
	}
	return p
}

func addCents(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}
