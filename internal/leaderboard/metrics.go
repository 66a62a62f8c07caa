// Package leaderboard derives per-agent performance and cross-agent
// agreement from persisted trades and portfolios. Nothing here is cached or
// stored; every call recomputes from its inputs.
package leaderboard

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

// InWindow reports whether trade t was opened inside window w.
func InWindow(t domain.AgentTrade, w domain.TimeWindow, now time.Time) bool {
	since := w.Since(now)
	return since.IsZero() || !t.OpenedAt.Before(since)
}

// CalculateAgentMetrics summarises one agent's trades within window.
// Win rate counts closed trades only: pnl > 0 is a win, anything else a
// loss. Capital and drawdown come from the portfolio as of now.
func CalculateAgentMetrics(agentID string, portfolio domain.AgentPortfolio, trades []domain.AgentTrade, window domain.TimeWindow, now time.Time) domain.AgentMetrics {
	m := domain.AgentMetrics{
		AgentID:           agentID,
		Window:            window,
		CurrentCapitalUSD: portfolio.CurrentCapitalUSD,
		MaxDrawdownPct:    portfolio.MaxDrawdownPct,
		Categories:        []domain.CategoryPnL{},
	}

	realized := decimal.Zero
	holdingMinutes := 0.0
	held := 0
	catIndex := make(map[string]int)

	for _, t := range trades {
		if t.AgentID != agentID || !InWindow(t, window, now) {
			continue
		}
		m.TotalTrades++

		if !t.IsClosed() {
			m.OpenTrades++
			continue
		}
		m.ClosedTrades++

		pnl := 0.0
		if t.PnlUSD != nil {
			pnl = *t.PnlUSD
		}
		if pnl > 0 {
			m.Wins++
		} else {
			m.Losses++
		}
		realized = realized.Add(decimal.NewFromFloat(pnl))

		if t.ClosedAt != nil && !t.OpenedAt.IsZero() {
			holdingMinutes += t.ClosedAt.Sub(t.OpenedAt).Minutes()
			held++
		}

		cat := t.Category
		if cat == "" {
			cat = "Other"
		}
		i, ok := catIndex[cat]
		if !ok {
			i = len(m.Categories)
			catIndex[cat] = i
			m.Categories = append(m.Categories, domain.CategoryPnL{Category: cat})
		}
		m.Categories[i].PnlUSD = decimal.NewFromFloat(m.Categories[i].PnlUSD).Add(decimal.NewFromFloat(pnl)).Round(2).InexactFloat64()
		m.Categories[i].Trades++
	}

	if m.ClosedTrades > 0 {
		m.WinRate = float64(m.Wins) / float64(m.ClosedTrades)
	}
	if held > 0 {
		m.AvgHoldingMinutes = holdingMinutes / float64(held)
	}
	m.BestCategory, m.WorstCategory = bestWorst(m.Categories)

	unrealized := decimal.Zero
	since := window.Since(now)
	for _, pos := range portfolio.OpenPositions {
		if since.IsZero() || !pos.OpenedAt.Before(since) {
			unrealized = unrealized.Add(decimal.NewFromFloat(pos.UnrealizedPnl))
		}
	}

	m.RealizedPnlUSD = realized.Round(2).InexactFloat64()
	m.UnrealizedPnlUSD = unrealized.Round(2).InexactFloat64()
	total := realized.Add(unrealized)
	m.TotalPnlUSD = total.Round(2).InexactFloat64()

	start := portfolio.StartingCapitalUSD
	if start <= 0 {
		start = domain.StartingCapitalUSD
	}
	m.ROI = total.Div(decimal.NewFromFloat(start)).Round(6).InexactFloat64()
	return m
}

// bestWorst picks the highest and lowest signed PnL categories. Ties keep
// the category seen first.
func bestWorst(cats []domain.CategoryPnL) (best, worst string) {
	if len(cats) == 0 {
		return "", ""
	}
	b, w := cats[0], cats[0]
	for _, c := range cats[1:] {
		if c.PnlUSD > b.PnlUSD {
			b = c
		}
		if c.PnlUSD < w.PnlUSD {
			w = c
		}
	}
	return b.Category, w.Category
}
