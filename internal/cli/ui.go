package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	gainStyle  = cellStyle.Foreground(lipgloss.Color("#10B981"))
	lossStyle  = cellStyle.Foreground(lipgloss.Color("#EF4444"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// newTable returns a bordered table. pnlCol, when >= 0, colours that column
// by sign.
func newTable(headers []string, rows [][]string, pnlCol int) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == pnlCol && row >= 0 && row < len(rows) {
				switch {
				case strings.HasPrefix(rows[row][col], "-"):
					return lossStyle
				case rows[row][col] != "0.00":
					return gainStyle
				}
			}
			return cellStyle
		})
	return t.String()
}

func renderLeaderboard(rows []domain.AgentMetrics) string {
	if len(rows) == 0 {
		return mutedStyle.Render("no agents")
	}
	data := make([][]string, len(rows))
	for i, m := range rows {
		name := m.DisplayName
		if name == "" {
			name = m.AgentID
		}
		data[i] = []string{
			fmt.Sprintf("%d", i+1),
			name,
			fmt.Sprintf("%.2f", m.TotalPnlUSD),
			fmt.Sprintf("%.2f%%", m.ROI*100),
			fmt.Sprintf("%.0f%%", m.WinRate*100),
			fmt.Sprintf("%d/%d", m.OpenTrades, m.TotalTrades),
			fmt.Sprintf("%.2f", m.CurrentCapitalUSD),
			fmt.Sprintf("%.1f%%", m.MaxDrawdownPct*100),
		}
	}
	return newTable([]string{"#", "Agent", "PnL $", "ROI", "Win", "Open/Total", "Capital $", "Max DD"}, data, 2)
}

func renderTrades(trades []domain.AgentTrade) string {
	if len(trades) == 0 {
		return mutedStyle.Render("no trades this cycle")
	}
	data := make([][]string, len(trades))
	for i, t := range trades {
		data[i] = []string{
			truncate(t.Question, 48),
			string(t.Side),
			fmt.Sprintf("%.2f", t.Confidence),
			fmt.Sprintf("%.2f", t.SizeUSD),
			fmt.Sprintf("%.3f", t.EntryProbability),
			t.DecisionSource,
		}
	}
	return newTable([]string{"Market", "Side", "Conf", "Size $", "Entry", "Source"}, data, -1)
}

func renderResearch(notes []domain.ResearchDecision) string {
	if len(notes) == 0 {
		return mutedStyle.Render("no research notes")
	}
	data := make([][]string, len(notes))
	for i, n := range notes {
		data[i] = []string{
			truncate(n.Question, 48),
			string(n.Side),
			fmt.Sprintf("%.2f", n.Confidence),
			fmt.Sprintf("%.1f", n.Score),
		}
	}
	return newTable([]string{"Market", "Side", "Conf", "Score"}, data, -1)
}

func renderAgents(agents []domain.AgentProfile) string {
	data := make([][]string, len(agents))
	for i, a := range agents {
		provider := a.Provider
		if provider == "" {
			provider = "fallback"
		}
		focus := strings.Join(a.FocusCategories, ", ")
		if focus == "" {
			focus = "all"
		}
		data[i] = []string{a.ID, a.DisplayName, string(a.Risk), fmt.Sprintf("%d", a.MaxTrades), provider, focus}
	}
	return newTable([]string{"ID", "Name", "Risk", "Max", "Provider", "Focus"}, data, -1)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
