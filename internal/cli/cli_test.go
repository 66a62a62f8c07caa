package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

func TestAgentsCommandListsRoster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agents:
  - id: quant
    display_name: Quant
    risk: HIGH
    max_trades: 2
    provider: openai
  - id: plain
    max_trades: 1
`), 0o600))

	var out, errOut bytes.Buffer
	err := Execute(context.Background(), []string{"agents", "--agents", path}, &out, &errOut)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "quant")
	assert.Contains(t, out.String(), "HIGH")
	assert.Contains(t, out.String(), "fallback")
}

func TestAgentsCommandRejectsBadRoster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agents:\n  - id: x\n    max_trades: 0\n"), 0o600))

	var out, errOut bytes.Buffer
	err := Execute(context.Background(), []string{"agents", "--agents", path}, &out, &errOut)
	assert.ErrorContains(t, err, "max_trades")
}

func TestLeaderboardRejectsUnknownWindow(t *testing.T) {
	var out, errOut bytes.Buffer
	err := Execute(context.Background(), []string{"leaderboard", "--window", "1y"}, &out, &errOut)
	assert.Error(t, err)
}

func TestRenderLeaderboard(t *testing.T) {
	s := renderLeaderboard([]domain.AgentMetrics{
		{AgentID: "a", DisplayName: "Alpha", TotalPnlUSD: 12.5, ROI: 0.00125, WinRate: 0.5, TotalTrades: 3, OpenTrades: 1, CurrentCapitalUSD: 10012.5},
		{AgentID: "b", TotalPnlUSD: -4},
	})
	assert.Contains(t, s, "Alpha")
	assert.Contains(t, s, "12.50")
	assert.Contains(t, s, "-4.00")
	assert.Contains(t, s, "50%")
	assert.Contains(t, s, "1/3")

	assert.Contains(t, renderLeaderboard(nil), "no agents")
	assert.Contains(t, renderTrades(nil), "no trades")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
