package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyagents/internal/domain"
	"github.com/alanyoungcy/polyagents/internal/store/memory"
)

type stubGenerator struct {
	agents   []domain.AgentProfile
	trades   []domain.AgentTrade
	err      error
	research map[string][]domain.ResearchDecision
}

func (s *stubGenerator) Agents() []domain.AgentProfile { return s.agents }

func (s *stubGenerator) Agent(id string) (domain.AgentProfile, bool) {
	for _, a := range s.agents {
		if a.ID == id {
			return a, true
		}
	}
	return domain.AgentProfile{}, false
}

func (s *stubGenerator) GenerateAgentTrades(_ context.Context, agentID string) ([]domain.AgentTrade, error) {
	if _, ok := s.Agent(agentID); !ok {
		return nil, fmt.Errorf("generate %s: %w", agentID, domain.ErrUnknownAgent)
	}
	return s.trades, s.err
}

func (s *stubGenerator) GetAgentResearch(agentID string) []domain.ResearchDecision {
	return s.research[agentID]
}

type stubPortfolios struct{}

func (stubPortfolios) Portfolio(agentID string) domain.AgentPortfolio {
	return domain.AgentPortfolio{AgentID: agentID, CurrentCapitalUSD: domain.StartingCapitalUSD}
}

type stubRankings struct {
	window domain.TimeWindow
}

func (s *stubRankings) AgentMetrics(_ context.Context, agent domain.AgentProfile, w domain.TimeWindow) (domain.AgentMetrics, error) {
	s.window = w
	return domain.AgentMetrics{AgentID: agent.ID, Window: w, WinRate: 0.5}, nil
}

func (s *stubRankings) Leaderboard(_ context.Context, w domain.TimeWindow) ([]domain.AgentMetrics, error) {
	s.window = w
	return []domain.AgentMetrics{{AgentID: "alpha"}, {AgentID: "beta"}}, nil
}

func (s *stubRankings) Consensus(context.Context) ([]domain.ConsensusMetrics, error) {
	return nil, nil
}

func (s *stubRankings) Conflicts(context.Context) ([]domain.ConflictMetrics, error) {
	return nil, errors.New("boom")
}

type fixture struct {
	gen      *stubGenerator
	rankings *stubRankings
	trades   *memory.TradeStore
	mux      *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		gen: &stubGenerator{
			agents:   []domain.AgentProfile{{ID: "alpha", DisplayName: "Alpha"}, {ID: "beta"}},
			research: map[string][]domain.ResearchDecision{"alpha": {{ID: "r1", AgentID: "alpha"}}},
		},
		rankings: &stubRankings{},
		trades:   memory.NewTradeStore(),
		mux:      http.NewServeMux(),
	}
	agents := NewAgentHandler(f.gen, stubPortfolios{}, f.trades, memory.NewResearchStore(), logger)
	board := NewLeaderboardHandler(f.gen, f.rankings, logger)

	f.mux.HandleFunc("GET /api/agents", agents.ListAgents)
	f.mux.HandleFunc("POST /api/agents/{id}/trades", agents.GenerateTrades)
	f.mux.HandleFunc("GET /api/agents/{id}/trades", agents.ListTrades)
	f.mux.HandleFunc("GET /api/agents/{id}/research", agents.ListResearch)
	f.mux.HandleFunc("GET /api/agents/{id}/portfolio", agents.GetPortfolio)
	f.mux.HandleFunc("GET /api/agents/{id}/metrics", board.AgentMetrics)
	f.mux.HandleFunc("GET /api/leaderboard", board.Leaderboard)
	f.mux.HandleFunc("GET /api/consensus", board.Consensus)
	f.mux.HandleFunc("GET /api/conflicts", board.Conflicts)
	return f
}

func (f *fixture) do(t *testing.T, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestGenerateTrades(t *testing.T) {
	f := newFixture(t)
	f.gen.trades = []domain.AgentTrade{{ID: "t1", AgentID: "alpha", Side: domain.SideYes}}

	rec, body := f.do(t, http.MethodPost, "/api/agents/alpha/trades")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["trades"], 1)

	rec, _ = f.do(t, http.MethodPost, "/api/agents/ghost/trades")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateTradesMarketOutage(t *testing.T) {
	f := newFixture(t)
	f.gen.err = fmt.Errorf("generator: %w", domain.ErrMarketData)

	rec, body := f.do(t, http.MethodPost, "/api/agents/alpha/trades")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["trades"])
	assert.Equal(t, float64(retryAfterSeconds), body["retry_after_seconds"])
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestGenerateTradesFailure(t *testing.T) {
	f := newFixture(t)
	f.gen.err = errors.New("store down")
	rec, body := f.do(t, http.MethodPost, "/api/agents/alpha/trades")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "generation failed", body["error"])
}

func TestListTrades(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.trades.Insert(context.Background(), domain.AgentTrade{
			ID: fmt.Sprintf("t%d", i), AgentID: "alpha", OpenedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	rec, body := f.do(t, http.MethodGet, "/api/agents/alpha/trades?limit=2")
	assert.Equal(t, http.StatusOK, rec.Code)
	trades := body["trades"].([]any)
	require.Len(t, trades, 2)
	assert.Equal(t, "t2", trades[0].(map[string]any)["id"])

	_, body = f.do(t, http.MethodGet, "/api/agents/beta/trades")
	assert.Equal(t, []any{}, body["trades"])

	rec, _ = f.do(t, http.MethodGet, "/api/agents/ghost/trades")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListResearch(t *testing.T) {
	f := newFixture(t)
	_, body := f.do(t, http.MethodGet, "/api/agents/alpha/research")
	assert.Len(t, body["research"], 1)

	_, body = f.do(t, http.MethodGet, "/api/agents/alpha/research?history=true")
	assert.Equal(t, []any{}, body["research"])
}

func TestPortfolio(t *testing.T) {
	f := newFixture(t)
	rec, body := f.do(t, http.MethodGet, "/api/agents/beta/portfolio")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "beta", body["agent_id"])
	assert.Equal(t, domain.StartingCapitalUSD, body["current_capital_usd"])
}

func TestMetricsWindow(t *testing.T) {
	f := newFixture(t)
	rec, body := f.do(t, http.MethodGet, "/api/agents/alpha/metrics?window=7d")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.Window7d, f.rankings.window)
	assert.Equal(t, 0.5, body["win_rate"])

	rec, _ = f.do(t, http.MethodGet, "/api/agents/alpha/metrics?window=1y")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeaderboardRoutes(t *testing.T) {
	f := newFixture(t)

	_, body := f.do(t, http.MethodGet, "/api/leaderboard")
	assert.Equal(t, "all", body["window"])
	assert.Len(t, body["agents"], 2)

	_, body = f.do(t, http.MethodGet, "/api/consensus")
	assert.Equal(t, []any{}, body["markets"])

	rec, _ := f.do(t, http.MethodGet, "/api/conflicts")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthDegraded(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHealthHandler("serve", map[string]Pinger{
		"redis":    func(context.Context) error { return nil },
		"postgres": func(context.Context) error { return errors.New("down") },
	}, logger)

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, map[string]any{"redis": "up", "postgres": "down"}, body["backends"])
}
