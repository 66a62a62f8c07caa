package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

// Rankings computes leaderboard, consensus and conflict views.
type Rankings interface {
	AgentMetrics(ctx context.Context, agent domain.AgentProfile, window domain.TimeWindow) (domain.AgentMetrics, error)
	Leaderboard(ctx context.Context, window domain.TimeWindow) ([]domain.AgentMetrics, error)
	Consensus(ctx context.Context) ([]domain.ConsensusMetrics, error)
	Conflicts(ctx context.Context) ([]domain.ConflictMetrics, error)
}

// LeaderboardHandler serves the cross-agent analytics routes.
type LeaderboardHandler struct {
	gen      Generator
	rankings Rankings
	logger   *slog.Logger
}

// NewLeaderboardHandler creates a LeaderboardHandler.
func NewLeaderboardHandler(gen Generator, rankings Rankings, logger *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		gen:      gen,
		rankings: rankings,
		logger:   logger.With(slog.String("handler", "leaderboard")),
	}
}

// AgentMetrics returns one agent's performance over a window.
// GET /api/agents/{id}/metrics?window=7d
func (h *LeaderboardHandler) AgentMetrics(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	agent, ok := h.gen.Agent(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown agent: "+id)
		return
	}
	window, ok := parseWindow(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "window must be one of all, 30d, 7d, 24h")
		return
	}
	m, err := h.rankings.AgentMetrics(r.Context(), agent, window)
	if err != nil {
		h.fail(w, "agent metrics", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Leaderboard ranks every agent.
// GET /api/leaderboard?window=
func (h *LeaderboardHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	window, ok := parseWindow(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "window must be one of all, 30d, 7d, 24h")
		return
	}
	ranked, err := h.rankings.Leaderboard(r.Context(), window)
	if err != nil {
		h.fail(w, "leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"window": window, "agents": nonNil(ranked)})
}

// Consensus lists markets where open positions agree.
// GET /api/consensus
func (h *LeaderboardHandler) Consensus(w http.ResponseWriter, r *http.Request) {
	markets, err := h.rankings.Consensus(r.Context())
	if err != nil {
		h.fail(w, "consensus", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": nonNil(markets)})
}

// Conflicts lists markets where agents hold opposite sides.
// GET /api/conflicts
func (h *LeaderboardHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	markets, err := h.rankings.Conflicts(r.Context())
	if err != nil {
		h.fail(w, "conflicts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": nonNil(markets)})
}

func (h *LeaderboardHandler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error("leaderboard: "+op+" failed", slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, op+" failed")
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
