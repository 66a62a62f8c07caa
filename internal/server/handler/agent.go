package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

// retryAfterSeconds is sent when generation fails for lack of market data.
const retryAfterSeconds = 60

// Generator is the trade generator surface the agent routes use.
type Generator interface {
	Agents() []domain.AgentProfile
	Agent(id string) (domain.AgentProfile, bool)
	GenerateAgentTrades(ctx context.Context, agentID string) ([]domain.AgentTrade, error)
	GetAgentResearch(agentID string) []domain.ResearchDecision
}

// PortfolioReader returns the live ledger view of an agent.
type PortfolioReader interface {
	Portfolio(agentID string) domain.AgentPortfolio
}

// AgentHandler serves the per-agent endpoints.
type AgentHandler struct {
	gen        Generator
	portfolios PortfolioReader
	trades     domain.TradeStore
	research   domain.ResearchStore
	logger     *slog.Logger
}

// NewAgentHandler creates an AgentHandler. research may be nil, which
// disables ?history=true on the research route.
func NewAgentHandler(gen Generator, portfolios PortfolioReader, trades domain.TradeStore, research domain.ResearchStore, logger *slog.Logger) *AgentHandler {
	return &AgentHandler{
		gen:        gen,
		portfolios: portfolios,
		trades:     trades,
		research:   research,
		logger:     logger.With(slog.String("handler", "agents")),
	}
}

// ListAgents returns the roster.
// GET /api/agents
func (h *AgentHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": h.gen.Agents()})
}

// GenerateTrades runs one cycle for the agent. A market-data outage is not
// an error to the caller: it gets an empty list and a retry hint.
// POST /api/agents/{id}/trades
func (h *AgentHandler) GenerateTrades(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	trades, err := h.gen.GenerateAgentTrades(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrUnknownAgent):
		writeError(w, http.StatusNotFound, "unknown agent: "+id)
		return
	case errors.Is(err, domain.ErrMarketData):
		h.logger.Warn("agents: market data unavailable",
			slog.String("agent", id),
			slog.String("error", err.Error()),
		)
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusOK, map[string]any{
			"trades":              []domain.AgentTrade{},
			"retry_after_seconds": retryAfterSeconds,
		})
		return
	case err != nil:
		h.logger.Error("agents: generate failed",
			slog.String("agent", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "generation failed")
		return
	}
	if trades == nil {
		trades = []domain.AgentTrade{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": trades})
}

// ListTrades returns the agent's stored trades, newest first.
// GET /api/agents/{id}/trades
func (h *AgentHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	id, ok := h.agentID(w, r)
	if !ok {
		return
	}
	trades, err := h.trades.ListByAgent(r.Context(), id, parseListOpts(r))
	if err != nil {
		h.logger.Error("agents: list trades", slog.String("agent", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	if trades == nil {
		trades = []domain.AgentTrade{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": trades})
}

// ListResearch returns the research notes of the agent's latest cycle, or
// the stored history with ?history=true.
// GET /api/agents/{id}/research
func (h *AgentHandler) ListResearch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.agentID(w, r)
	if !ok {
		return
	}

	var notes []domain.ResearchDecision
	if r.URL.Query().Get("history") == "true" && h.research != nil {
		var err error
		notes, err = h.research.ListByAgent(r.Context(), id, parseListOpts(r))
		if err != nil {
			h.logger.Error("agents: list research", slog.String("agent", id), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "failed to list research")
			return
		}
	} else {
		notes = h.gen.GetAgentResearch(id)
	}
	if notes == nil {
		notes = []domain.ResearchDecision{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"research": notes})
}

// GetPortfolio returns the agent's ledger state.
// GET /api/agents/{id}/portfolio
func (h *AgentHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := h.agentID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.portfolios.Portfolio(id))
}

func (h *AgentHandler) agentID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if _, ok := h.gen.Agent(id); !ok {
		writeError(w, http.StatusNotFound, "unknown agent: "+id)
		return "", false
	}
	return id, true
}
