// Package server exposes the agent engine over HTTP and websockets.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/polyagents/internal/domain"
	"github.com/alanyoungcy/polyagents/internal/metrics"
	"github.com/alanyoungcy/polyagents/internal/server/handler"
	"github.com/alanyoungcy/polyagents/internal/server/middleware"
	"github.com/alanyoungcy/polyagents/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKey guards the generate route; empty disables the check.
	APIKey string
	// RateLimit caps requests per client IP per minute; 0 disables it.
	RateLimit int
}

// Handlers aggregates the route handlers.
type Handlers struct {
	Health      *handler.HealthHandler
	Agents      *handler.AgentHandler
	Leaderboard *handler.LeaderboardHandler
}

// Server is the HTTP + websocket API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers routes and wraps them in metrics, logging, rate
// limiting and CORS. hub and limiter may be nil.
func NewServer(cfg Config, h Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      Routes(cfg, h, hub, limiter, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Routes builds the full handler chain.
func Routes(cfg Config, h Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health.HealthCheck)

	mux.HandleFunc("GET /api/agents", h.Agents.ListAgents)
	mux.Handle("POST /api/agents/{id}/trades", middleware.Auth(cfg.APIKey)(http.HandlerFunc(h.Agents.GenerateTrades)))
	mux.HandleFunc("GET /api/agents/{id}/trades", h.Agents.ListTrades)
	mux.HandleFunc("GET /api/agents/{id}/research", h.Agents.ListResearch)
	mux.HandleFunc("GET /api/agents/{id}/portfolio", h.Agents.GetPortfolio)
	mux.HandleFunc("GET /api/agents/{id}/metrics", h.Leaderboard.AgentMetrics)

	mux.HandleFunc("GET /api/leaderboard", h.Leaderboard.Leaderboard)
	mux.HandleFunc("GET /api/consensus", h.Leaderboard.Consensus)
	mux.HandleFunc("GET /api/conflicts", h.Leaderboard.Conflicts)

	mux.Handle("GET /metrics", metrics.Handler())
	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var handler http.Handler = mux
	handler = metrics.Middleware(handler)
	handler = middleware.RateLimit(limiter, cfg.RateLimit, time.Minute, logger)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.CORS(cfg.CORSOrigins)(handler)
	return handler
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
