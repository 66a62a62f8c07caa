package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyagents/internal/domain"
	"github.com/alanyoungcy/polyagents/internal/metrics"
)

// Config tunes the engine.
type Config struct {
	// Timeout bounds each provider call. Defaults to 30s.
	Timeout time.Duration
	// ResearchTimeout bounds the optional web research lookup. Defaults to 10s.
	ResearchTimeout time.Duration
	// RateLimit caps provider calls per RateWindow; 0 disables limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Request is one candidate to decide on.
type Request struct {
	Agent     domain.AgentProfile
	Candidate domain.ScoredMarket
	// News holds the articles related to the candidate's question.
	News []domain.NewsArticle
	// Index is the candidate's position in the agent's cycle; it seeds the
	// fallback.
	Index int
}

// Engine routes decisions to the agent's provider. It keeps no per-call
// state and is safe for concurrent use.
type Engine struct {
	providers  map[string]domain.AIProvider
	researcher domain.WebResearcher
	limiter    domain.RateLimiter
	cfg        Config
	logger     *slog.Logger
}

// NewEngine creates an engine over the given providers. researcher and
// limiter may be nil.
func NewEngine(
	providers []domain.AIProvider,
	researcher domain.WebResearcher,
	limiter domain.RateLimiter,
	cfg Config,
	logger *slog.Logger,
) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ResearchTimeout <= 0 {
		cfg.ResearchTimeout = 10 * time.Second
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	byName := make(map[string]domain.AIProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Engine{
		providers:  byName,
		researcher: researcher,
		limiter:    limiter,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "decision_engine")),
	}
}

// Provider returns the named provider, if registered.
func (e *Engine) Provider(name string) (domain.AIProvider, bool) {
	p, ok := e.providers[name]
	return p, ok
}

// Decide never fails: any problem with the provider yields the
// deterministic fallback, tagged with the reason.
func (e *Engine) Decide(ctx context.Context, req Request) Result {
	res := e.consult(ctx, req)
	if res.Kind != KindOK {
		res.Decision = Fallback(req.Agent.ID, req.Candidate, len(req.News), req.Index)
	}
	metrics.DecisionsTotal.WithLabelValues(providerLabel(res.Provider), res.Kind.String()).Inc()
	e.logResult(req, res)
	return res
}

func (e *Engine) consult(ctx context.Context, req Request) Result {
	name := req.Agent.Provider
	p, ok := e.providers[name]
	if !ok || !p.Configured() {
		return Result{
			Kind:     KindConfig,
			Provider: name,
			Err:      fmt.Errorf("decision: provider %q: %w", name, ErrNotConfigured),
		}
	}

	if e.limiter != nil && e.cfg.RateLimit > 0 {
		allowed, err := e.limiter.Allow(ctx, "provider:"+name, e.cfg.RateLimit, e.cfg.RateWindow)
		if err != nil {
			e.logger.WarnContext(ctx, "decision_engine: rate limiter unavailable",
				slog.String("provider", name),
				slog.String("error", err.Error()),
			)
		} else if !allowed {
			return Result{
				Kind:     KindProvider,
				Provider: name,
				Err:      fmt.Errorf("decision: provider %q: %w", name, domain.ErrRateLimited),
			}
		}
	}

	prompt := BuildPrompt(PromptInput{
		Agent:     req.Agent,
		Candidate: req.Candidate,
		News:      req.News,
		Research:  e.research(ctx, req.Candidate.Question),
	})

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	start := time.Now()
	reply, err := p.Complete(callCtx, prompt)
	metrics.ObserveProvider(name, start)
	if err != nil {
		kind := KindProvider
		if errors.Is(err, domain.ErrIneligible) {
			kind = KindQuietIneligible
		}
		return Result{Kind: kind, Provider: name, Reply: reply, Err: fmt.Errorf("decision: call %s: %w", name, err)}
	}

	d, err := ParseReply(reply.Text)
	if err != nil {
		kind := KindParse
		if errors.Is(err, ErrRefused) {
			kind = KindProvider
		}
		return Result{Kind: kind, Provider: name, Reply: reply, Err: fmt.Errorf("decision: parse %s reply: %w", name, err)}
	}
	d.Source = name
	return Result{Kind: KindOK, Provider: name, Reply: reply, Decision: d}
}

func (e *Engine) research(ctx context.Context, question string) []string {
	if e.researcher == nil {
		return nil
	}
	rctx, cancel := context.WithTimeout(ctx, e.cfg.ResearchTimeout)
	defer cancel()

	snippets, err := e.researcher.Search(rctx, question, maxPromptResearch)
	if err != nil {
		e.logger.WarnContext(ctx, "decision_engine: web research failed",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return snippets
}

func (e *Engine) logResult(req Request, res Result) {
	attrs := []any{
		slog.String("agent_id", req.Agent.ID),
		slog.String("market_id", req.Candidate.ID),
		slog.String("provider", res.Provider),
		slog.String("kind", res.Kind.String()),
	}
	switch res.Kind {
	case KindOK:
		e.logger.Debug("decision_engine: provider decision", attrs...)
	case KindConfig, KindQuietIneligible:
		e.logger.Debug("decision_engine: using fallback", append(attrs, slog.String("error", res.Err.Error()))...)
	case KindParse:
		e.logger.Warn("decision_engine: unparseable reply",
			append(attrs,
				slog.String("error", res.Err.Error()),
				slog.String("excerpt", excerpt(res.Reply.Text)),
			)...)
	default:
		e.logger.Warn("decision_engine: provider failed", append(attrs, slog.String("error", res.Err.Error()))...)
	}
}

func providerLabel(name string) string {
	if name == "" {
		return "none"
	}
	return name
}
