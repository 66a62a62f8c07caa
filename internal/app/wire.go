package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/polyagents/internal/blob/s3"
	"github.com/alanyoungcy/polyagents/internal/cache"
	"github.com/alanyoungcy/polyagents/internal/cache/redis"
	"github.com/alanyoungcy/polyagents/internal/config"
	"github.com/alanyoungcy/polyagents/internal/decision"
	"github.com/alanyoungcy/polyagents/internal/domain"
	"github.com/alanyoungcy/polyagents/internal/feed"
	"github.com/alanyoungcy/polyagents/internal/ledger"
	"github.com/alanyoungcy/polyagents/internal/notify"
	"github.com/alanyoungcy/polyagents/internal/platform/llm"
	"github.com/alanyoungcy/polyagents/internal/platform/news"
	"github.com/alanyoungcy/polyagents/internal/platform/polymarket"
	"github.com/alanyoungcy/polyagents/internal/platform/websearch"
	"github.com/alanyoungcy/polyagents/internal/server/handler"
	"github.com/alanyoungcy/polyagents/internal/service"
	"github.com/alanyoungcy/polyagents/internal/store/memory"
	"github.com/alanyoungcy/polyagents/internal/store/postgres"
)

// snapshotTTL keeps last-known-good market and news lists in Redis across
// restarts.
const snapshotTTL = 24 * time.Hour

// Dependencies bundles the infrastructure every mode needs. Postgres, Redis
// and S3 are optional; without them the in-memory stores and bus are used
// and locking, rate limiting and archival are off.
type Dependencies struct {
	// Stores
	Trades     domain.TradeStore
	Portfolios domain.PortfolioStore
	Research   domain.ResearchStore
	Audit      domain.AuditStore

	// Caches
	Caches    *cache.Registry
	Snapshots domain.SnapshotCache
	Limiter   domain.RateLimiter
	Locks     domain.LockManager
	Bus       domain.SignalBus

	// Blob storage
	Archiver domain.Archiver

	// Notifications
	Notifier *notify.Notifier

	// Checks feeds the health endpoint, keyed by backend name.
	Checks map[string]handler.Pinger
}

// Wire constructs the infrastructure from cfg and returns it with a cleanup
// func that releases connections in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Caches: cache.NewRegistry(cache.RegistryConfig{
			MarketTTL: cfg.Polymarket.MarketTTL.Duration,
			NewsTTL:   cfg.News.TTL.Duration,
			TradeTTL:  cfg.Generator.TradeTTL.Duration,
		}),
		Checks: make(map[string]handler.Pinger),
	}

	// --- PostgreSQL ---
	if cfg.Supabase.Enabled() {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Supabase.DSN,
			Host:     cfg.Supabase.Host,
			Port:     cfg.Supabase.Port,
			Database: cfg.Supabase.Database,
			User:     cfg.Supabase.User,
			Password: cfg.Supabase.Password,
			SSLMode:  cfg.Supabase.SSLMode,
			MaxConns: cfg.Supabase.PoolMaxConns,
			MinConns: cfg.Supabase.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pg.Close)

		if cfg.Supabase.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pg.Pool()
		deps.Trades = postgres.NewTradeStore(pool)
		deps.Portfolios = postgres.NewPortfolioStore(pool)
		deps.Research = postgres.NewResearchStore(pool)
		deps.Audit = postgres.NewAuditStore(pool)
		deps.Checks["postgres"] = pg.Ping
	} else {
		logger.InfoContext(ctx, "wire: postgres not configured, using in-memory stores")
		deps.Trades = memory.NewTradeStore()
		deps.Portfolios = memory.NewPortfolioStore()
		deps.Research = memory.NewResearchStore()
		deps.Audit = memory.NewAuditStore()
	}

	// --- Redis ---
	if cfg.Redis.Addr != "" {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = rc.Close() })

		deps.Snapshots = redis.NewSnapshotCache(rc, snapshotTTL)
		deps.Limiter = redis.NewRateLimiter(rc, cfg.Providers.RateLimit, cfg.Providers.RateWindow.Duration)
		deps.Locks = redis.NewLockManager(rc)
		deps.Bus = redis.NewSignalBus(rc)
		deps.Checks["redis"] = rc.Ping
	} else {
		logger.InfoContext(ctx, "wire: redis not configured, using in-process bus")
		deps.Bus = memory.NewSignalBus()
	}

	// --- S3 archive ---
	if cfg.S3.Bucket != "" {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(sc),
			s3blob.NewReader(sc),
			deps.Trades,
			deps.Research,
			deps.Audit,
		)
		deps.Checks["s3"] = sc.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, ""))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// Services are the domain components built over Dependencies.
type Services struct {
	Agents      []domain.AgentProfile
	Markets     *feed.MarketFeed
	News        *feed.NewsFeed
	Engine      *decision.Engine
	Ledger      *ledger.Ledger
	Generator   *service.Generator
	Portfolios  *service.PortfolioService
	Leaderboard *service.LeaderboardService
}

// BuildServices wires feeds, providers, the decision engine and the
// services, then restores persisted portfolios into the ledger.
func BuildServices(ctx context.Context, cfg *config.Config, agents []domain.AgentProfile, deps *Dependencies, logger *slog.Logger) (*Services, error) {
	gamma := polymarket.NewGammaClient(polymarket.GammaConfig{
		BaseURL:  cfg.Polymarket.GammaHost,
		PageSize: cfg.Polymarket.PageSize,
		MaxPages: cfg.Polymarket.MaxPages,
	})
	markets := feed.NewMarketFeed(gamma, deps.Caches.Markets, deps.Snapshots, logger)

	newsTimeout := 15 * time.Second
	newsFeed := feed.NewNewsFeed([]feed.NewsProvider{
		news.NewNewsAPI(news.NewsAPIConfig{APIKey: cfg.News.NewsAPIKey, Timeout: newsTimeout}),
		news.NewGNews(news.GNewsConfig{APIKey: cfg.News.GNewsKey, Timeout: newsTimeout}),
		news.NewGoogleRSS(news.GoogleRSSConfig{FeedURL: cfg.News.GoogleRSSURL, Enabled: cfg.News.GoogleRSS, Timeout: newsTimeout}),
	}, deps.Caches.News, deps.Snapshots, logger)

	var researcher domain.WebResearcher
	if cfg.Research.TavilyKey != "" {
		researcher = websearch.NewTavily(websearch.TavilyConfig{
			APIKey:  cfg.Research.TavilyKey,
			Timeout: cfg.Research.Timeout.Duration,
		})
	}

	engine := decision.NewEngine(providers(cfg), researcher, deps.Limiter, decision.Config{
		Timeout:         cfg.Providers.Timeout.Duration,
		ResearchTimeout: cfg.Research.Timeout.Duration,
		RateLimit:       cfg.Providers.RateLimit,
		RateWindow:      cfg.Providers.RateWindow.Duration,
	}, logger)

	l := ledger.New(time.Now)

	gen := service.NewGenerator(service.GeneratorDeps{
		Agents:     agents,
		Markets:    markets,
		News:       newsFeed,
		Decider:    engine,
		Caches:     deps.Caches,
		Ledger:     l,
		Trades:     deps.Trades,
		Research:   deps.Research,
		Portfolios: deps.Portfolios,
		Bus:        deps.Bus,
		Notifier:   deps.Notifier,
	}, service.GeneratorConfig{
		MinScore:      cfg.Generator.MinScore,
		MinConfidence: cfg.Generator.MinConfidence,
	}, logger)

	portfolios := service.NewPortfolioService(
		l, markets, deps.Trades, deps.Portfolios, deps.Bus, deps.Notifier,
		cfg.Generator.DrawdownAlert, logger,
	)
	if err := portfolios.Restore(ctx); err != nil {
		return nil, fmt.Errorf("app: restore portfolios: %w", err)
	}

	return &Services{
		Agents:      agents,
		Markets:     markets,
		News:        newsFeed,
		Engine:      engine,
		Ledger:      l,
		Generator:   gen,
		Portfolios:  portfolios,
		Leaderboard: service.NewLeaderboardService(agents, deps.Trades, l, time.Now),
	}, nil
}

// providers builds all six adapters. Unkeyed adapters report themselves
// unconfigured and their agents fall back to the deterministic decision.
func providers(cfg *config.Config) []domain.AIProvider {
	p := cfg.Providers
	timeout := p.Timeout.Duration
	return []domain.AIProvider{
		llm.NewOpenAI(llm.OpenAIConfig{
			APIKey: p.OpenAI.APIKey, Model: p.OpenAI.Model, BaseURL: p.OpenAI.BaseURL, MaxTokens: p.MaxTokens,
		}),
		llm.NewDeepSeek(llm.DeepSeekConfig{
			APIKey: p.DeepSeek.APIKey, Model: p.DeepSeek.Model, BaseURL: p.DeepSeek.BaseURL, MaxTokens: p.MaxTokens, Timeout: timeout,
		}),
		llm.NewAnthropic(llm.AnthropicConfig{
			APIKey: p.Anthropic.APIKey, Model: p.Anthropic.Model, BaseURL: p.Anthropic.BaseURL, MaxTokens: p.MaxTokens, Timeout: timeout,
		}),
		llm.NewGemini(llm.GeminiConfig{
			APIKey: p.Gemini.APIKey, Model: p.Gemini.Model, BaseURL: p.Gemini.BaseURL, MaxTokens: p.MaxTokens, Timeout: timeout,
		}),
		llm.NewXAI(llm.XAIConfig{
			APIKey: p.XAI.APIKey, Model: p.XAI.Model, BaseURL: p.XAI.BaseURL, MaxTokens: p.MaxTokens, Timeout: timeout,
		}),
		llm.NewBedrock(llm.BedrockConfig{
			Region:                p.Bedrock.Region,
			ModelID:               p.Bedrock.ModelID,
			AccessKeyID:           p.Bedrock.AccessKeyID,
			SecretAccessKey:       p.Bedrock.SecretAccessKey,
			SessionToken:          p.Bedrock.SessionToken,
			UseDefaultCredentials: p.Bedrock.UseDefaultCredentials,
			MaxTokens:             p.MaxTokens,
			Timeout:               timeout,
		}),
	}
}
