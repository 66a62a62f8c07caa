// Package config defines the polyagents configuration, its defaults and
// validation.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration. Fields come from a TOML file and are
// then overridden by POLYAGENTS_* environment variables.
type Config struct {
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
	AgentsFile string           `toml:"agents_file"`
	Log        LogConfig        `toml:"log"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	News       NewsConfig       `toml:"news"`
	Providers  ProvidersConfig  `toml:"providers"`
	Research   ResearchConfig   `toml:"research"`
	Generator  GeneratorConfig  `toml:"generator"`
	Supabase   SupabaseConfig   `toml:"supabase"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
}

// LogConfig adds an optional rotating log file next to stdout.
type LogConfig struct {
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// PolymarketConfig points at the Gamma market API.
type PolymarketConfig struct {
	GammaHost string   `toml:"gamma_host"`
	PageSize  int      `toml:"page_size"`
	MaxPages  int      `toml:"max_pages"`
	MarketTTL duration `toml:"market_ttl"`
}

// NewsConfig configures the three headline providers.
type NewsConfig struct {
	NewsAPIKey   string   `toml:"newsapi_key"`
	GNewsKey     string   `toml:"gnews_key"`
	GoogleRSS    bool     `toml:"google_rss"`
	GoogleRSSURL string   `toml:"google_rss_url"`
	TTL          duration `toml:"ttl"`
}

// ProvidersConfig holds per-vendor AI settings and the shared call limits.
type ProvidersConfig struct {
	Timeout    duration       `toml:"timeout"`
	MaxTokens  int            `toml:"max_tokens"`
	RateLimit  int            `toml:"rate_limit"`
	RateWindow duration       `toml:"rate_window"`
	OpenAI     ProviderConfig `toml:"openai"`
	DeepSeek   ProviderConfig `toml:"deepseek"`
	Anthropic  ProviderConfig `toml:"anthropic"`
	Gemini     ProviderConfig `toml:"gemini"`
	XAI        ProviderConfig `toml:"xai"`
	Bedrock    BedrockConfig  `toml:"bedrock"`
}

// ProviderConfig is the common shape of a keyed HTTP provider.
type ProviderConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
}

// BedrockConfig configures AWS Bedrock. Without static keys the default
// AWS credential chain is used when UseDefaultCredentials is set.
type BedrockConfig struct {
	Region                string `toml:"region"`
	ModelID               string `toml:"model_id"`
	AccessKeyID           string `toml:"access_key_id"`
	SecretAccessKey       string `toml:"secret_access_key"`
	SessionToken          string `toml:"session_token"`
	UseDefaultCredentials bool   `toml:"use_default_credentials"`
}

// ResearchConfig enables web research snippets in prompts.
type ResearchConfig struct {
	TavilyKey string   `toml:"tavily_key"`
	Timeout   duration `toml:"timeout"`
}

// GeneratorConfig holds the trade threshold and the scheduler cadence.
type GeneratorConfig struct {
	MinScore           float64  `toml:"min_score"`
	MinConfidence      float64  `toml:"min_confidence"`
	TradeTTL           duration `toml:"trade_ttl"`
	CycleInterval      duration `toml:"cycle_interval"`
	ValuationInterval  duration `toml:"valuation_interval"`
	SettlementInterval duration `toml:"settlement_interval"`
	ArchiveCron        string   `toml:"archive_cron"`
	ArchiveAfterDays   int      `toml:"archive_after_days"`
	DrawdownAlert      float64  `toml:"drawdown_alert"`
}

// SupabaseConfig holds Postgres connection parameters. Persistence is
// in-memory when neither DSN nor Host is set.
type SupabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// Enabled reports whether Postgres is configured.
func (s SupabaseConfig) Enabled() bool {
	return strings.TrimSpace(s.DSN) != "" || s.Host != ""
}

// RedisConfig holds Redis connection parameters. Empty Addr disables Redis.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// S3Config configures the archive bucket. Empty Bucket disables archival.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
}

// NotifyConfig holds Telegram and Discord settings.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so TOML strings like "5m" decode.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a configuration that runs with no external services:
// in-memory stores, fallback decisions, Google News RSS only.
func Defaults() Config {
	return Config{
		Mode:     "full",
		LogLevel: "info",
		Log: LogConfig{
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			PageSize:  100,
			MaxPages:  5,
			MarketTTL: duration{60 * time.Second},
		},
		News: NewsConfig{
			GoogleRSS: true,
			TTL:       duration{5 * time.Minute},
		},
		Providers: ProvidersConfig{
			Timeout:    duration{30 * time.Second},
			MaxTokens:  600,
			RateWindow: duration{time.Minute},
			Bedrock:    BedrockConfig{Region: "us-east-1"},
		},
		Research: ResearchConfig{
			Timeout: duration{10 * time.Second},
		},
		Generator: GeneratorConfig{
			MinScore:           5,
			TradeTTL:           duration{5 * time.Minute},
			CycleInterval:      duration{15 * time.Minute},
			ValuationInterval:  duration{time.Minute},
			SettlementInterval: duration{5 * time.Minute},
			ArchiveCron:        "0 3 * * *",
			ArchiveAfterDays:   90,
			DrawdownAlert:      0.2,
		},
		Supabase: SupabaseConfig{
			Port:          5432,
			SSLMode:       "require",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "polyagents:",
		},
		S3: S3Config{
			Region: "us-east-1",
			UseSSL: true,
		},
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
		},
		Notify: NotifyConfig{
			Events: []string{"trade_opened", "drawdown", "cycle_failed"},
		},
	}
}

var validModes = map[string]bool{
	"serve": true,
	"cycle": true,
	"full":  true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate returns one error listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, cycle, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.MarketTTL.Duration <= 0 {
		errs = append(errs, "polymarket: market_ttl must be > 0")
	}
	if c.News.TTL.Duration <= 0 {
		errs = append(errs, "news: ttl must be > 0")
	}

	if c.Providers.Timeout.Duration <= 0 {
		errs = append(errs, "providers: timeout must be > 0")
	}
	if c.Providers.RateLimit < 0 {
		errs = append(errs, "providers: rate_limit must be >= 0")
	}

	g := c.Generator
	if g.MinConfidence < 0 || g.MinConfidence > 1 {
		errs = append(errs, fmt.Sprintf("generator: min_confidence must be in [0,1], got %g", g.MinConfidence))
	}
	if g.TradeTTL.Duration <= 0 {
		errs = append(errs, "generator: trade_ttl must be > 0")
	}
	if c.Mode == "full" && g.CycleInterval.Duration <= 0 {
		errs = append(errs, "generator: cycle_interval must be > 0 in full mode")
	}
	if g.DrawdownAlert < 0 || g.DrawdownAlert >= 1 {
		errs = append(errs, fmt.Sprintf("generator: drawdown_alert must be in [0,1), got %g", g.DrawdownAlert))
	}
	if n := len(strings.Fields(g.ArchiveCron)); c.S3.Bucket != "" && n != 5 {
		errs = append(errs, fmt.Sprintf("generator: archive_cron must have 5 fields, got %d", n))
	}
	if g.ArchiveAfterDays < 1 {
		errs = append(errs, "generator: archive_after_days must be >= 1")
	}

	if c.Supabase.Enabled() {
		if c.Supabase.PoolMaxConns < 1 {
			errs = append(errs, "supabase: pool_max_conns must be >= 1")
		}
		if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
			errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
		}
		if strings.TrimSpace(c.Supabase.DSN) == "" && c.Supabase.Database == "" {
			errs = append(errs, "supabase: database must not be empty (or set supabase.dsn)")
		}
	}
	if c.Redis.Addr != "" && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}
	if c.S3.Bucket != "" && c.S3.Region == "" {
		errs = append(errs, "s3: region must not be empty when bucket is set")
	}

	if c.Mode != "cycle" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
