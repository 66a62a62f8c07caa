package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "POLYAGENTS_"

// Load decodes the TOML file at path over Defaults, loads .env when
// present and applies POLYAGENTS_* overrides. An empty path skips the file.
// The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "MODE")
	setStr(&cfg.LogLevel, "LOG_LEVEL")
	setStr(&cfg.AgentsFile, "AGENTS_FILE")
	setStr(&cfg.Log.File, "LOG_FILE")

	setStr(&cfg.Polymarket.GammaHost, "POLYMARKET_GAMMA_HOST")
	setDuration(&cfg.Polymarket.MarketTTL, "POLYMARKET_MARKET_TTL")

	setStr(&cfg.News.NewsAPIKey, "NEWSAPI_KEY")
	setStr(&cfg.News.GNewsKey, "GNEWS_KEY")
	setBool(&cfg.News.GoogleRSS, "NEWS_GOOGLE_RSS")

	setDuration(&cfg.Providers.Timeout, "PROVIDERS_TIMEOUT")
	setInt(&cfg.Providers.RateLimit, "PROVIDERS_RATE_LIMIT")
	setStr(&cfg.Providers.OpenAI.APIKey, "OPENAI_API_KEY")
	setStr(&cfg.Providers.OpenAI.Model, "OPENAI_MODEL")
	setStr(&cfg.Providers.DeepSeek.APIKey, "DEEPSEEK_API_KEY")
	setStr(&cfg.Providers.DeepSeek.Model, "DEEPSEEK_MODEL")
	setStr(&cfg.Providers.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setStr(&cfg.Providers.Anthropic.Model, "ANTHROPIC_MODEL")
	setStr(&cfg.Providers.Gemini.APIKey, "GEMINI_API_KEY")
	setStr(&cfg.Providers.Gemini.Model, "GEMINI_MODEL")
	setStr(&cfg.Providers.XAI.APIKey, "XAI_API_KEY")
	setStr(&cfg.Providers.XAI.Model, "XAI_MODEL")
	setStr(&cfg.Providers.Bedrock.Region, "BEDROCK_REGION")
	setStr(&cfg.Providers.Bedrock.ModelID, "BEDROCK_MODEL_ID")
	setStr(&cfg.Providers.Bedrock.AccessKeyID, "BEDROCK_ACCESS_KEY_ID")
	setStr(&cfg.Providers.Bedrock.SecretAccessKey, "BEDROCK_SECRET_ACCESS_KEY")
	setStr(&cfg.Providers.Bedrock.SessionToken, "BEDROCK_SESSION_TOKEN")
	setBool(&cfg.Providers.Bedrock.UseDefaultCredentials, "BEDROCK_USE_DEFAULT_CREDENTIALS")

	setStr(&cfg.Research.TavilyKey, "TAVILY_API_KEY")

	setFloat64(&cfg.Generator.MinScore, "GENERATOR_MIN_SCORE")
	setFloat64(&cfg.Generator.MinConfidence, "GENERATOR_MIN_CONFIDENCE")
	setDuration(&cfg.Generator.TradeTTL, "GENERATOR_TRADE_TTL")
	setDuration(&cfg.Generator.CycleInterval, "GENERATOR_CYCLE_INTERVAL")
	setDuration(&cfg.Generator.ValuationInterval, "GENERATOR_VALUATION_INTERVAL")
	setDuration(&cfg.Generator.SettlementInterval, "GENERATOR_SETTLEMENT_INTERVAL")
	setStr(&cfg.Generator.ArchiveCron, "GENERATOR_ARCHIVE_CRON")
	setInt(&cfg.Generator.ArchiveAfterDays, "GENERATOR_ARCHIVE_AFTER_DAYS")
	setFloat64(&cfg.Generator.DrawdownAlert, "GENERATOR_DRAWDOWN_ALERT")

	setStr(&cfg.Supabase.DSN, "SUPABASE_DSN")
	setStr(&cfg.Supabase.Host, "SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "SUPABASE_SSL_MODE")
	setBool(&cfg.Supabase.RunMigrations, "SUPABASE_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "REDIS_TLS_ENABLED")

	setStr(&cfg.S3.Endpoint, "S3_ENDPOINT")
	setStr(&cfg.S3.Region, "S3_REGION")
	setStr(&cfg.S3.Bucket, "S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "S3_FORCE_PATH_STYLE")

	setInt(&cfg.Server.Port, "SERVER_PORT")
	setStr(&cfg.Server.APIKey, "SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "SERVER_CORS_ORIGINS")

	setStr(&cfg.Notify.TelegramToken, "NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "NOTIFY_EVENTS")
}

// Typed helpers; each only writes when the variable is set and parses.

func lookup(key string) (string, bool) {
	v := os.Getenv(EnvPrefix + key)
	return v, v != ""
}

func setStr(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v, ok := lookup(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v, ok := lookup(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	var cleaned []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) > 0 {
		*dst = cleaned
	}
}
