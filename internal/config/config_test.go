package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 60*time.Second, cfg.Polymarket.MarketTTL.Duration)
	assert.Equal(t, 5*time.Minute, cfg.Generator.TradeTTL.Duration)
	assert.False(t, cfg.Supabase.Enabled())
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "backtest"
	cfg.Generator.MinConfidence = 2
	cfg.Notify.TelegramToken = "tok"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "backtest"`)
	assert.Contains(t, err.Error(), "min_confidence")
	assert.Contains(t, err.Error(), "telegram_chat_id")
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "polyagents.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "serve"

[polymarket]
market_ttl = "90s"

[generator]
min_score = 6.5

[server]
port = 9000
`), 0o600))

	t.Setenv("POLYAGENTS_SERVER_PORT", "9100")
	t.Setenv("POLYAGENTS_OPENAI_API_KEY", "sk-test")
	t.Setenv("POLYAGENTS_SERVER_CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("POLYAGENTS_GENERATOR_TRADE_TTL", "not-a-duration")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "serve", cfg.Mode)
	assert.Equal(t, 90*time.Second, cfg.Polymarket.MarketTTL.Duration)
	assert.Equal(t, 6.5, cfg.Generator.MinScore)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "sk-test", cfg.Providers.OpenAI.APIKey)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 5*time.Minute, cfg.Generator.TradeTTL.Duration, "unparseable override is ignored")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Providers.Anthropic.APIKey = "secret"
	cfg.Supabase.Password = "pw"
	cfg.Server.APIKey = "key"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Providers.Anthropic.APIKey)
	assert.Equal(t, "***", out.Supabase.Password)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Empty(t, out.Providers.OpenAI.APIKey)
	assert.Equal(t, "secret", cfg.Providers.Anthropic.APIKey)

	out.Server.CORSOrigins[0] = "changed"
	assert.NotEqual(t, "changed", cfg.Server.CORSOrigins[0])
}

func TestDefaultAgentsValid(t *testing.T) {
	agents, err := LoadAgents("")
	require.NoError(t, err)
	require.NoError(t, ValidateAgents(agents))
	assert.Len(t, agents, 6)

	providers := map[string]bool{}
	for _, a := range agents {
		providers[a.Provider] = true
	}
	assert.Len(t, providers, 6)
}

func TestParseAgents(t *testing.T) {
	agents, err := ParseAgents([]byte(`
agents:
  - id: alpha
    risk: medium
    max_trades: 2
    provider: OpenAI
    weights: {volume: 1, liquidity: 1, price_movement: 2, news: 1, prob: 0}
    focus_categories: [Politics]
  - id: beta
    max_trades: 1
`))
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, domain.RiskMedium, agents[0].Risk)
	assert.Equal(t, "openai", agents[0].Provider)
	assert.Equal(t, 2.0, agents[0].Weights.PriceMovement)
	assert.Equal(t, "alpha", agents[0].DisplayName)
	assert.Equal(t, domain.RiskLow, agents[1].Risk)
	assert.Empty(t, agents[1].Provider)
}

func TestParseAgentsRejectsBadRoster(t *testing.T) {
	_, err := ParseAgents([]byte(`
agents:
  - id: dup
    max_trades: 1
  - id: dup
    max_trades: 0
    risk: EXTREME
    provider: mystery
    weights: {volume: -1}
`))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "duplicate id")
	assert.Contains(t, msg, "max_trades")
	assert.Contains(t, msg, "unknown risk")
	assert.Contains(t, msg, "unknown provider")
	assert.Contains(t, msg, "non-negative")
}

func TestLoadAgentsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agents:\n  - id: solo\n    max_trades: 1\n"), 0o600))
	agents, err := LoadAgents(path)
	require.NoError(t, err)
	assert.Equal(t, "solo", agents[0].ID)

	_, err = ParseAgents([]byte("agents: []\n"))
	assert.Error(t, err)
}
