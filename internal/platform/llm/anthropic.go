package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

const anthropicVersion = "2023-06-01"

// AnthropicConfig configures the Anthropic Messages API adapter.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// Anthropic calls the Messages API over resty.
type Anthropic struct {
	cfg    AnthropicConfig
	client *resty.Client
}

// NewAnthropic creates the adapter.
func NewAnthropic(cfg AnthropicConfig) *Anthropic {
	cfg.Model = orDefault(cfg.Model, "claude-3-5-haiku-latest")
	cfg.BaseURL = strings.TrimRight(orDefault(cfg.BaseURL, "https://api.anthropic.com"), "/")
	cfg.MaxTokens = maxTokensOr(cfg.MaxTokens)

	client := newRestyClient(cfg.Timeout)
	client.SetHeader("x-api-key", cfg.APIKey)
	client.SetHeader("anthropic-version", anthropicVersion)
	return &Anthropic{cfg: cfg, client: client}
}

func (a *Anthropic) Name() string     { return NameAnthropic }
func (a *Anthropic) Configured() bool { return a.cfg.APIKey != "" }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete posts one user message and returns the first text block.
func (a *Anthropic) Complete(ctx context.Context, prompt string) (domain.RawReply, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(anthropicRequest{
			Model:     a.cfg.Model,
			MaxTokens: a.cfg.MaxTokens,
			System:    systemPrompt,
			Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
		}).
		Post(a.cfg.BaseURL + "/v1/messages")
	if err != nil {
		return domain.RawReply{}, fmt.Errorf("anthropic: request: %w", err)
	}
	if resp.IsError() {
		return domain.RawReply{}, newStatusError(NameAnthropic, resp.StatusCode(), resp.String())
	}

	var out anthropicResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return domain.RawReply{}, fmt.Errorf("anthropic: decode response: %w", err)
	}
	for _, block := range out.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return domain.RawReply{Provider: NameAnthropic, Model: orDefault(out.Model, a.cfg.Model), Text: block.Text}, nil
		}
	}
	return domain.RawReply{}, fmt.Errorf("anthropic: %w", ErrEmptyReply)
}
