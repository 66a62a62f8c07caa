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

// XAIConfig configures the xAI chat completions adapter.
type XAIConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// XAI calls the OpenAI-compatible xAI endpoint over resty.
type XAI struct {
	cfg    XAIConfig
	client *resty.Client
}

// NewXAI creates the adapter.
func NewXAI(cfg XAIConfig) *XAI {
	cfg.Model = orDefault(cfg.Model, "grok-2-latest")
	cfg.BaseURL = strings.TrimRight(orDefault(cfg.BaseURL, "https://api.x.ai"), "/")
	cfg.MaxTokens = maxTokensOr(cfg.MaxTokens)

	client := newRestyClient(cfg.Timeout)
	client.SetAuthToken(cfg.APIKey)
	return &XAI{cfg: cfg, client: client}
}

func (x *XAI) Name() string     { return NameXAI }
func (x *XAI) Configured() bool { return x.cfg.APIKey != "" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete posts a chat completion with a system and a user turn.
func (x *XAI) Complete(ctx context.Context, prompt string) (domain.RawReply, error) {
	resp, err := x.client.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model: x.cfg.Model,
			Messages: []chatMessage{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: prompt},
			},
			MaxTokens: x.cfg.MaxTokens,
		}).
		Post(x.cfg.BaseURL + "/v1/chat/completions")
	if err != nil {
		return domain.RawReply{}, fmt.Errorf("xai: request: %w", err)
	}
	if resp.IsError() {
		return domain.RawReply{}, newStatusError(NameXAI, resp.StatusCode(), resp.String())
	}

	var out chatResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return domain.RawReply{}, fmt.Errorf("xai: decode response: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return domain.RawReply{}, fmt.Errorf("xai: %w", ErrEmptyReply)
	}
	return domain.RawReply{Provider: NameXAI, Model: orDefault(out.Model, x.cfg.Model), Text: out.Choices[0].Message.Content}, nil
}
