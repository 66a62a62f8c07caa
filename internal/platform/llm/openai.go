package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

// OpenAIConfig configures the OpenAI chat adapter.
type OpenAIConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
}

// OpenAI adapts an eino OpenAI chat model.
type OpenAI struct {
	cfg OpenAIConfig

	once  sync.Once
	model *openai.ChatModel
	err   error
}

// NewOpenAI creates the adapter. The chat model is built on first use.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	cfg.Model = orDefault(cfg.Model, "gpt-4o-mini")
	cfg.BaseURL = orDefault(cfg.BaseURL, "https://api.openai.com/v1")
	cfg.MaxTokens = maxTokensOr(cfg.MaxTokens)
	return &OpenAI{cfg: cfg}
}

func (o *OpenAI) Name() string     { return NameOpenAI }
func (o *OpenAI) Configured() bool { return o.cfg.APIKey != "" }

// Complete sends the prompt as a single user turn.
func (o *OpenAI) Complete(ctx context.Context, prompt string) (domain.RawReply, error) {
	o.once.Do(func() {
		maxTokens := o.cfg.MaxTokens
		o.model, o.err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   o.cfg.BaseURL,
			APIKey:    o.cfg.APIKey,
			Model:     o.cfg.Model,
			MaxTokens: &maxTokens,
		})
	})
	if o.err != nil {
		return domain.RawReply{}, fmt.Errorf("openai: init chat model: %w", o.err)
	}

	msg, err := o.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(prompt),
	})
	if err != nil {
		return domain.RawReply{}, fmt.Errorf("openai: generate: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return domain.RawReply{}, fmt.Errorf("openai: %w", ErrEmptyReply)
	}
	return domain.RawReply{Provider: NameOpenAI, Model: o.cfg.Model, Text: msg.Content}, nil
}
