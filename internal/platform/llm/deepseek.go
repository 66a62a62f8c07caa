package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino/schema"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

// DeepSeekConfig configures the DeepSeek adapter.
type DeepSeekConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// DeepSeek adapts an eino DeepSeek chat model.
type DeepSeek struct {
	cfg DeepSeekConfig

	once  sync.Once
	model *deepseek.ChatModel
	err   error
}

// NewDeepSeek creates the adapter. The chat model is built on first use.
func NewDeepSeek(cfg DeepSeekConfig) *DeepSeek {
	cfg.Model = orDefault(cfg.Model, "deepseek-chat")
	cfg.BaseURL = orDefault(cfg.BaseURL, "https://api.deepseek.com/")
	cfg.MaxTokens = maxTokensOr(cfg.MaxTokens)
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &DeepSeek{cfg: cfg}
}

func (d *DeepSeek) Name() string     { return NameDeepSeek }
func (d *DeepSeek) Configured() bool { return d.cfg.APIKey != "" }

// Complete sends the prompt as a single user turn.
func (d *DeepSeek) Complete(ctx context.Context, prompt string) (domain.RawReply, error) {
	d.once.Do(func() {
		d.model, d.err = deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:    d.cfg.APIKey,
			Model:     d.cfg.Model,
			BaseURL:   d.cfg.BaseURL,
			MaxTokens: d.cfg.MaxTokens,
			Timeout:   d.cfg.Timeout,
		})
	})
	if d.err != nil {
		return domain.RawReply{}, fmt.Errorf("deepseek: init chat model: %w", d.err)
	}

	msg, err := d.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(prompt),
	})
	if err != nil {
		return domain.RawReply{}, fmt.Errorf("deepseek: generate: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return domain.RawReply{}, fmt.Errorf("deepseek: %w", ErrEmptyReply)
	}
	return domain.RawReply{Provider: NameDeepSeek, Model: d.cfg.Model, Text: msg.Content}, nil
}
