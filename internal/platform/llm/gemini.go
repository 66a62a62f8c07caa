package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

// GeminiConfig configures the Gemini generateContent adapter.
type GeminiConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// Gemini calls the Generative Language API over resty.
type Gemini struct {
	cfg    GeminiConfig
	client *resty.Client
}

// NewGemini creates the adapter.
func NewGemini(cfg GeminiConfig) *Gemini {
	cfg.Model = orDefault(cfg.Model, "gemini-1.5-flash")
	cfg.BaseURL = strings.TrimRight(orDefault(cfg.BaseURL, "https://generativelanguage.googleapis.com"), "/")
	cfg.MaxTokens = maxTokensOr(cfg.MaxTokens)
	return &Gemini{cfg: cfg, client: newRestyClient(cfg.Timeout)}
}

func (g *Gemini) Name() string     { return NameGemini }
func (g *Gemini) Configured() bool { return g.cfg.APIKey != "" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		MaxOutputTokens  int    `json:"maxOutputTokens"`
		ResponseMimeType string `json:"responseMimeType,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Complete posts a generateContent request and joins the first candidate's
// text parts.
func (g *Gemini) Complete(ctx context.Context, prompt string) (domain.RawReply, error) {
	req := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	}
	req.GenerationConfig.MaxOutputTokens = g.cfg.MaxTokens
	req.GenerationConfig.ResponseMimeType = "application/json"

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.cfg.BaseURL, url.PathEscape(g.cfg.Model))
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParam("key", g.cfg.APIKey).
		SetBody(req).
		Post(endpoint)
	if err != nil {
		return domain.RawReply{}, fmt.Errorf("gemini: request: %w", err)
	}
	if resp.IsError() {
		return domain.RawReply{}, newStatusError(NameGemini, resp.StatusCode(), resp.String())
	}

	var out geminiResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return domain.RawReply{}, fmt.Errorf("gemini: decode response: %w", err)
	}
	if out.PromptFeedback.BlockReason != "" {
		return domain.RawReply{}, fmt.Errorf("gemini: prompt blocked: %s", out.PromptFeedback.BlockReason)
	}
	if len(out.Candidates) == 0 {
		return domain.RawReply{}, fmt.Errorf("gemini: %w", ErrEmptyReply)
	}

	var b strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	if strings.TrimSpace(b.String()) == "" {
		return domain.RawReply{}, fmt.Errorf("gemini: %w", ErrEmptyReply)
	}
	return domain.RawReply{Provider: NameGemini, Model: g.cfg.Model, Text: b.String()}, nil
}
