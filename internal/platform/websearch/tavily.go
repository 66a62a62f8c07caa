// Package websearch supplies short web snippets that enrich decision
// prompts.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// TavilyConfig configures the Tavily search client.
type TavilyConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Tavily queries the Tavily search API.
type Tavily struct {
	cfg    TavilyConfig
	client *resty.Client
}

// NewTavily creates the client.
func NewTavily(cfg TavilyConfig) *Tavily {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.tavily.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Content-Type", "application/json")
	return &Tavily{cfg: cfg, client: client}
}

// Enabled reports whether an API key is configured.
func (t *Tavily) Enabled() bool { return t.cfg.APIKey != "" }

type tavilyRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search returns up to max snippets, the synthesized answer first when the
// API provides one.
func (t *Tavily) Search(ctx context.Context, query string, max int) ([]string, error) {
	if max <= 0 {
		return nil, nil
	}
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(tavilyRequest{
			APIKey:        t.cfg.APIKey,
			Query:         query,
			MaxResults:    max,
			SearchDepth:   "basic",
			IncludeAnswer: true,
		}).
		Post(t.cfg.BaseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("websearch/tavily: request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("websearch/tavily: http %d: %s", resp.StatusCode(), resp.String())
	}

	var out tavilyResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("websearch/tavily: decode: %w", err)
	}

	snippets := make([]string, 0, max)
	if a := strings.TrimSpace(out.Answer); a != "" {
		snippets = append(snippets, a)
	}
	for _, r := range out.Results {
		if len(snippets) == max {
			break
		}
		content := strings.TrimSpace(r.Content)
		if content == "" {
			continue
		}
		if r.Title != "" {
			content = r.Title + ": " + content
		}
		snippets = append(snippets, content)
	}
	return snippets, nil
}
