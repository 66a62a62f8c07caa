package news

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

// GNewsConfig configures the gnews.io client.
type GNewsConfig struct {
	APIKey  string
	BaseURL string
	Lang    string
	Max     int
	Timeout time.Duration
}

// GNews fetches top headlines from gnews.io.
type GNews struct {
	cfg    GNewsConfig
	client *resty.Client
}

// NewGNews creates the client.
func NewGNews(cfg GNewsConfig) *GNews {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://gnews.io"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Lang == "" {
		cfg.Lang = "en"
	}
	if cfg.Max <= 0 {
		cfg.Max = defaultPageSize
	}
	return &GNews{cfg: cfg, client: newClient(cfg.Timeout)}
}

func (g *GNews) Name() string  { return "gnews" }
func (g *GNews) Enabled() bool { return g.cfg.APIKey != "" }

type gnewsResponse struct {
	Errors   []string `json:"errors"`
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Content     string `json:"content"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// Fetch returns the current top headlines.
func (g *GNews) Fetch(ctx context.Context) ([]domain.NewsArticle, error) {
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"token": g.cfg.APIKey,
			"lang":  g.cfg.Lang,
			"max":   strconv.Itoa(g.cfg.Max),
		}).
		Get(g.cfg.BaseURL + "/api/v4/top-headlines")
	if err != nil {
		return nil, fmt.Errorf("news/gnews: request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("news/gnews: http %d: %s", resp.StatusCode(), resp.String())
	}

	var out gnewsResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("news/gnews: decode: %w", err)
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("news/gnews: %s", strings.Join(out.Errors, "; "))
	}

	articles := make([]domain.NewsArticle, 0, len(out.Articles))
	for _, a := range out.Articles {
		if strings.TrimSpace(a.Title) == "" {
			continue
		}
		articles = append(articles, domain.NewsArticle{
			Title:       strings.TrimSpace(a.Title),
			Description: stripHTML(a.Description),
			Content:     stripHTML(a.Content),
			Source:      a.Source.Name,
			URL:         a.URL,
			PublishedAt: parseTime(a.PublishedAt, time.RFC3339),
		})
	}
	return articles, nil
}
