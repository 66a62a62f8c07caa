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

// NewsAPIConfig configures the newsapi.org client.
type NewsAPIConfig struct {
	APIKey   string
	BaseURL  string
	Country  string
	PageSize int
	Timeout  time.Duration
}

// NewsAPI fetches top headlines from newsapi.org.
type NewsAPI struct {
	cfg    NewsAPIConfig
	client *resty.Client
}

// NewNewsAPI creates the client.
func NewNewsAPI(cfg NewsAPIConfig) *NewsAPI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://newsapi.org"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Country == "" {
		cfg.Country = "us"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	return &NewsAPI{cfg: cfg, client: newClient(cfg.Timeout)}
}

func (n *NewsAPI) Name() string  { return "newsapi" }
func (n *NewsAPI) Enabled() bool { return n.cfg.APIKey != "" }

type newsAPIResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Content     string `json:"content"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// Fetch returns the current top headlines.
func (n *NewsAPI) Fetch(ctx context.Context) ([]domain.NewsArticle, error) {
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("X-Api-Key", n.cfg.APIKey).
		SetQueryParams(map[string]string{
			"country":  n.cfg.Country,
			"pageSize": strconv.Itoa(n.cfg.PageSize),
		}).
		Get(n.cfg.BaseURL + "/v2/top-headlines")
	if err != nil {
		return nil, fmt.Errorf("news/newsapi: request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("news/newsapi: http %d: %s", resp.StatusCode(), resp.String())
	}

	var out newsAPIResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("news/newsapi: decode: %w", err)
	}
	if out.Status != "" && out.Status != "ok" {
		return nil, fmt.Errorf("news/newsapi: status %s: %s", out.Status, out.Message)
	}

	articles := make([]domain.NewsArticle, 0, len(out.Articles))
	for _, a := range out.Articles {
		if strings.TrimSpace(a.Title) == "" || a.Title == "[Removed]" {
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
