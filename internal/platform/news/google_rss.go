package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	PubDate     string    `xml:"pubDate"`
	Source      rssSource `xml:"source"`
}

type rssSource struct {
	URL  string `xml:"url,attr"`
	Text string `xml:",chardata"`
}

// GoogleRSSConfig configures the Google News RSS reader.
type GoogleRSSConfig struct {
	FeedURL string
	Enabled bool
	Timeout time.Duration
}

// GoogleRSS reads the Google News top stories RSS feed. It needs no key.
type GoogleRSS struct {
	cfg    GoogleRSSConfig
	client *resty.Client
}

// NewGoogleRSS creates the reader.
func NewGoogleRSS(cfg GoogleRSSConfig) *GoogleRSS {
	if cfg.FeedURL == "" {
		cfg.FeedURL = "https://news.google.com/rss?hl=en-US&gl=US&ceid=US:en"
	}
	return &GoogleRSS{cfg: cfg, client: newClient(cfg.Timeout)}
}

func (g *GoogleRSS) Name() string  { return "google_rss" }
func (g *GoogleRSS) Enabled() bool { return g.cfg.Enabled }

// Fetch parses the feed. Google appends " - <Source>" to titles; it is
// trimmed when the source element carries the same name.
func (g *GoogleRSS) Fetch(ctx context.Context) ([]domain.NewsArticle, error) {
	resp, err := g.client.R().SetContext(ctx).Get(g.cfg.FeedURL)
	if err != nil {
		return nil, fmt.Errorf("news/google_rss: request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("news/google_rss: http %d", resp.StatusCode())
	}

	var feed rssFeed
	if err := xml.Unmarshal(resp.Body(), &feed); err != nil {
		return nil, fmt.Errorf("news/google_rss: decode: %w", err)
	}

	articles := make([]domain.NewsArticle, 0, len(feed.Channel.Items))
	for _, it := range feed.Channel.Items {
		title := strings.TrimSpace(it.Title)
		source := strings.TrimSpace(it.Source.Text)
		if source != "" {
			title = strings.TrimSpace(strings.TrimSuffix(title, " - "+source))
		}
		if title == "" {
			continue
		}
		articles = append(articles, domain.NewsArticle{
			Title:       title,
			Description: stripHTML(it.Description),
			Source:      source,
			URL:         strings.TrimSpace(it.Link),
			PublishedAt: parseTime(it.PubDate, time.RFC1123, time.RFC1123Z),
		})
	}
	return articles, nil
}
