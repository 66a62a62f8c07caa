// Package news fetches headline feeds from NewsAPI, GNews and the Google
// News RSS feed and maps them onto domain.NewsArticle.
package news

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

// Provider is one headline source.
type Provider interface {
	Name() string
	Enabled() bool
	Fetch(ctx context.Context) ([]domain.NewsArticle, error)
}

const (
	defaultTimeout  = 30 * time.Second
	defaultPageSize = 50
	userAgent       = "Mozilla/5.0 (compatible; polyagents/1.0)"
)

func newClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", userAgent)
	return client
}

// stripHTML reduces an HTML fragment to its visible text.
func stripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.TrimSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func parseTime(raw string, layouts ...string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
