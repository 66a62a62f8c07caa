package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/polyagents/internal/cache"
	"github.com/alanyoungcy/polyagents/internal/domain"
	"github.com/alanyoungcy/polyagents/internal/metrics"
)

// NewsProvider is one headline source.
type NewsProvider interface {
	Name() string
	Enabled() bool
	Fetch(ctx context.Context) ([]domain.NewsArticle, error)
}

// ErrAllProvidersFailed is wrapped when every enabled news provider errored.
var ErrAllProvidersFailed = errors.New("all news providers failed")

// NewsFeed merges the enabled providers concurrently, deduplicates by URL
// and normalized title, and caches the result.
type NewsFeed struct {
	providers []NewsProvider
	cache     *cache.ListCache[domain.NewsArticle]
	snapshots domain.SnapshotCache
	group     singleflight.Group
	timeout   time.Duration
	logger    *slog.Logger
}

// NewNewsFeed creates a feed. snapshots may be nil.
func NewNewsFeed(providers []NewsProvider, c *cache.ListCache[domain.NewsArticle], snapshots domain.SnapshotCache, logger *slog.Logger) *NewsFeed {
	return &NewsFeed{
		providers: providers,
		cache:     c,
		snapshots: snapshots,
		timeout:   DefaultRefreshTimeout,
		logger:    logger.With(slog.String("component", "news_feed")),
	}
}

// FetchLatestNews returns the cached articles while fresh, otherwise merges
// the providers again.
func (f *NewsFeed) FetchLatestNews(ctx context.Context) ([]domain.NewsArticle, error) {
	if articles, ok := f.cache.Fresh(); ok {
		return articles, nil
	}
	return shared(ctx, &f.group, "news", f.timeout, f.refresh)
}

// Refresh forces a merge of the providers, used by the scheduler to warm the
// cache.
func (f *NewsFeed) Refresh(ctx context.Context) error {
	_, err := shared(ctx, &f.group, "news", f.timeout, f.refresh)
	return err
}

func (f *NewsFeed) refresh(ctx context.Context) ([]domain.NewsArticle, error) {
	merged, err := f.fetchAll(ctx)
	if err == nil {
		f.cache.Set(merged)
		if f.snapshots != nil && len(merged) > 0 {
			if serr := f.snapshots.SaveNews(ctx, merged); serr != nil {
				f.logger.WarnContext(ctx, "news_feed: save snapshot failed", slog.String("error", serr.Error()))
			}
		}
		return merged, nil
	}

	if stale, _, ok := f.cache.Stale(); ok {
		metrics.StaleServes.WithLabelValues("news").Inc()
		f.logger.WarnContext(ctx, "news_feed: serving stale news", slog.String("error", err.Error()))
		return stale, nil
	}
	if f.snapshots != nil {
		snap, at, serr := f.snapshots.LoadNews(ctx)
		if serr == nil && len(snap) > 0 {
			f.cache.SetAt(snap, at)
			metrics.StaleServes.WithLabelValues("news").Inc()
			return snap, nil
		}
	}
	return nil, fmt.Errorf("feed: fetch news: %w", err)
}

func (f *NewsFeed) fetchAll(ctx context.Context) ([]domain.NewsArticle, error) {
	var enabled []NewsProvider
	for _, p := range f.providers {
		if p.Enabled() {
			enabled = append(enabled, p)
		}
	}
	if len(enabled) == 0 {
		return nil, nil
	}

	results := make([][]domain.NewsArticle, len(enabled))
	failures := make([]error, len(enabled))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range enabled {
		g.Go(func() error {
			articles, err := p.Fetch(gctx)
			if err != nil {
				failures[i] = err
				f.logger.WarnContext(ctx, "news_feed: provider failed",
					slog.String("provider", p.Name()),
					slog.String("error", err.Error()),
				)
				return nil
			}
			results[i] = articles
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range failures {
		if err != nil {
			failed++
		}
	}
	if failed == len(enabled) {
		return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(failures...))
	}

	var all []domain.NewsArticle
	for _, r := range results {
		all = append(all, r...)
	}
	merged := Dedupe(all)
	f.logger.DebugContext(ctx, "news_feed: merged",
		slog.Int("fetched", len(all)),
		slog.Int("unique", len(merged)),
	)
	return merged, nil
}

// Dedupe drops articles whose normalized URL or normalized title has been
// seen, keeping the first occurrence, and orders the rest newest first.
func Dedupe(articles []domain.NewsArticle) []domain.NewsArticle {
	seenURL := make(map[string]bool, len(articles))
	seenTitle := make(map[string]bool, len(articles))
	out := make([]domain.NewsArticle, 0, len(articles))
	for _, a := range articles {
		u := normalizeURL(a.URL)
		t := normalizeTitle(a.Title)
		if (u != "" && seenURL[u]) || (t != "" && seenTitle[t]) {
			continue
		}
		if u != "" {
			seenURL[u] = true
		}
		if t != "" {
			seenTitle[t] = true
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	return out
}

func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimRight(raw, "/"))
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	return host + strings.TrimRight(u.Path, "/")
}

func normalizeTitle(title string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		case !space && b.Len() > 0:
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
