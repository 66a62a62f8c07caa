// Package feed fronts the market and news collaborators with the process
// caches, falling back to the last good data when upstream fails.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/polyagents/internal/cache"
	"github.com/alanyoungcy/polyagents/internal/domain"
	"github.com/alanyoungcy/polyagents/internal/metrics"
)

// DefaultRefreshTimeout bounds one shared upstream refresh.
const DefaultRefreshTimeout = 30 * time.Second

// shared runs fn once for all concurrent callers of key. The refresh is
// detached from the caller's cancellation and bounded by timeout instead;
// a caller whose ctx ends stops waiting without failing the others.
func shared[T any](ctx context.Context, g *singleflight.Group, key string, timeout time.Duration, fn func(context.Context) ([]T, error)) ([]T, error) {
	ch := g.DoChan(key, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return fn(rctx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]T), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("feed: wait for %s refresh: %w", key, ctx.Err())
	}
}

// MarketSource retrieves the full market list from upstream.
type MarketSource interface {
	FetchAllMarkets(ctx context.Context) ([]domain.Market, error)
}

// MarketFeed serves markets from a TTL cache. On upstream failure it serves
// the stale in-memory list, then the persisted snapshot, and only errors
// when neither exists.
type MarketFeed struct {
	source    MarketSource
	cache     *cache.ListCache[domain.Market]
	snapshots domain.SnapshotCache
	group     singleflight.Group
	timeout   time.Duration
	logger    *slog.Logger
}

// NewMarketFeed creates a feed. snapshots may be nil.
func NewMarketFeed(source MarketSource, c *cache.ListCache[domain.Market], snapshots domain.SnapshotCache, logger *slog.Logger) *MarketFeed {
	return &MarketFeed{
		source:    source,
		cache:     c,
		snapshots: snapshots,
		timeout:   DefaultRefreshTimeout,
		logger:    logger.With(slog.String("component", "market_feed")),
	}
}

// FetchAllMarkets returns the cached list while fresh, otherwise refetches.
// Concurrent callers share one upstream request.
func (f *MarketFeed) FetchAllMarkets(ctx context.Context) ([]domain.Market, error) {
	if markets, ok := f.cache.Fresh(); ok {
		return markets, nil
	}
	return shared(ctx, &f.group, "markets", f.timeout, f.refresh)
}

// Refresh forces an upstream fetch, used by the scheduler to warm the cache.
func (f *MarketFeed) Refresh(ctx context.Context) error {
	_, err := shared(ctx, &f.group, "markets", f.timeout, f.refresh)
	return err
}

func (f *MarketFeed) refresh(ctx context.Context) ([]domain.Market, error) {
	markets, err := f.source.FetchAllMarkets(ctx)
	if err == nil {
		f.cache.Set(markets)
		metrics.MarketsScored.Set(float64(len(markets)))
		if f.snapshots != nil {
			if serr := f.snapshots.SaveMarkets(ctx, markets); serr != nil {
				f.logger.WarnContext(ctx, "market_feed: save snapshot failed", slog.String("error", serr.Error()))
			}
		}
		f.logger.DebugContext(ctx, "market_feed: refreshed", slog.Int("markets", len(markets)))
		return markets, nil
	}

	if stale, at, ok := f.cache.Stale(); ok {
		metrics.StaleServes.WithLabelValues("markets").Inc()
		f.logger.WarnContext(ctx, "market_feed: upstream failed, serving stale markets",
			slog.String("error", err.Error()),
			slog.Duration("age", time.Since(at)),
		)
		return stale, nil
	}

	if f.snapshots != nil {
		snap, at, serr := f.snapshots.LoadMarkets(ctx)
		if serr == nil && len(snap) > 0 {
			f.cache.SetAt(snap, at)
			metrics.StaleServes.WithLabelValues("markets").Inc()
			f.logger.WarnContext(ctx, "market_feed: upstream failed, serving snapshot",
				slog.String("error", err.Error()),
				slog.Time("snapshot_at", at),
			)
			return snap, nil
		}
	}

	return nil, fmt.Errorf("feed: fetch markets: %w: %w", domain.ErrMarketData, err)
}

// Lookup indexes markets by id.
func Lookup(markets []domain.Market) map[string]domain.Market {
	out := make(map[string]domain.Market, len(markets))
	for _, m := range markets {
		if m.ID != "" {
			out[m.ID] = m
		}
	}
	return out
}
