package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

const defaultSnapshotTTL = 24 * time.Hour

// SnapshotCache implements domain.SnapshotCache. Each list lives in one hash
// holding the JSON payload and the fetch time.
//
// Key schema:
//
//	{prefix}snapshot:markets - hash {data, at}
//	{prefix}snapshot:news    - hash {data, at}
type SnapshotCache struct {
	c   *Client
	ttl time.Duration
}

// NewSnapshotCache creates a SnapshotCache. Snapshots expire after ttl,
// 24h when zero.
func NewSnapshotCache(c *Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &SnapshotCache{c: c, ttl: ttl}
}

func (s *SnapshotCache) SaveMarkets(ctx context.Context, markets []domain.Market) error {
	return s.save(ctx, "markets", markets)
}

func (s *SnapshotCache) LoadMarkets(ctx context.Context) ([]domain.Market, time.Time, error) {
	var markets []domain.Market
	at, err := s.load(ctx, "markets", &markets)
	return markets, at, err
}

func (s *SnapshotCache) SaveNews(ctx context.Context, articles []domain.NewsArticle) error {
	return s.save(ctx, "news", articles)
}

func (s *SnapshotCache) LoadNews(ctx context.Context) ([]domain.NewsArticle, time.Time, error) {
	var articles []domain.NewsArticle
	at, err := s.load(ctx, "news", &articles)
	return articles, at, err
}

func (s *SnapshotCache) save(ctx context.Context, kind string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: marshal %s snapshot: %w", kind, err)
	}
	key := s.c.key("snapshot", kind)

	pipe := s.c.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data, "at", time.Now().UnixMilli())
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: save %s snapshot: %w", kind, err)
	}
	return nil
}

func (s *SnapshotCache) load(ctx context.Context, kind string, out any) (time.Time, error) {
	vals, err := s.c.rdb.HMGet(ctx, s.c.key("snapshot", kind), "data", "at").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, domain.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("redis: load %s snapshot: %w", kind, err)
	}
	data, ok := vals[0].(string)
	if !ok || data == "" {
		return time.Time{}, domain.ErrNotFound
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return time.Time{}, fmt.Errorf("redis: unmarshal %s snapshot: %w", kind, err)
	}

	var at time.Time
	if raw, ok := vals[1].(string); ok {
		if ms, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			at = time.UnixMilli(ms)
		}
	}
	return at, nil
}

var _ domain.SnapshotCache = (*SnapshotCache)(nil)
