package domain

import (
	"context"
	"time"
)

// SnapshotCache keeps the last successfully fetched market and news lists so
// a cold process can still serve stale data when upstream is down.
type SnapshotCache interface {
	SaveMarkets(ctx context.Context, markets []Market) error
	LoadMarkets(ctx context.Context) ([]Market, time.Time, error)
	SaveNews(ctx context.Context, articles []NewsArticle) error
	LoadNews(ctx context.Context) ([]NewsArticle, time.Time, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
