package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

// newTestClient connects to POLYAGENTS_TEST_REDIS_ADDR under a random key
// prefix, skipping when the variable is unset.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("POLYAGENTS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("POLYAGENTS_TEST_REDIS_ADDR not set")
	}
	c, err := New(context.Background(), ClientConfig{Addr: addr, KeyPrefix: "test:" + uuid.NewString() + ":"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestKeyNamespacing(t *testing.T) {
	c := &Client{prefix: "p:"}
	assert.Equal(t, "p:lock:generate:alpha", c.key("lock", "generate:alpha"))
	assert.Equal(t, "p:agent_trades", c.key("agent_trades"))
}

func TestSnapshotRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	s := NewSnapshotCache(c, time.Minute)

	_, _, err := s.LoadMarkets(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.SaveMarkets(ctx, []domain.Market{{ID: "m1", Question: "Q?"}}))
	got, at, err := s.LoadMarkets(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].ID)
	assert.WithinDuration(t, time.Now(), at, time.Minute)
}

func TestLockExclusive(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	lm := NewLockManager(c)

	unlock, err := lm.Acquire(ctx, "generate:alpha", time.Minute)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "generate:alpha", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock()
	again, err := lm.Acquire(ctx, "generate:alpha", time.Minute)
	require.NoError(t, err)
	again()
}

func TestRateLimiterWindow(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	rl := NewRateLimiter(c, 0, 0)

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "provider:openai", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := rl.Allow(ctx, "provider:openai", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSignalBusStream(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	sb := NewSignalBus(c)

	require.NoError(t, sb.StreamAppend(ctx, domain.StreamAgentTradeAudit, []byte(`{"a":1}`)))
	msgs, err := sb.StreamRead(ctx, domain.StreamAgentTradeAudit, "0", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"a":1}`, string(msgs[0].Payload))
}
