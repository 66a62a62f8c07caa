package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

var base = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestTradeStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewTradeStore()

	for i, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, s.Insert(ctx, domain.AgentTrade{
			ID:       id,
			AgentID:  "a",
			MarketID: "m" + id,
			Status:   domain.TradeStatusOpen,
			OpenedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	assert.ErrorIs(t, s.Insert(ctx, domain.AgentTrade{ID: "t1"}), domain.ErrAlreadyExists)

	got, err := s.ListByAgent(ctx, "a", domain.ListOpts{Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t3", got[0].ID, "newest first")

	require.NoError(t, s.UpdateSettlement(ctx, "t1", 12.5, base.Add(5*time.Hour)))
	assert.ErrorIs(t, s.UpdateSettlement(ctx, "nope", 1, base), domain.ErrNotFound)

	tr, err := s.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, tr.IsClosed())
	require.NotNil(t, tr.PnlUSD)
	assert.Equal(t, 12.5, *tr.PnlUSD)

	open, err := s.ListOpen(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 2)

	closed, err := s.ListClosedBefore(ctx, base.Add(6*time.Hour))
	require.NoError(t, err)
	assert.Len(t, closed, 1)
	closed, err = s.ListClosedBefore(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, closed)
}

func TestTradeStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewTradeStore()
	require.NoError(t, s.Insert(ctx, domain.AgentTrade{ID: "t", Reasoning: []string{"r"}}))

	got, err := s.GetByID(ctx, "t")
	require.NoError(t, err)
	got.Reasoning[0] = "changed"

	again, err := s.GetByID(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "r", again.Reasoning[0])
}

func TestListAllWindow(t *testing.T) {
	ctx := context.Background()
	s := NewTradeStore()
	require.NoError(t, s.Insert(ctx, domain.AgentTrade{ID: "old", OpenedAt: base}))
	require.NoError(t, s.Insert(ctx, domain.AgentTrade{ID: "new", OpenedAt: base.Add(48 * time.Hour)}))

	since := base.Add(24 * time.Hour)
	got, err := s.ListAll(ctx, domain.ListOpts{Since: &since})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].ID)
}

func TestPortfolioStore(t *testing.T) {
	ctx := context.Background()
	s := NewPortfolioStore()

	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Upsert(ctx, domain.AgentPortfolio{AgentID: "b", CurrentCapitalUSD: 1}))
	require.NoError(t, s.Upsert(ctx, domain.AgentPortfolio{AgentID: "a", CurrentCapitalUSD: 2}))
	require.NoError(t, s.Upsert(ctx, domain.AgentPortfolio{AgentID: "a", CurrentCapitalUSD: 3}))

	p, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 3.0, p.CurrentCapitalUSD)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].AgentID)
}

func TestResearchStore(t *testing.T) {
	ctx := context.Background()
	s := NewResearchStore()
	require.NoError(t, s.InsertBatch(ctx, []domain.ResearchDecision{
		{ID: "r1", AgentID: "a", Timestamp: base},
		{ID: "r2", AgentID: "a", Timestamp: base.Add(time.Hour)},
		{ID: "r3", AgentID: "b", Timestamp: base},
	}))

	got, err := s.ListByAgent(ctx, "a", domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r2", got[0].ID)

	before, err := s.ListBefore(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, before, 2)
}

func TestAuditStore(t *testing.T) {
	ctx := context.Background()
	s := NewAuditStore()
	require.NoError(t, s.Log(ctx, "one", nil))
	require.NoError(t, s.Log(ctx, "two", map[string]any{"k": 1}))

	got, err := s.List(ctx, domain.ListOpts{Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "two", got[0].Event)
	assert.Equal(t, int64(2), got[0].ID)
}

func TestSignalBusPublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := NewSignalBus()

	all, err := b.Subscribe(ctx, "agent_*")
	require.NoError(t, err)
	trades, err := b.Subscribe(ctx, domain.ChannelAgentTrades)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, domain.ChannelAgentResearch, []byte("r")))
	require.NoError(t, b.Publish(ctx, domain.ChannelAgentTrades, []byte("t")))

	assert.Equal(t, []byte("r"), <-all)
	assert.Equal(t, []byte("t"), <-all)
	assert.Equal(t, []byte("t"), <-trades)

	cancel()
	_, open := <-trades
	for open {
		_, open = <-trades
	}
}

func TestSignalBusStream(t *testing.T) {
	ctx := context.Background()
	b := NewSignalBus()
	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, b.StreamAppend(ctx, "s", []byte(p)))
	}

	first, err := b.StreamRead(ctx, "s", "0", 2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	rest, err := b.StreamRead(ctx, "s", first[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, []byte("c"), rest[0].Payload)
}
