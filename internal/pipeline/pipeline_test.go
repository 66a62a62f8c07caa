package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeGenerator struct {
	mu     sync.Mutex
	agents []domain.AgentProfile
	calls  []string
	fail   map[string]error
}

func (g *fakeGenerator) Agents() []domain.AgentProfile { return g.agents }

func (g *fakeGenerator) GenerateAgentTrades(_ context.Context, agentID string) ([]domain.AgentTrade, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, agentID)
	if err := g.fail[agentID]; err != nil {
		return nil, err
	}
	return []domain.AgentTrade{{ID: agentID + "-t", AgentID: agentID}}, nil
}

type fakeLocks struct {
	held     map[string]bool
	acquired []string
	released int
	ttl      time.Duration
}

func (l *fakeLocks) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.ttl = ttl
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.acquired = append(l.acquired, key)
	return func() { l.released++ }, nil
}

type fakePortfolios struct {
	mu      sync.Mutex
	valued  [][]string
	settled int
}

func (p *fakePortfolios) ValueAll(_ context.Context, ids []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.valued = append(p.valued, ids)
	return nil
}

func (p *fakePortfolios) SyncSettlements(context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settled++
	return 0, nil
}

func roster(ids ...string) []domain.AgentProfile {
	out := make([]domain.AgentProfile, len(ids))
	for i, id := range ids {
		out[i] = domain.AgentProfile{ID: id, MaxTrades: 1}
	}
	return out
}

func TestRunCycleSkipsLockedAgents(t *testing.T) {
	gen := &fakeGenerator{
		agents: roster("a", "b", "c"),
		fail:   map[string]error{"c": domain.ErrMarketData},
	}
	locks := &fakeLocks{held: map[string]bool{"generate:b": true}}
	o := NewOrchestrator(gen, &fakePortfolios{}, locks, nil, nil, nil, Config{CycleInterval: 10 * time.Minute}, discard)

	results := o.RunCycle(context.Background())
	require.Len(t, results, 3)

	assert.Len(t, results[0].Trades, 1)
	assert.True(t, results[1].Skipped)
	assert.ErrorIs(t, results[2].Err, domain.ErrMarketData)

	assert.Equal(t, []string{"a", "c"}, gen.calls)
	assert.Equal(t, []string{"generate:a", "generate:c"}, locks.acquired)
	assert.Equal(t, 2, locks.released)
	assert.Equal(t, 10*time.Minute, locks.ttl)
}

func TestRunCycleWithoutLocks(t *testing.T) {
	gen := &fakeGenerator{agents: roster("a", "b")}
	o := NewOrchestrator(gen, &fakePortfolios{}, nil, nil, nil, nil, Config{CycleInterval: time.Minute}, discard)

	results := o.RunCycle(context.Background())
	assert.Len(t, results, 2)
	assert.Equal(t, []string{"a", "b"}, gen.calls)
}

func TestRunStartsLoopsAndStopsCleanly(t *testing.T) {
	gen := &fakeGenerator{agents: roster("a")}
	pf := &fakePortfolios{}
	o := NewOrchestrator(gen, pf, nil, nil, nil, nil, Config{
		CycleInterval:      time.Hour,
		ValuationInterval:  5 * time.Millisecond,
		SettlementInterval: 5 * time.Millisecond,
	}, discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	require.Eventually(t, func() bool {
		pf.mu.Lock()
		defer pf.mu.Unlock()
		return len(pf.valued) > 0 && pf.settled > 0
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("orchestrator did not stop")
	}

	gen.mu.Lock()
	assert.Equal(t, []string{"a"}, gen.calls)
	gen.mu.Unlock()
	pf.mu.Lock()
	assert.Equal(t, []string{"a"}, pf.valued[0])
	pf.mu.Unlock()
}

func TestRunRequiresCycleInterval(t *testing.T) {
	o := NewOrchestrator(&fakeGenerator{}, &fakePortfolios{}, nil, nil, nil, nil, Config{}, discard)
	assert.Error(t, o.Run(context.Background()))
}

type fakeBlobArchiver struct {
	before   time.Time
	tradeErr error
}

func (f *fakeBlobArchiver) ArchiveTrades(_ context.Context, before time.Time) (int64, error) {
	f.before = before
	return 4, f.tradeErr
}

func (f *fakeBlobArchiver) ArchiveResearch(context.Context, time.Time) (int64, error) {
	return 2, nil
}

func TestArchiverRun(t *testing.T) {
	blob := &fakeBlobArchiver{}
	a := NewArchiver(blob, 90, discard)
	a.now = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, a.Run(context.Background()))
	assert.Equal(t, time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC), blob.before)

	blob.tradeErr = errors.New("bucket gone")
	assert.ErrorContains(t, a.Run(context.Background()), "bucket gone")
}

func TestCronNext(t *testing.T) {
	from := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)
	cases := []struct {
		expr string
		want time.Time
	}{
		{"0 3 * * *", time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2026, 1, 1, 3, 15, 0, 0, time.UTC)},
		{"30 1-4 * * *", time.Date(2026, 1, 1, 3, 30, 0, 0, time.UTC)},
		{"0 0 1 * *", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{"0 12 * * 1", time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			s, err := parseCron(tc.expr)
			require.NoError(t, err)
			got, err := s.next(from)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCronRejectsBadExpressions(t *testing.T) {
	for _, expr := range []string{"", "* * * *", "60 * * * *", "*/0 * * * *", "a * * * *", "5-1 * * * *"} {
		_, err := parseCron(expr)
		assert.Error(t, err, expr)
	}
}

type countingRefresher struct {
	n   int
	err error
}

func (r *countingRefresher) Refresh(context.Context) error {
	r.n++
	return r.err
}

func TestScraperRunToleratesFailures(t *testing.T) {
	markets := &countingRefresher{err: errors.New("gamma down")}
	news := &countingRefresher{}
	NewScraper(markets, news, discard).Run(context.Background())
	assert.Equal(t, 1, markets.n)
	assert.Equal(t, 1, news.n)

	NewScraper(markets, nil, discard).Run(context.Background())
	assert.Equal(t, 2, markets.n)
}
