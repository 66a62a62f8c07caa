package decision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

type fakeProvider struct {
	name       string
	configured bool
	reply      string
	err        error
	prompts    []string
	block      bool
}

func (f *fakeProvider) Name() string     { return f.name }
func (f *fakeProvider) Configured() bool { return f.configured }

func (f *fakeProvider) Complete(ctx context.Context, prompt string) (domain.RawReply, error) {
	f.prompts = append(f.prompts, prompt)
	if f.block {
		<-ctx.Done()
		return domain.RawReply{}, ctx.Err()
	}
	return domain.RawReply{Provider: f.name, Text: f.reply}, f.err
}

type fakeResearcher struct{ snippets []string }

func (f fakeResearcher) Search(context.Context, string, int) ([]string, error) {
	return f.snippets, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) { return false, nil }
func (denyLimiter) Wait(context.Context, string) error                             { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRequest() Request {
	return Request{
		Agent: domain.AgentProfile{ID: "macro-hawk", Provider: "openai", Risk: domain.RiskMedium},
		Candidate: domain.ScoredMarket{
			Market: domain.Market{ID: "m-1", Question: "Will the Fed cut rates?", CurrentProbability: 0.48, PriceChange24h: 0.03},
			Score:  42,
		},
		News:  []domain.NewsArticle{{Title: "Fed signals cut", Source: "Reuters"}},
		Index: 2,
	}
}

func TestParseReplyFenced(t *testing.T) {
	d, err := ParseReply("Here you go:\n```json\n{\"side\": \"yes\", \"confidence\": 1.7, \"reasoning\": \"x\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, domain.SideYes, d.Side)
	assert.Equal(t, 1.0, d.Confidence)
	assert.Equal(t, []string{"x"}, d.Reasoning)
}

func TestParseReplyBareObject(t *testing.T) {
	d, err := ParseReply(`Decision: {"side": "No", "confidence": "0.62", "reasoning": ["a {brace}", 3, "b"]} trailing`)
	require.NoError(t, err)
	assert.Equal(t, domain.SideNo, d.Side)
	assert.Equal(t, 0.62, d.Confidence)
	assert.Equal(t, []string{"a {brace}", "b"}, d.Reasoning)
}

func TestParseReplyDefaults(t *testing.T) {
	d, err := ParseReply(`{"side": "maybe", "confidence": "high"}`)
	require.NoError(t, err)
	assert.Equal(t, domain.SideNo, d.Side, "only yes maps to YES")
	assert.Equal(t, 0.5, d.Confidence)
	require.Len(t, d.Reasoning, 1)

	d, err = ParseReply(`{"side": "YES", "confidence": -3}`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, d.Confidence)
}

func TestParseReplyFailures(t *testing.T) {
	_, err := ParseReply("I'm sorry, but I can't help with trading advice. {\"side\":\"yes\"}")
	assert.ErrorIs(t, err, ErrRefused)

	_, err = ParseReply("no json here")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = ParseReply(`{"side": "yes",`)
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = ParseReply(`{"side": yes}`)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoJSON)
}

func TestSentiment(t *testing.T) {
	assert.Equal(t, "BULLISH", Sentiment(0.02))
	assert.Equal(t, "BEARISH", Sentiment(-0.05))
	assert.Equal(t, "NEUTRAL", Sentiment(0.01))
}

func TestFallbackIsReproducible(t *testing.T) {
	req := testRequest()
	a := Fallback("macro-hawk", req.Candidate, 3, 1)
	b := Fallback("macro-hawk", req.Candidate, 3, 1)
	assert.Equal(t, a, b)
	assert.Equal(t, domain.DecisionSourceFallback, a.Source)
	assert.GreaterOrEqual(t, a.Confidence, 0.0)
	assert.LessOrEqual(t, a.Confidence, 1.0)
	assert.Len(t, a.Reasoning, 3)
}

func TestFallbackFollowsFormula(t *testing.T) {
	req := testRequest()
	d := Fallback("macro-hawk", req.Candidate, 0, 0)

	// HashString("macro-hawk:m-1:0") computed independently.
	var h int32
	for _, c := range "macro-hawk:m-1:0" {
		h = h*31 + int32(c)
	}
	seed := int64(h)
	if seed < 0 {
		seed = -seed
	}
	pert := float64(seed%21-10) / 100
	wantSide := domain.SideNo
	if 0.48+pert >= 0.5 {
		wantSide = domain.SideYes
	}
	wantConf := 0.35 + 42.0/200 + float64(seed%16)/100
	assert.Equal(t, wantSide, d.Side)
	assert.InDelta(t, wantConf, d.Confidence, 1e-4)
}

func TestDecideUsesProvider(t *testing.T) {
	p := &fakeProvider{name: "openai", configured: true, reply: `{"side":"YES","confidence":0.8,"reasoning":["cuts priced in"]}`}
	e := NewEngine([]domain.AIProvider{p}, fakeResearcher{snippets: []string{"FOMC minutes dovish"}}, nil, Config{}, discardLogger())

	res := e.Decide(context.Background(), testRequest())
	require.Equal(t, KindOK, res.Kind)
	assert.True(t, res.FromProvider())
	assert.Equal(t, domain.SideYes, res.Decision.Side)
	assert.Equal(t, "openai", res.Decision.Source)

	require.Len(t, p.prompts, 1)
	assert.Contains(t, p.prompts[0], "Will the Fed cut rates?")
	assert.Contains(t, p.prompts[0], "BULLISH")
	assert.Contains(t, p.prompts[0], "Fed signals cut")
	assert.Contains(t, p.prompts[0], "FOMC minutes dovish")
}

func TestDecideFallbackKinds(t *testing.T) {
	req := testRequest()
	want := Fallback(req.Agent.ID, req.Candidate, len(req.News), req.Index)

	cases := []struct {
		name     string
		provider *fakeProvider
		kind     Kind
	}{
		{"unconfigured", &fakeProvider{name: "openai"}, KindConfig},
		{"transport", &fakeProvider{name: "openai", configured: true, err: errors.New("boom")}, KindProvider},
		{"ineligible", &fakeProvider{name: "openai", configured: true, err: fmt.Errorf("bedrock: %w", domain.ErrIneligible)}, KindQuietIneligible},
		{"garbage", &fakeProvider{name: "openai", configured: true, reply: "hmm"}, KindParse},
		{"refusal", &fakeProvider{name: "openai", configured: true, reply: "As an AI I cannot"}, KindProvider},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEngine([]domain.AIProvider{tc.provider}, nil, nil, Config{}, discardLogger())
			res := e.Decide(context.Background(), req)
			assert.Equal(t, tc.kind, res.Kind)
			assert.Error(t, res.Err)
			assert.Equal(t, want, res.Decision)
		})
	}
}

func TestDecideUnknownProvider(t *testing.T) {
	e := NewEngine(nil, nil, nil, Config{}, discardLogger())
	res := e.Decide(context.Background(), testRequest())
	assert.Equal(t, KindConfig, res.Kind)
	assert.ErrorIs(t, res.Err, ErrNotConfigured)
}

func TestDecideTimeout(t *testing.T) {
	p := &fakeProvider{name: "openai", configured: true, block: true}
	e := NewEngine([]domain.AIProvider{p}, nil, nil, Config{Timeout: 20 * time.Millisecond}, discardLogger())

	res := e.Decide(context.Background(), testRequest())
	assert.Equal(t, KindProvider, res.Kind)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Equal(t, domain.DecisionSourceFallback, res.Decision.Source)
}

func TestDecideRateLimited(t *testing.T) {
	p := &fakeProvider{name: "openai", configured: true, reply: `{"side":"YES"}`}
	e := NewEngine([]domain.AIProvider{p}, nil, denyLimiter{}, Config{RateLimit: 1}, discardLogger())

	res := e.Decide(context.Background(), testRequest())
	assert.Equal(t, KindProvider, res.Kind)
	assert.ErrorIs(t, res.Err, domain.ErrRateLimited)
	assert.Empty(t, p.prompts)
}

func TestBuildPromptCapsSnippets(t *testing.T) {
	in := PromptInput{Candidate: testRequest().Candidate}
	for i := 0; i < 8; i++ {
		in.News = append(in.News, domain.NewsArticle{Title: fmt.Sprintf("headline-%d", i), Source: "AP"})
		in.Research = append(in.Research, fmt.Sprintf("snippet-%d", i))
	}
	out := BuildPrompt(in)
	assert.Contains(t, out, "headline-4")
	assert.NotContains(t, out, "headline-5")
	assert.Contains(t, out, "snippet-2")
	assert.NotContains(t, out, "snippet-3")
	assert.True(t, strings.Contains(out, `"side"`))
}
