package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

const decisionJSON = `{"side":"YES","confidence":0.7,"reasoning":["x"]}`

func TestAnthropicComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "prompt", req.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model":"claude-x","content":[{"type":"text","text":`+quote(decisionJSON)+`}]}`)
	}))
	defer srv.Close()

	a := NewAnthropic(AnthropicConfig{APIKey: "secret", BaseURL: srv.URL})
	require.True(t, a.Configured())
	reply, err := a.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, decisionJSON, reply.Text)
	assert.Equal(t, "claude-x", reply.Model)
}

func TestAnthropicStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":"slow down"}`)
	}))
	defer srv.Close()

	_, err := NewAnthropic(AnthropicConfig{APIKey: "k", BaseURL: srv.URL}).Complete(context.Background(), "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
}

func TestGeminiComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "gk", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"{\"side\":"},{"text":"\"NO\"}"}]}}]}`)
	}))
	defer srv.Close()

	g := NewGemini(GeminiConfig{APIKey: "gk", Model: "gemini-test", BaseURL: srv.URL})
	reply, err := g.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, `{"side":"NO"}`, reply.Text)
}

func TestGeminiEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	_, err := NewGemini(GeminiConfig{APIKey: "gk", BaseURL: srv.URL}).Complete(context.Background(), "p")
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestXAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer xk", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model":"grok","choices":[{"message":{"role":"assistant","content":`+quote(decisionJSON)+`}}]}`)
	}))
	defer srv.Close()

	reply, err := NewXAI(XAIConfig{APIKey: "xk", BaseURL: srv.URL}).Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, decisionJSON, reply.Text)
	assert.Equal(t, NameXAI, reply.Provider)
}

func TestOpenAICompleteThroughEino(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-test",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": `+quote(decisionJSON)+`}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`)
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIKey: "ok", Model: "gpt-test", BaseURL: srv.URL})
	reply, err := o.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, decisionJSON, reply.Text)
}

func TestConfigured(t *testing.T) {
	assert.False(t, NewOpenAI(OpenAIConfig{}).Configured())
	assert.False(t, NewDeepSeek(DeepSeekConfig{}).Configured())
	assert.True(t, NewDeepSeek(DeepSeekConfig{APIKey: "k"}).Configured())
	assert.False(t, NewAnthropic(AnthropicConfig{}).Configured())
	assert.False(t, NewGemini(GeminiConfig{}).Configured())
	assert.False(t, NewXAI(XAIConfig{}).Configured())
	assert.False(t, NewBedrock(BedrockConfig{AccessKeyID: "a", SecretAccessKey: "b"}).Configured(), "region required")
	assert.True(t, NewBedrock(BedrockConfig{Region: "us-east-1", AccessKeyID: "a", SecretAccessKey: "b"}).Configured())
	assert.True(t, NewBedrock(BedrockConfig{Region: "us-east-1", UseDefaultCredentials: true}).Configured())
}

func TestBedrockInvokesModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/model/anthropic.test/invoke", r.URL.Path)
		assert.Contains(t, r.Header.Get("Authorization"), "AWS4-HMAC-SHA256")
		assert.Contains(t, r.Header.Get("Authorization"), "/us-east-1/bedrock/aws4_request")

		var req bedrockRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, bedrockAnthropicVersion, req.AnthropicVersion)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":`+quote(decisionJSON)+`}]}`)
	}))
	defer srv.Close()

	b := NewBedrock(BedrockConfig{
		Region: "us-east-1", ModelID: "anthropic.test",
		AccessKeyID: "AKID", SecretAccessKey: "SECRET", Endpoint: srv.URL,
	})
	reply, err := b.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, decisionJSON, reply.Text)
}

func TestBedrockAccessDeniedIsIneligible(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusBadRequest} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Amzn-ErrorType", "AccessDeniedException:http://internal.amazon.com/coral/")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"message":"You don't have access to the model"}`)
		}))

		b := NewBedrock(BedrockConfig{Region: "us-east-1", AccessKeyID: "a", SecretAccessKey: "b", Endpoint: srv.URL})
		_, err := b.Complete(context.Background(), "p")
		assert.ErrorIs(t, err, domain.ErrIneligible, "status %d", status)
		srv.Close()
	}
}

func TestBedrockForbiddenWithoutErrorTypeIsIneligible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"message":"forbidden"}`)
	}))
	defer srv.Close()

	b := NewBedrock(BedrockConfig{Region: "us-east-1", AccessKeyID: "a", SecretAccessKey: "b", Endpoint: srv.URL})
	_, err := b.Complete(context.Background(), "p")
	assert.ErrorIs(t, err, domain.ErrIneligible)
}

func TestBedrockOtherErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"message":"boom"}`)
	}))
	defer srv.Close()

	b := NewBedrock(BedrockConfig{Region: "us-east-1", AccessKeyID: "a", SecretAccessKey: "b", Endpoint: srv.URL})
	_, err := b.Complete(context.Background(), "p")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrIneligible)

	var status *StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusInternalServerError, status.Code)
}

func TestIsKnown(t *testing.T) {
	for _, n := range Names {
		assert.True(t, IsKnown(n))
	}
	assert.False(t, IsKnown("mistral"))
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
