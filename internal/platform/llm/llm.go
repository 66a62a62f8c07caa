// Package llm holds the AI provider adapters. Every adapter takes the shared
// decision prompt, wraps it in its vendor's request envelope and returns the
// raw reply text; parsing happens in the decision package.
package llm

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

// Provider names as used in agent profiles and config.
const (
	NameOpenAI    = "openai"
	NameDeepSeek  = "deepseek"
	NameAnthropic = "anthropic"
	NameGemini    = "gemini"
	NameXAI       = "xai"
	NameBedrock   = "bedrock"
)

// Names lists every supported provider.
var Names = []string{NameOpenAI, NameDeepSeek, NameAnthropic, NameGemini, NameXAI, NameBedrock}

// IsKnown reports whether name is a supported provider.
func IsKnown(name string) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}

const (
	defaultTimeout   = 30 * time.Second
	defaultMaxTokens = 600
	errorBodyLimit   = 300

	systemPrompt = "You are a disciplined prediction-market analyst. " +
		"Answer with a single JSON object and nothing else."
)

// StatusError is a non-2xx reply from a provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.Code, e.Body)
}

// Unwrap maps well-known statuses onto the domain sentinels.
func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrUnauthorized
	case http.StatusTooManyRequests:
		return domain.ErrRateLimited
	default:
		return nil
	}
}

func newStatusError(provider string, code int, body string) error {
	if len(body) > errorBodyLimit {
		body = body[:errorBodyLimit]
	}
	return &StatusError{Provider: provider, Code: code, Body: body}
}

// ErrEmptyReply is returned when a provider answers 2xx with no text.
var ErrEmptyReply = errors.New("empty reply")

func newRestyClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("Accept", "application/json")
	return client
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func maxTokensOr(v int) int {
	if v <= 0 {
		return defaultMaxTokens
	}
	return v
}
