// Package decision turns a scored market into a directional call, asking the
// agent's AI provider first and falling back to a deterministic generator
// whenever the provider is missing, fails, refuses or answers garbage.
package decision

import (
	"errors"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

// Kind tags the outcome of one decision attempt.
type Kind int

const (
	// KindOK means the provider answered with a usable decision.
	KindOK Kind = iota
	// KindConfig means the provider has no credential or is unknown.
	KindConfig
	// KindProvider covers transport errors, non-2xx replies, timeouts and
	// refusals.
	KindProvider
	// KindQuietIneligible is an account eligibility denial. It is expected
	// for some accounts and only logged at debug.
	KindQuietIneligible
	// KindParse means the reply carried no decodable decision.
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindConfig:
		return "config"
	case KindProvider:
		return "provider"
	case KindQuietIneligible:
		return "ineligible"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of Engine.Decide. Decision is always set: for
// every Kind other than KindOK it holds the deterministic fallback.
type Result struct {
	Kind     Kind
	Provider string
	Reply    domain.RawReply
	Decision domain.Decision
	Err      error
}

// FromProvider reports whether the decision came from the AI provider.
func (r Result) FromProvider() bool {
	return r.Kind == KindOK
}

var (
	// ErrNotConfigured is wrapped by KindConfig results.
	ErrNotConfigured = errors.New("provider not configured")
	// ErrRefused is returned by ParseReply when the model declined to answer.
	ErrRefused = errors.New("provider refused")
	// ErrNoJSON is returned by ParseReply when no JSON object is present.
	ErrNoJSON = errors.New("no json object in reply")
)
