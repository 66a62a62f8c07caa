package decision

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

const (
	refusalScanLen    = 200
	defaultConfidence = 0.5
)

var refusalPhrases = []string{
	"i'm sorry",
	"i am sorry",
	"i cannot",
	"i can't",
	"i can not",
	"i'm unable",
	"i am unable",
	"i won't",
	"as an ai",
	"cannot provide financial advice",
	"not able to provide",
}

var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// ParseReply extracts a decision from raw provider text. It rejects refusals
// found in the opening of the reply, then decodes the fenced code block or
// the first balanced {...} span.
func ParseReply(text string) (domain.Decision, error) {
	if isRefusal(text) {
		return domain.Decision{}, ErrRefused
	}

	raw, ok := extractJSON(text)
	if !ok {
		return domain.Decision{}, ErrNoJSON
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return domain.Decision{}, fmt.Errorf("decision: decode reply: %w", err)
	}

	return domain.Decision{
		Side:       coerceSide(fields["side"]),
		Confidence: coerceConfidence(fields["confidence"]),
		Reasoning:  coerceReasoning(fields["reasoning"]),
	}, nil
}

func isRefusal(text string) bool {
	head := strings.ToLower(strings.TrimSpace(text))
	if len(head) > refusalScanLen {
		head = head[:refusalScanLen]
	}
	head = strings.ReplaceAll(head, "’", "'")
	for _, p := range refusalPhrases {
		if strings.Contains(head, p) {
			return true
		}
	}
	return false
}

func extractJSON(text string) (string, bool) {
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		body := strings.TrimSpace(m[1])
		if span, ok := balancedObject(body); ok {
			return span, true
		}
	}
	return balancedObject(text)
}

// balancedObject returns the first top-level {...} span, honoring quoted
// strings so braces inside values do not end the object early.
func balancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func coerceSide(v any) domain.Side {
	s, _ := v.(string)
	if strings.EqualFold(strings.TrimSpace(s), "yes") {
		return domain.SideYes
	}
	return domain.SideNo
}

func coerceConfidence(v any) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return defaultConfidence
		}
		f = parsed
	default:
		return defaultConfidence
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return defaultConfidence
	}
	return clamp(f, 0, 1)
}

func coerceReasoning(v any) []string {
	switch x := v.(type) {
	case string:
		if s := strings.TrimSpace(x); s != "" {
			return []string{s}
		}
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return []string{"Provider returned a decision without stated reasoning."}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// excerpt truncates raw text for logs.
func excerpt(text string) string {
	if len(text) <= refusalScanLen {
		return text
	}
	return text[:refusalScanLen] + "..."
}
