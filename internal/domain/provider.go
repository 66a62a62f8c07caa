package domain

import "context"

// RawReply is the unparsed text answer of an AI provider.
type RawReply struct {
	Provider string
	Model    string
	Text     string
}

// AIProvider is one external model endpoint. A provider without credentials
// reports Configured() == false and is never called.
type AIProvider interface {
	Name() string
	Configured() bool
	Complete(ctx context.Context, prompt string) (RawReply, error)
}

// WebResearcher returns short web snippets about a question.
type WebResearcher interface {
	Search(ctx context.Context, query string, max int) ([]string, error)
}
