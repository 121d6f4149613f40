package domain

import "context"

// CompletionRequest is sent to a text-completion provider.
type CompletionRequest struct {
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// CompletionProvider is the opaque remote text-completion boundary. It may
// fail (timeout, malformed output); callers are required to degrade to a
// local deterministic fallback and must never surface the failure to the
// end user as an error.
type CompletionProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Name() string
}
