package llm

import "context"

// Client is the completion boundary used by the chat session.
// Implementations perform exactly one outbound call per Complete and never retry.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
