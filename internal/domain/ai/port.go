package ai

import "context"

// Client is the model-call port. Complete returns the raw model text for a
// system+user prompt pair; any failure is a typed error the fallback
// controller treats as "advance to the next tier".
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Model() string
}
