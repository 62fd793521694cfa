package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	aidomain "github.com/bryanwahyu/daily-movers/internal/domain/ai"
)

const maxTokens = 2048

// Client wraps the OpenAI chat API behind the domain ai.Client port. A rate
// limiter sits in front of every call so a wide worker pool cannot burst
// past the account's request budget.
type Client struct {
	api     *openai.Client
	model   string
	limiter *rate.Limiter
}

// NewClient returns nil when no API key is configured; callers treat a nil
// client as an unconfigured tier.
func NewClient(apiKey, model string, requestsPerMinute int) *Client {
	if apiKey == "" {
		return nil
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &Client{
		api:     openai.NewClient(apiKey),
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), requestsPerMinute/6+1),
	}
}

func (c *Client) Model() string {
	if c.model == "" {
		return "gpt-4o-mini"
	}
	return c.model
}

// Complete runs one JSON-mode chat completion.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c == nil || c.api == nil {
		return "", aidomain.ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	model := c.Model()
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
			return "", fmt.Errorf("%w: %v", aidomain.ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", aidomain.ErrMalformedOutput
	}
	return resp.Choices[0].Message.Content, nil
}
