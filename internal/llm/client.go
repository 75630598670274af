// Package llm wraps the completion collaborator. The LLM is an oracle, not
// a parser: it only ever emits short free-form hints that are re-resolved
// against the live catalog, and it is never shown catalog lists.
package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"sooqsearch/internal/logging"
)

// Client is the completion interface the parser depends on.
type Client interface {
	// Complete sends a system+user prompt pair and returns the raw
	// completion text plus token usage.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, Usage, error)

	// Model returns the model identifier for intent metadata.
	Model() string
}

// Usage carries token accounting for intent metadata.
type Usage struct {
	TotalTokens int
}

// OpenAIClient implements Client against any OpenAI-compatible chat API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// Config holds client configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewOpenAIClient creates a client for the configured endpoint.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm model required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

// Complete sends one chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, Usage, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0,
		MaxTokens:   256,
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("chat completion: empty choices")
	}

	usage := Usage{TotalTokens: resp.Usage.TotalTokens}
	logging.Get(logging.CategoryLLM).Debug("completion: model=%s tokens=%d", c.model, usage.TotalTokens)
	return resp.Choices[0].Message.Content, usage, nil
}

// Model returns the configured model identifier.
func (c *OpenAIClient) Model() string { return c.model }
