package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model name is configured.
const DefaultOpenAIModel = openai.GPT4oMini

// OpenAICompleter talks to the OpenAI chat completion API directly.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// OpenAIOption configures an OpenAICompleter.
type OpenAIOption func(*OpenAICompleter)

// WithModel selects the chat model.
func WithModel(model string) OpenAIOption {
	return func(c *OpenAICompleter) {
		if model != "" {
			c.model = model
		}
	}
}

// NewOpenAICompleter creates a completer for the given API key. baseURL is
// optional and allows pointing at a compatible endpoint.
func NewOpenAICompleter(apiKey, baseURL string, opts ...OpenAIOption) (*OpenAICompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: openai api key not set")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	c := &OpenAICompleter{
		client: openai.NewClientWithConfig(cfg),
		model:  DefaultOpenAIModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Complete generates a completion from a single user prompt.
func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
