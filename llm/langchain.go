package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// LangChainCompleter wraps a langchaingo model.
type LangChainCompleter struct {
	model llms.Model
	opts  []llms.CallOption
}

// NewLangChainCompleter wraps model. Call options, like llms.WithTemperature,
// are applied to every completion.
func NewLangChainCompleter(model llms.Model, opts ...llms.CallOption) *LangChainCompleter {
	return &LangChainCompleter{model: model, opts: opts}
}

// Complete generates a completion from a single prompt.
func (c *LangChainCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt, c.opts...)
	if err != nil {
		return "", fmt.Errorf("llm: generate: %w", err)
	}
	return strings.TrimSpace(resp), nil
}
