// Package llm abstracts text completion behind a small interface so the
// analysis and synthesis steps can run against langchaingo models, the
// OpenAI API directly, or a fake in tests.
package llm

import "context"

// Completer produces a text completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc is a function adapter for Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
