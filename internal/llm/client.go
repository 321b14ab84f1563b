// Package llm provides the language-model clients the pipeline consults
// for suggestions, implementation code, and repairs. Replies are treated
// as untrusted text; callers always re-extract and re-validate.
package llm

import "context"

// Client is the minimal interface the pipeline uses to call an LLM.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
