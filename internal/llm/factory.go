package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Options configures provider construction.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// NewClient builds a Client for the named provider. An unknown provider
// name is a configuration error and is returned to the caller; it is the
// only failure in the pipeline that surfaces instead of degrading.
func NewClient(ctx context.Context, provider string, opts Options) (Client, error) {
	switch strings.ToLower(provider) {
	case "openai":
		cfg := DefaultOpenAIConfig(opts.APIKey)
		if opts.Model != "" {
			cfg.Model = opts.Model
		}
		if opts.BaseURL != "" {
			cfg.BaseURL = opts.BaseURL
		}
		if opts.Timeout > 0 {
			cfg.Timeout = opts.Timeout
		}
		return NewOpenAIClientWithConfig(cfg), nil
	case "gemini":
		return NewGeminiClient(ctx, opts.APIKey, opts.Model)
	default:
		return nil, fmt.Errorf("unsupported provider %q (expected \"openai\" or \"gemini\")", provider)
	}
}
