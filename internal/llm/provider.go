package llm

import "context"

// Provider is the interface every upstream chat backend implements.
type Provider interface {
	// Complete sends a prompt and returns a completion.
	Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error)
	// Name returns the provider identifier (e.g. "groq", "openai").
	Name() string
}

// RequestOptions tunes a single completion call. Nil fields are left to the
// upstream default.
type RequestOptions struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
	StopSeqs    []string
}

// WithTemperature returns options carrying only a sampling temperature.
func WithTemperature(t float64) *RequestOptions {
	return &RequestOptions{Temperature: &t}
}
