package providers

import (
	"context"
	"fmt"
	"iter"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Request contains the data sent to the model.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// Response contains the raw response from the model.
type Response struct {
	Content      string
	TokensUsed   int
	FinishReason string
}

// Generator is the text-generation abstraction shared by the review and
// fan-out flows.
type Generator interface {
	// Generate performs one blocking request.
	Generate(ctx context.Context, req Request) (Response, error)
	// Stream yields response fragments in arrival order. A failure is
	// yielded once as a non-nil error, after which the sequence ends.
	Stream(ctx context.Context, req Request) iter.Seq2[string, error]
	Name() string
	Model() string
}

// New creates a generator by provider name.
func New(provider, model string) (Generator, error) {
	if model == "" {
		model = DefaultModel
	}
	switch provider {
	case "", "gemini", "google":
		return NewGemini(model)
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}
