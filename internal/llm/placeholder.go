package llm

import "context"

// PlaceholderAnswer is returned while no completion backend is wired in.
const PlaceholderAnswer = "Answer generation is not available yet. Your question has been saved."

// Placeholder is a Provider that returns a canned answer with zero usage.
// It stands in for a real completion backend until one is configured.
type Placeholder struct{}

// NewPlaceholder creates the placeholder provider.
func NewPlaceholder() *Placeholder { return &Placeholder{} }

// Name returns the provider name.
func (p *Placeholder) Name() string { return "placeholder" }

// IsAvailable always reports true; the placeholder has no dependencies.
func (p *Placeholder) IsAvailable(_ context.Context) bool { return true }

// Complete returns the canned answer.
func (p *Placeholder) Complete(_ context.Context, _ CompletionRequest) (*CompletionResponse, error) {
	return &CompletionResponse{
		Content: PlaceholderAnswer,
		Model:   "placeholder",
		Usage:   Usage{},
	}, nil
}
