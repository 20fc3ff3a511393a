package domain

import "context"

// Generator is the LLM generation contract. The core builds the full prompt
// string and is agnostic to the provider's wire format.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (GenerationResult, error)
}

// GenerationResult carries the generated text plus provider accounting.
type GenerationResult struct {
	Text       string
	Model      string
	Provider   string
	TokensUsed int
}
