package newsrag

import "context"

// Generator produces answer text from a prompt. Required for Ask and
// Summarize; Search works without it.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (GenerationResult, error)
}

// GenerationResult carries the generated text and usage accounting.
type GenerationResult struct {
	Text       string
	Model      string
	Provider   string
	TokensUsed int
}
