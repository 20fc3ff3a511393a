package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/newsrag/internal/domain"
	"github.com/kailas-cloud/newsrag/internal/metrics"
)

// systemPrompt constrains the model to the supplied evidence.
const systemPrompt = "You are a news analyst. Answer strictly from the provided context. " +
	"If the context does not contain the answer, say so instead of guessing."

// Generator is an LLM generation provider using the OpenAI-compatible chat API.
type Generator struct {
	client   *openai.Client
	model    string
	provider string
	logger   *zap.Logger
}

// GeneratorConfig holds the generation provider settings.
type GeneratorConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Provider string
	Logger   *zap.Logger
}

// NewGenerator creates an OpenAI-compatible generation provider.
func NewGenerator(cfg *GeneratorConfig) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Generator{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		provider: cfg.Provider,
		logger:   cfg.Logger,
	}
}

// Generate implements domain.Generator via a single chat completion call.
func (g *Generator) Generate(ctx context.Context, prompt string, maxTokens int) (domain.GenerationResult, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if maxTokens > 0 {
		req.MaxTokens = maxTokens
	}

	start := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestDuration.WithLabelValues(g.provider, g.model, "error").Observe(duration.Seconds())
		return domain.GenerationResult{}, parseGenerationAPIError(err)
	}

	if len(resp.Choices) == 0 {
		metrics.GenerationRequestDuration.WithLabelValues(g.provider, g.model, "error").Observe(duration.Seconds())
		return domain.GenerationResult{}, fmt.Errorf("empty completion response: %w", domain.ErrProvider)
	}

	metrics.GenerationRequestDuration.WithLabelValues(g.provider, g.model, "success").Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.GenerationTokensTotal.WithLabelValues(g.provider, g.model).Add(float64(resp.Usage.TotalTokens))
	}

	return domain.GenerationResult{
		Text:       resp.Choices[0].Message.Content,
		Model:      resp.Model,
		Provider:   g.provider,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// parseGenerationAPIError wraps provider failures with domain.ErrProvider.
// Context timeouts keep their cancellation cause so callers can tell them apart in logs.
func parseGenerationAPIError(err error) error {
	wrap := domain.ErrProvider

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("generation call aborted: %w: %w", wrap, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("generation API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("generation API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	return fmt.Errorf("generation request failed: %w", wrap)
}
