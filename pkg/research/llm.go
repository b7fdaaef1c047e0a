package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/deep-research/pkg/metrics"
)

// Completer is the language model boundary: plain text in, plain text out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ModelCompleter sends prompts to a langchaingo model behind the research
// system prompt.
type ModelCompleter struct {
	LLM          llms.Model
	SystemPrompt string
	Temperature  float64
	MaxRetries   int
	Backoff      time.Duration
	Logger       *slog.Logger
}

func NewModelCompleter(llm llms.Model, temperature float64) *ModelCompleter {
	return &ModelCompleter{
		LLM:          llm,
		SystemPrompt: fmt.Sprintf(systemPromptTemplate, time.Now().Format(time.DateTime)),
		Temperature:  temperature,
		MaxRetries:   3,
		Backoff:      time.Second,
		Logger:       slog.Default(),
	}
}

// Complete retries up to MaxRetries times when generation fails or returns
// no choices, backing off linearly between attempts.
func (c *ModelCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, c.SystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	maxRetries := max(c.MaxRetries, 1)
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			c.logger().Warn("Retrying LLM generation", "attempt", i+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("llm generation cancelled: %w", ctx.Err())
			case <-time.After(c.Backoff * time.Duration(i)): // Linear backoff
			}
		}

		start := time.Now()
		resp, err := c.LLM.GenerateContent(ctx, messages, llms.WithTemperature(c.Temperature))
		if err != nil {
			metrics.ExternalCallDuration.WithLabelValues("llm", metrics.StatusError).Observe(time.Since(start).Seconds())
			lastErr = fmt.Errorf("llm generation failed: %w", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		metrics.ExternalCallDuration.WithLabelValues("llm", metrics.StatusOK).Observe(time.Since(start).Seconds())

		if len(resp.Choices) == 0 {
			lastErr = errors.New("llm returned no choices")
			continue
		}

		return resp.Choices[0].Content, nil
	}

	return "", fmt.Errorf("operation failed after %d retries: %w", maxRetries, lastErr)
}

func (c *ModelCompleter) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
