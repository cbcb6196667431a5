package llm

import (
	"context"
	"log/slog"
	"time"

	"swotlens/internal/logger"
)

// TracedGenerator wraps a Generator and logs every call with its latency
// and a rough token count.
type TracedGenerator struct {
	gen Generator
	log *slog.Logger
}

// NewTracedGenerator wraps gen. A nil logger uses the package default.
func NewTracedGenerator(gen Generator, l *slog.Logger) *TracedGenerator {
	if l == nil {
		l = logger.Get()
	}
	return &TracedGenerator{gen: gen, log: l}
}

// Generate calls the wrapped generator and records the outcome.
func (tg *TracedGenerator) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := tg.gen.Generate(ctx, req)
	latency := time.Since(start)

	attrs := []any{
		"model", req.Model,
		"latency_ms", latency.Milliseconds(),
		"prompt_tokens", estimateTokens(req.SystemPrompt + req.UserText()),
		"completion_tokens", estimateTokens(text),
	}
	if err != nil {
		tg.log.Debug("Model call failed", append(attrs, "error", err.Error())...)
		return text, err
	}
	tg.log.Debug("Model call completed", attrs...)
	return text, nil
}

// estimateTokens approximates the token count at four bytes per token.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}
