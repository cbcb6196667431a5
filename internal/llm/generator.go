package llm

import "context"

// GenerationConfig holds the sampling options sent with every request.
type GenerationConfig struct {
	MaxOutputTokens int32   // Maximum number of tokens to generate, 0 for the model default
	Temperature     float32 // Sampling temperature, 0 for the model default
	JSONMode        bool    // Ask the model for an application/json response
}

// Request is one model call: the fixed instructions plus one batch of reviews.
type Request struct {
	SystemPrompt string
	StatsHeader  string
	BatchText    string
	// Model overrides the invoker's model policy when set.
	Model  string
	Config GenerationConfig
}

// UserText returns the user turn: the statistics header followed by the batch.
func (r Request) UserText() string {
	switch {
	case r.StatsHeader == "":
		return r.BatchText
	case r.BatchText == "":
		return r.StatsHeader
	}
	return r.StatsHeader + "\n\n" + r.BatchText
}

// Generator is the single point of contact with a language model.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Response is the text returned by a successful invocation.
type Response struct {
	Text     string
	Model    string // Model that produced the text
	Attempts int    // Calls made, including failed ones
}
