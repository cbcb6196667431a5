package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// Client is a Generator backed by the Gemini API.
type Client struct {
	gClient *genai.Client
}

// NewClient creates a Gemini client. The API key is required.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY environment variable or ai.gemini.api_key in config file.\nGet your API key from: https://aistudio.google.com/app/apikey")
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{gClient: gClient}, nil
}

// Generate sends one request. The system prompt travels as the system
// instruction; the statistics header and batch text form the user turn.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if req.Model == "" {
		req.Model = DefaultModel
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: req.UserText()}},
		Role:  "user",
	}}

	resp, err := c.gClient.Models.GenerateContent(ctx, req.Model, contents, buildConfig(req))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", statusError(err))
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func buildConfig(req Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}
	if req.Config.MaxOutputTokens > 0 {
		config.MaxOutputTokens = req.Config.MaxOutputTokens
	}
	if req.Config.Temperature > 0 {
		config.Temperature = genai.Ptr(req.Config.Temperature)
	}
	if req.Config.JSONMode {
		config.ResponseMIMEType = "application/json"
	}
	return config
}

// statusError lifts a Gemini API error into a *StatusError so callers can
// classify it without importing the SDK.
func statusError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Code: apiErr.Code, Status: apiErr.Status, Message: apiErr.Message, Err: err}
	}
	return err
}
