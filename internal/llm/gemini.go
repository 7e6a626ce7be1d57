package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiClient calls Google Gemini through the official SDK. Because the API
// key is supplied per call (the pool rotates it), the underlying SDK client
// is constructed per request and closed when the call completes.
type GeminiClient struct {
	opts Options
}

// NewGeminiClient creates a Gemini client with the given generation options.
func NewGeminiClient(opts Options) *GeminiClient {
	return &GeminiClient{opts: opts}
}

// Generate produces a completion via the Gemini API.
func (c *GeminiClient) Generate(ctx context.Context, systemPrompt, userPrompt, apiKey string) (string, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer func() { _ = client.Close() }()

	model := client.GenerativeModel(c.opts.Model)
	model.SetTemperature(float32(c.opts.Temperature))
	if c.opts.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(c.opts.MaxTokens))
	}
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", translateGeminiError(err)
	}

	return extractTextFromResponse(resp)
}

// translateGeminiError converts SDK errors into APIError so the key pool's
// rate-limit classification applies uniformly across providers.
func translateGeminiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{StatusCode: gerr.Code, Body: gerr.Message}
	}
	return fmt.Errorf("failed to generate content: %w", err)
}

// extractTextFromResponse extracts text from a Gemini API response.
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}
