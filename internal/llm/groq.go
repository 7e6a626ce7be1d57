package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DefaultGroqEndpoint is the OpenAI-compatible chat completions endpoint.
const DefaultGroqEndpoint = "https://api.groq.com/openai/v1/chat/completions"

// GroqClient calls the Groq chat completions API over HTTP.
type GroqClient struct {
	endpoint string
	opts     Options
	http     *http.Client
}

// NewGroqClient creates a Groq client with the given generation options.
func NewGroqClient(opts Options) *GroqClient {
	return &GroqClient{
		endpoint: DefaultGroqEndpoint,
		opts:     opts,
		http:     &http.Client{Timeout: opts.Timeout},
	}
}

// WithEndpoint overrides the API endpoint. Used by tests.
func (c *GroqClient) WithEndpoint(url string) *GroqClient {
	c.endpoint = url
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends a chat completion request authenticated with apiKey and
// returns the first choice's content.
func (c *GroqClient) Generate(ctx context.Context, systemPrompt, userPrompt, apiKey string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("Groq request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty completion from Groq")
	}

	return parsed.Choices[0].Message.Content, nil
}
