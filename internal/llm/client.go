// Package llm provides clients for hosted text-generation APIs. The service
// never owns credentials here; every call takes the API key chosen by the
// key pool, and callers report the outcome back to the pool.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Provider names supported by NewClient.
const (
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
)

// Options holds the generation settings shared by all providers.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Client generates text using a caller-supplied API key.
type Client interface {
	// Generate produces a completion for the prompt under the system
	// instruction, authenticated with the given key.
	Generate(ctx context.Context, systemPrompt, userPrompt, apiKey string) (string, error)
}

// NewClient returns a client for the named provider.
func NewClient(provider string, opts Options) (Client, error) {
	switch provider {
	case ProviderGroq:
		return NewGroqClient(opts), nil
	case ProviderGemini:
		return NewGeminiClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
}

// APIError is a non-2xx response from a provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("LLM API error (status %d): %s", e.StatusCode, e.Body)
}

// rateLimitKeywords are substrings that mark an error body as a throttling
// signal even when the status code alone is ambiguous.
var rateLimitKeywords = []string{"rate", "quota", "limit"}

// IsRateLimited reports whether err represents the provider throttling the
// credential, as opposed to a generic failure. 429 and 403 are explicit
// signals; otherwise the body is checked for rate/quota/limit wording.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == 429 || apiErr.StatusCode == 403 {
		return true
	}
	body := strings.ToLower(apiErr.Body)
	for _, kw := range rateLimitKeywords {
		if strings.Contains(body, kw) {
			return true
		}
	}
	return false
}

// CleanJSONBlock removes markdown code block wrappers from JSON output.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
