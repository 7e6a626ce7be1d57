package tailor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/jobtailor/internal/keypool"
	"github.com/jonathan/jobtailor/internal/llm"
)

// scriptedClient fails for the keys listed in failWith and succeeds for
// everything else.
type scriptedClient struct {
	failWith map[string]error
	calls    []string // keys in call order
}

func (c *scriptedClient) Generate(_ context.Context, _, userPrompt, apiKey string) (string, error) {
	c.calls = append(c.calls, apiKey)
	if err, ok := c.failWith[apiKey]; ok {
		return "", err
	}
	return "generated for " + apiKey, nil
}

// fakeRenderer returns the text back as fake PDF bytes.
type fakeRenderer struct{}

func (fakeRenderer) Render(_ context.Context, text, _ string) ([]byte, error) {
	return []byte("%PDF " + text[:min(10, len(text))]), nil
}

func newPool(t *testing.T, keys ...string) *keypool.Manager {
	t.Helper()
	pool, err := keypool.New(keys)
	require.NoError(t, err)
	return pool
}

func testRequest() Request {
	return Request{
		JobTitle:    "Backend Engineer",
		Company:     "Acme",
		Description: "Go, PostgreSQL, HTTP APIs",
	}
}

func TestTailor_SuccessFirstKey(t *testing.T) {
	client := &scriptedClient{}
	svc := NewService(newPool(t, "key-aaaaaaaa", "key-bbbbbbbb"), client, fakeRenderer{})

	res, err := svc.Tailor(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, keypool.Mask("key-aaaaaaaa"), res.KeyUsed)
	assert.NotEmpty(t, res.CVText)
	assert.NotEmpty(t, res.CoverLetterText)
	assert.NotEmpty(t, res.CVPDF)
	assert.NotEmpty(t, res.CoverLetterPDF)
	// CV, then cover letter, both with the same key.
	assert.Equal(t, []string{"key-aaaaaaaa", "key-aaaaaaaa"}, client.calls)
}

func TestTailor_FailsOverOnRateLimit(t *testing.T) {
	client := &scriptedClient{failWith: map[string]error{
		"key-aaaaaaaa": &llm.APIError{StatusCode: 429, Body: "rate limit reached"},
	}}
	pool := newPool(t, "key-aaaaaaaa", "key-bbbbbbbb")
	svc := NewService(pool, client, fakeRenderer{})

	res, err := svc.Tailor(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, keypool.Mask("key-bbbbbbbb"), res.KeyUsed)

	// The rate-limited key must now be benched in the pool.
	st := pool.Status()
	assert.Equal(t, keypool.StateCoolingDown, st[0].State)
	assert.Equal(t, keypool.StateAvailable, st[1].State)
}

func TestTailor_GenericFailureRetriesWithoutBenching(t *testing.T) {
	client := &scriptedClient{failWith: map[string]error{
		"key-aaaaaaaa": &llm.APIError{StatusCode: 500, Body: "upstream exploded"},
	}}
	pool := newPool(t, "key-aaaaaaaa", "key-bbbbbbbb")
	svc := NewService(pool, client, fakeRenderer{})

	res, err := svc.Tailor(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)

	st := pool.Status()
	assert.Equal(t, keypool.StateAvailable, st[0].State)
	assert.Equal(t, 1, st[0].ConsecutiveFailures)
}

func TestTailor_AllKeysRateLimited(t *testing.T) {
	rateLimit := &llm.APIError{StatusCode: 429, Body: "rate limit reached"}
	client := &scriptedClient{failWith: map[string]error{
		"key-aaaaaaaa": rateLimit,
		"key-bbbbbbbb": rateLimit,
	}}
	pool := newPool(t, "key-aaaaaaaa", "key-bbbbbbbb")
	svc := NewService(pool, client, fakeRenderer{})

	_, err := svc.Tailor(context.Background(), testRequest())
	require.Error(t, err)

	// The second attempt benches the last key; the failure surfaces either as
	// the wrapped API error or, if another acquire ran, pool exhaustion.
	if retry, ok := keypool.IsNoKeysAvailable(err); ok {
		assert.Positive(t, retry)
	}

	// A follow-up run sees an exhausted pool immediately.
	_, err = svc.Tailor(context.Background(), testRequest())
	require.Error(t, err)
	_, ok := keypool.IsNoKeysAvailable(err)
	assert.True(t, ok, "expected pool exhaustion, got %v", err)
}

func TestTailor_DefaultTemplateApplied(t *testing.T) {
	var sawPrompt string
	client := &promptCapturingClient{captured: &sawPrompt}
	svc := NewService(newPool(t, "key-aaaaaaaa"), client, fakeRenderer{})

	_, err := svc.Tailor(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Contains(t, sawPrompt, "John Doe", "default CV template should be in the prompt")
}

type promptCapturingClient struct {
	captured *string
}

func (c *promptCapturingClient) Generate(_ context.Context, _, userPrompt, _ string) (string, error) {
	if *c.captured == "" {
		*c.captured = userPrompt
	}
	return "ok text", nil
}

func TestTailor_RendererFailureSurfaces(t *testing.T) {
	svc := NewService(newPool(t, "key-aaaaaaaa"), &scriptedClient{}, errRenderer{})

	_, err := svc.Tailor(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render")
}

type errRenderer struct{}

func (errRenderer) Render(context.Context, string, string) ([]byte, error) {
	return nil, errors.New("chrome unavailable")
}
