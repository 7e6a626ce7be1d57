package discovery

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/jobtailor/internal/fetch"
	"github.com/jonathan/jobtailor/internal/keypool"
	"github.com/jonathan/jobtailor/internal/llm"
)

// stubClient answers the query-generation prompt with a fixed query list and
// every extraction prompt with extractReply.
type stubClient struct {
	extractReply string
	failAll      error
}

func (c *stubClient) Generate(_ context.Context, systemPrompt, _, _ string) (string, error) {
	if c.failAll != nil {
		return "", c.failAll
	}
	if strings.Contains(systemPrompt, "search query optimizer") {
		return `["golang careers remote", "site:greenhouse.io golang"]`, nil
	}
	return c.extractReply, nil
}

type stubSearcher struct {
	urls []string
	err  error
}

func (s *stubSearcher) Search(context.Context, string, int) ([]string, error) {
	return s.urls, s.err
}

func stubCrawler(pages map[string]string) Crawler {
	return func(_ context.Context, url string) (string, error) {
		if content, ok := pages[url]; ok {
			return content, nil
		}
		return "", fmt.Errorf("crawl failed for %s", url)
	}
}

func newService(t *testing.T, client llm.Client, searcher Searcher, crawler Crawler) (*Service, *keypool.Manager) {
	t.Helper()
	pool, err := keypool.New([]string{"key-aaaaaaaa", "key-bbbbbbbb"})
	require.NoError(t, err)
	return NewService(pool, client, searcher, crawler), pool
}

const pageContent = `Open Positions at Acme
Senior Go Engineer - Remote
We are hiring a Go engineer to build our platform backend. ` // padded below

var longPageContent = pageContent + strings.Repeat("More details about the role. ", 10)

const extractedJobsJSON = `[
	{
		"title": "Senior Go Engineer",
		"company": "Acme",
		"location": "Remote",
		"description": "Build platform backend services in Go.",
		"apply_url": "",
		"requirements": ["Go", "PostgreSQL"],
		"confidence_score": 0.92
	},
	{
		"title": "Platform Engineer",
		"company": "Acme",
		"location": null,
		"description": "Infrastructure role.",
		"apply_url": "https://acme.com/apply/2",
		"confidence_score": 0.4
	}
]`

func TestDiscover_EndToEnd(t *testing.T) {
	searcher := &stubSearcher{urls: []string{"https://acme.com/careers"}}
	crawler := stubCrawler(map[string]string{"https://acme.com/careers": longPageContent})
	svc, _ := newService(t, &stubClient{extractReply: extractedJobsJSON}, searcher, crawler)

	res, err := svc.Discover(context.Background(), Request{Role: "Go Engineer", Location: "Remote"})
	require.NoError(t, err)

	require.Len(t, res.Jobs, 2)
	// Sorted by confidence, highest first.
	assert.Equal(t, "Senior Go Engineer", res.Jobs[0].Title)
	assert.Equal(t, 0.92, res.Jobs[0].ConfidenceScore)
	// Empty apply_url falls back to the source URL.
	assert.Equal(t, "https://acme.com/careers", res.Jobs[0].ApplyURL)
	assert.Equal(t, "https://acme.com/careers", res.Jobs[0].SourceURL)
	assert.Equal(t, 1, res.SourcesCrawled)
	assert.NotEmpty(t, res.QueriesUsed)
}

func TestDiscover_RoleRequired(t *testing.T) {
	svc, _ := newService(t, &stubClient{}, &stubSearcher{}, stubCrawler(nil))
	_, err := svc.Discover(context.Background(), Request{})
	assert.Error(t, err)
}

func TestDiscover_NoCareerPages(t *testing.T) {
	svc, _ := newService(t, &stubClient{}, &stubSearcher{urls: nil}, stubCrawler(nil))

	res, err := svc.Discover(context.Background(), Request{Role: "Go Engineer"})
	require.NoError(t, err)
	assert.Empty(t, res.Jobs)
	assert.Contains(t, res.Errors[0], "no career pages found")
}

func TestDiscover_AggregatorURLsFiltered(t *testing.T) {
	searcher := &stubSearcher{urls: []string{
		"https://www.indeed.com/jobs?q=go",
		"https://www.linkedin.com/jobs/view/1",
		"https://acme.com/careers",
	}}
	crawler := stubCrawler(map[string]string{"https://acme.com/careers": longPageContent})
	svc, _ := newService(t, &stubClient{extractReply: "[]"}, searcher, crawler)

	res, err := svc.Discover(context.Background(), Request{Role: "Go Engineer"})
	require.NoError(t, err)
	// Only the direct company page was crawled.
	assert.Equal(t, 1, res.SourcesCrawled)
}

func TestDiscover_CrawlFailureIsCollected(t *testing.T) {
	searcher := &stubSearcher{urls: []string{"https://acme.com/careers", "https://beta.io/jobs"}}
	crawler := stubCrawler(map[string]string{"https://acme.com/careers": longPageContent})
	svc, _ := newService(t, &stubClient{extractReply: "[]"}, searcher, crawler)

	res, err := svc.Discover(context.Background(), Request{Role: "Go Engineer"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.SourcesCrawled)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "failed to crawl")
}

func TestDiscover_InvalidExtractionIsCollected(t *testing.T) {
	searcher := &stubSearcher{urls: []string{"https://acme.com/careers"}}
	crawler := stubCrawler(map[string]string{"https://acme.com/careers": longPageContent})
	// Missing required "company" field fails schema validation.
	svc, _ := newService(t, &stubClient{extractReply: `[{"title": "X", "description": "y"}]`}, searcher, crawler)

	res, err := svc.Discover(context.Background(), Request{Role: "Go Engineer"})
	require.NoError(t, err)
	assert.Empty(t, res.Jobs)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "schema validation")
}

func TestDiscover_FallbackQueriesOnLLMFailure(t *testing.T) {
	client := &stubClient{failAll: &llm.APIError{StatusCode: 500, Body: "boom"}}
	searcher := &stubSearcher{urls: nil}
	svc, _ := newService(t, client, searcher, stubCrawler(nil))

	res, err := svc.Discover(context.Background(), Request{
		Role: "Go Engineer", Location: "Remote", Skills: []string{"Go"},
		CustomSearchTerms: []string{"golang fintech hiring"},
	})
	require.NoError(t, err)
	assert.Contains(t, res.QueriesUsed, "Go Engineer careers Remote")
	assert.Contains(t, res.QueriesUsed, "golang fintech hiring")
}

func TestDiscover_PoolExhaustionIsFatal(t *testing.T) {
	pool, err := keypool.New([]string{"key-aaaaaaaa"})
	require.NoError(t, err)
	// Bench the only key.
	pool.ReportFailure("key-aaaaaaaa", true)

	svc := NewService(pool, &stubClient{}, &stubSearcher{}, stubCrawler(nil))
	_, err = svc.Discover(context.Background(), Request{Role: "Go Engineer"})
	require.Error(t, err)
	_, ok := keypool.IsNoKeysAvailable(err)
	assert.True(t, ok, "expected pool exhaustion to pass through, got %v", err)
}

func TestPageSelectors_PlatformAware(t *testing.T) {
	// ATS-hosted pages get their platform's selector set.
	got := pageSelectors("https://boards.greenhouse.io/acme")
	assert.Contains(t, got, ".job__description", "greenhouse page should use greenhouse selectors")

	got = pageSelectors("https://jobs.lever.co/acme")
	assert.Contains(t, got, ".posting-page", "lever page should use lever selectors")

	// Unknown hosts use the generic career-page set.
	got = pageSelectors("https://acme.com/careers")
	assert.Equal(t, fetch.CareerPageSelectors(), got)
}

func TestIsValidCareerURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://acme.com/careers", true},
		{"https://boards.greenhouse.io/acme", true},
		{"https://jobs.lever.co/acme", true},
		{"https://beta.io/join", true},
		{"https://www.indeed.com/viewjob?jk=1", false},
		{"https://www.linkedin.com/jobs/view/1", false},
		{"https://acme.com/about", false},
		{"not-a-url", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidCareerURL(tt.url), "url %s", tt.url)
	}
}

func TestResolveResultURL(t *testing.T) {
	wrapped := "//duckduckgo.com/l/?uddg=https%3A%2F%2Facme.com%2Fcareers&rut=abc"
	assert.Equal(t, "https://acme.com/careers", resolveResultURL(wrapped))
	assert.Equal(t, "https://direct.example.com/jobs", resolveResultURL("https://direct.example.com/jobs"))
	assert.Equal(t, "", resolveResultURL("javascript:void(0)"))
}
