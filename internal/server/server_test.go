package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/jobtailor/internal/discovery"
	"github.com/jonathan/jobtailor/internal/keypool"
	"github.com/jonathan/jobtailor/internal/scraping"
	"github.com/jonathan/jobtailor/internal/server/ratelimit"
	"github.com/jonathan/jobtailor/internal/tailor"
)

type fakeTailorer struct {
	result *tailor.Result
	err    error
}

func (f *fakeTailorer) Tailor(context.Context, tailor.Request) (*tailor.Result, error) {
	return f.result, f.err
}

type fakeDiscoverer struct {
	result *discovery.Result
	err    error
}

func (f *fakeDiscoverer) Discover(context.Context, discovery.Request) (*discovery.Result, error) {
	return f.result, f.err
}

type fakeScraper struct {
	jobs   []scraping.Job
	err    error
	params scraping.Params
}

func (f *fakeScraper) Scrape(_ context.Context, params scraping.Params) ([]scraping.Job, error) {
	f.params = params
	return f.jobs, f.err
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	pool, err := keypool.New([]string{"gsk_aaaaaaaaaaaa", "gsk_bbbbbbbbbbbb"})
	require.NoError(t, err)
	return &Server{
		pool:        pool,
		tailorer:    &fakeTailorer{result: &tailor.Result{CVText: "cv", Attempts: 1}},
		discoverer:  &fakeDiscoverer{result: &discovery.Result{}},
		scraper:     &fakeScraper{},
		rateLimiter: ratelimit.NewLimiter(&ratelimit.Config{Enabled: false}),
	}
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "10.0.0.1:12345"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	rec := doRequest(newTestServer(t), "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestHandleRoot(t *testing.T) {
	rec := doRequest(newTestServer(t), "GET", "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "jobtailor")

	rec = doRequest(newTestServer(t), "GET", "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleKeyStatus(t *testing.T) {
	s := newTestServer(t)
	s.pool.ReportFailure("gsk_bbbbbbbbbbbb", true)

	rec := doRequest(s, "GET", "/api-keys/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Keys      []KeyStatusEntry `json:"keys"`
		Total     int              `json:"total"`
		Available int              `json:"available"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Total)
	assert.Equal(t, 1, body.Available)
	for _, k := range body.Keys {
		assert.NotContains(t, k.Key, "aaaaaaaaaaaa", "keys must be masked")
	}
}

func TestHandleScrape(t *testing.T) {
	s := newTestServer(t)
	scraper := &fakeScraper{jobs: []scraping.Job{{Title: "Go Dev", Site: "indeed"}}}
	s.scraper = scraper

	rec := doRequest(s, "POST", "/scrape", `{"search_term": "golang", "location": "Berlin"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ScrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "Go Dev", resp.Jobs[0].Title)
	// Default board set applies when site_names is omitted.
	assert.Equal(t, []string{"indeed", "linkedin"}, scraper.params.Sites)
}

func TestHandleScrape_Validation(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, "POST", "/scrape", `{"location": "Berlin"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, "POST", "/scrape", `{"search_term": "go", "site_names": ["monster"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, "POST", "/scrape", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTailorCV(t *testing.T) {
	s := newTestServer(t)
	s.tailorer = &fakeTailorer{result: &tailor.Result{
		CVText:          "tailored cv",
		CoverLetterText: "letter",
		CVPDF:           []byte("%PDF-cv"),
		CoverLetterPDF:  []byte("%PDF-cl"),
		KeyUsed:         "gsk_...aaaa",
		Attempts:        2,
	}}

	body := `{"job_title": "Backend Engineer", "company": "Acme", "job_description": "` +
		strings.Repeat("build services ", 5) + `"}`
	rec := doRequest(s, "POST", "/tailor-cv", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TailorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "tailored cv", resp.CVText)
	assert.Equal(t, []byte("%PDF-cv"), resp.CVPDF)
	assert.Equal(t, 2, resp.Attempts)
}

func TestHandleTailorCV_Validation(t *testing.T) {
	s := newTestServer(t)

	// Description too short.
	rec := doRequest(s, "POST", "/tailor-cv", `{"job_title": "Engineer", "job_description": "short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "job_description")
}

func TestHandleTailorCV_FromJobURL(t *testing.T) {
	s := newTestServer(t)
	var fetchedURL string
	s.descFetcher = func(_ context.Context, url string) (string, error) {
		fetchedURL = url
		return "a job description fetched from the posting page", nil
	}

	rec := doRequest(s, "POST", "/tailor-cv",
		`{"job_title": "Engineer", "job_url": "https://acme.com/jobs/1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://acme.com/jobs/1", fetchedURL)

	// Neither description nor URL is a validation error.
	rec = doRequest(s, "POST", "/tailor-cv", `{"job_title": "Engineer"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTailorCV_PoolExhausted(t *testing.T) {
	s := newTestServer(t)
	s.tailorer = &fakeTailorer{err: &keypool.NoKeysAvailableError{RetryAfter: 90 * time.Second}}

	body := `{"job_title": "Backend Engineer", "job_description": "a long enough job description"}`
	rec := doRequest(s, "POST", "/tailor-cv", body)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "91", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "cooling down")
}

func TestHandleDiscover(t *testing.T) {
	s := newTestServer(t)
	s.discoverer = &fakeDiscoverer{result: &discovery.Result{
		Jobs:           []discovery.Job{{Title: "Go Engineer", Company: "Acme"}},
		QueriesUsed:    []string{"golang careers"},
		SourcesCrawled: 3,
	}}

	rec := doRequest(s, "POST", "/discover", `{"role": "Go Engineer"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DiscoverResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, 3, resp.SourcesCrawled)
}

func TestHandleDiscover_Validation(t *testing.T) {
	rec := doRequest(newTestServer(t), "POST", "/discover", `{"experience_years": 3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListHistory_DisabledStoreIsEmpty(t *testing.T) {
	rec := doRequest(newTestServer(t), "GET", "/history", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Runs  []HistoryEntry `json:"runs"`
		Count int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Runs)
	assert.Equal(t, 0, body.Count)
}

func TestHandleListHistory_BadLimit(t *testing.T) {
	rec := doRequest(newTestServer(t), "GET", "/history?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(newTestServer(t), "GET", "/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetHistory(t *testing.T) {
	// Unknown but well-formed ID: not found.
	rec := doRequest(newTestServer(t), "GET", "/history/"+uuid.New().String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Malformed ID: validation error.
	rec = doRequest(newTestServer(t), "GET", "/history/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	s := newTestServer(t)
	s.rateLimiter = ratelimit.NewLimiter(&ratelimit.Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		Whitelist:     map[string]bool{},
		Blacklist:     map[string]bool{},
		EndpointConfigs: []ratelimit.EndpointConfig{
			{Path: "/tailor-cv", Method: "POST", Limit: 2, Window: time.Hour, Burst: 1},
		},
	})
	defer s.rateLimiter.Stop()

	body := `{"job_title": "Engineer", "job_description": "a long enough job description"}`
	rec := doRequest(s, "POST", "/tailor-cv", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))

	rec = doRequest(s, "POST", "/tailor-cv", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limit_exceeded")
}

func TestCORSPreflight(t *testing.T) {
	rec := doRequest(newTestServer(t), "OPTIONS", "/tailor-cv", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDHeader(t *testing.T) {
	rec := doRequest(newTestServer(t), "GET", "/health", "")
	assert.Len(t, rec.Header().Get("X-Request-ID"), 8)
}

func TestBrowserFallbackFetcher_RichPageSkipsBrowser(t *testing.T) {
	// A page with enough content is returned straight from the HTTP fetch;
	// the headless browser is only for thin SPA shells.
	page := "<html><body>" + strings.Repeat("<p>Senior Go Engineer listing</p>", 50) + "</body></html>"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer ts.Close()

	html, err := browserFallbackFetcher(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Contains(t, html, "Senior Go Engineer")
}

func TestFetchJobDescription(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<nav>Home | Jobs</nav>
			<div class="job-description"><p>Design and run Go services at scale.</p></div>
		</body></html>`))
	}))
	defer ts.Close()

	s := newTestServer(t)
	text, err := s.fetchJobDescription(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Contains(t, text, "Design and run Go services")
	assert.NotContains(t, text, "Home | Jobs")
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(&ErrValidation{Field: "x", Message: "y"}))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(&keypool.NoKeysAvailableError{}))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(assert.AnError))
}
