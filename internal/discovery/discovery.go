// Package discovery finds jobs across the open web: an LLM generates search
// queries, career pages are located and crawled, and structured listings are
// extracted from page content by the LLM and schema-checked.
package discovery

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/jobtailor/internal/fetch"
	"github.com/jonathan/jobtailor/internal/keypool"
	"github.com/jonathan/jobtailor/internal/llm"
)

// MaxConcurrentCrawls bounds the career-page crawl fan-out.
const MaxConcurrentCrawls = 5

// MaxResults caps how many jobs a single discovery run returns.
const MaxResults = 20

// Request describes one discovery run.
type Request struct {
	Role              string
	ExperienceYears   int
	Skills            []string
	Location          string
	MaxResults        int
	IncludeStartups   bool
	IncludeEnterprise bool
	CustomSearchTerms []string
}

// Job is a structured listing extracted from an arbitrary career page.
type Job struct {
	Title           string   `json:"title"`
	Company         string   `json:"company"`
	Location        string   `json:"location,omitempty"`
	Description     string   `json:"description"`
	ApplyURL        string   `json:"apply_url"`
	SourceURL       string   `json:"source_url"`
	SalaryRange     string   `json:"salary_range,omitempty"`
	JobType         string   `json:"job_type,omitempty"`
	Requirements    []string `json:"requirements,omitempty"`
	ConfidenceScore float64  `json:"confidence_score"`
}

// Result is the outcome of a discovery run. Errors collects non-fatal
// per-page failures; the run as a whole still succeeds with whatever was
// extracted.
type Result struct {
	Jobs           []Job
	QueriesUsed    []string
	SourcesCrawled int
	Errors         []string
}

// Searcher turns a query into candidate result URLs.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]string, error)
}

// Crawler retrieves a page's readable text.
type Crawler func(ctx context.Context, url string) (string, error)

// Service runs discovery using a key pool and an LLM client.
type Service struct {
	pool     *keypool.Manager
	client   llm.Client
	searcher Searcher
	crawler  Crawler
}

// NewService creates a discovery service. A nil searcher or crawler gets the
// production DuckDuckGo/fetch implementations.
func NewService(pool *keypool.Manager, client llm.Client, searcher Searcher, crawler Crawler) *Service {
	if searcher == nil {
		searcher = NewDuckDuckGoSearcher()
	}
	if crawler == nil {
		crawler = fetchCrawler
	}
	return &Service{pool: pool, client: client, searcher: searcher, crawler: crawler}
}

// fetchCrawler retrieves a page and extracts its readable text, capped for
// prompt size.
func fetchCrawler(ctx context.Context, url string) (string, error) {
	result, err := fetch.URL(ctx, url, nil)
	if err != nil {
		return "", err
	}
	text, err := fetch.ExtractMainText(result.HTML, pageSelectors(url))
	if err != nil {
		return "", err
	}
	if len(text) > maxPageContent {
		text = text[:maxPageContent]
	}
	return text, nil
}

// pageSelectors picks content selectors for a crawled page. ATS-hosted pages
// (greenhouse, lever, workday) get their platform's selectors; unknown hosts
// use the generic career-page set.
func pageSelectors(url string) []string {
	if platform := fetch.DetectPlatform(url); platform != fetch.PlatformUnknown {
		return fetch.PlatformContentSelectors(platform)
	}
	return fetch.CareerPageSelectors()
}

// Discover orchestrates the full flow: query generation, search, crawl and
// extraction. Per-page failures are collected in the result rather than
// aborting the run; a pool-exhaustion error is fatal and passes through.
func (s *Service) Discover(ctx context.Context, req Request) (*Result, error) {
	if req.Role == "" {
		return nil, fmt.Errorf("role is required")
	}
	if req.MaxResults <= 0 || req.MaxResults > MaxResults {
		req.MaxResults = MaxResults
	}

	res := &Result{}

	queries, err := s.generateQueries(ctx, req)
	if err != nil {
		return nil, err
	}
	res.QueriesUsed = queries
	log.Printf("[discover] generated %d search queries for %q", len(queries), req.Role)

	urls := s.findCareerPages(ctx, queries, req.MaxResults, res)
	if len(urls) == 0 {
		res.Errors = append(res.Errors, "no career pages found for given criteria")
		return res, nil
	}
	log.Printf("[discover] found %d career page URLs", len(urls))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrentCrawls)

	for _, url := range urls {
		g.Go(func() error {
			content, err := s.crawler(gctx, url)
			if err != nil || content == "" {
				mu.Lock()
				res.Errors = append(res.Errors, fmt.Sprintf("failed to crawl: %s", url))
				mu.Unlock()
				return nil
			}

			jobs, err := s.extractJobs(gctx, content, url, req.Role)
			mu.Lock()
			defer mu.Unlock()
			res.SourcesCrawled++
			if err != nil {
				// Pool exhaustion must stop the whole run.
				if _, exhausted := keypool.IsNoKeysAvailable(err); exhausted {
					return err
				}
				res.Errors = append(res.Errors, fmt.Sprintf("extraction failed for %s: %v", url, err))
				return nil
			}
			res.Jobs = append(res.Jobs, jobs...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(res.Jobs, func(i, j int) bool {
		return res.Jobs[i].ConfidenceScore > res.Jobs[j].ConfidenceScore
	})
	if len(res.Jobs) > req.MaxResults {
		res.Jobs = res.Jobs[:req.MaxResults]
	}

	log.Printf("[discover] complete: %d jobs from %d sources", len(res.Jobs), res.SourcesCrawled)
	return res, nil
}

// findCareerPages runs the queries through the searcher, keeping URLs that
// look like direct company career pages.
func (s *Service) findCareerPages(ctx context.Context, queries []string, max int, res *Result) []string {
	seen := make(map[string]bool)
	var urls []string

	for _, query := range queries {
		if len(urls) >= max {
			break
		}
		found, err := s.searcher.Search(ctx, query, 10)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("search error for %q: %v", query, err))
			continue
		}
		for _, u := range found {
			if !seen[u] && IsValidCareerURL(u) {
				seen[u] = true
				urls = append(urls, u)
				if len(urls) >= max {
					break
				}
			}
		}
	}
	return urls
}

// withKey runs one LLM call under the acquire/report cycle and returns its
// output.
func (s *Service) withKey(ctx context.Context, system, user string) (string, error) {
	key, err := s.pool.Acquire()
	if err != nil {
		return "", err
	}
	out, err := s.client.Generate(ctx, system, user, key)
	if err != nil {
		s.pool.ReportFailure(key, llm.IsRateLimited(err))
		return "", err
	}
	s.pool.ReportSuccess(key)
	return out, nil
}
