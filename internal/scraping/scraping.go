// Package scraping retrieves job listings from supported job boards and
// normalizes them into a common Job shape.
package scraping

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/jobtailor/internal/fetch"
)

// MaxConcurrentBoards bounds the per-request board fan-out.
const MaxConcurrentBoards = 3

// Job is one normalized job listing.
type Job struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
	Site        string `json:"site"`
	Salary      string `json:"salary,omitempty"`
	PostedAt    string `json:"posted_at,omitempty"`
	Remote      bool   `json:"remote"`
}

// Params controls a scraping run.
type Params struct {
	Sites           []string
	SearchTerm      string
	Location        string
	ResultsWanted   int
	HoursOld        int
	IsRemote        bool
	ExperienceLevel string
}

// Scraper fans a search out to the requested boards and merges results.
type Scraper struct {
	boards  map[string]Board
	fetcher Fetcher
}

// Fetcher retrieves a URL's HTML. Satisfied by a thin wrapper over
// fetch.URL; injected so board parsers can be tested without a network.
type Fetcher func(ctx context.Context, url string) (string, error)

// HTTPFetcher fetches pages with the shared fetch defaults.
func HTTPFetcher(ctx context.Context, url string) (string, error) {
	result, err := fetch.URL(ctx, url, nil)
	if err != nil {
		return "", err
	}
	return result.HTML, nil
}

// New creates a Scraper with the default board set.
func New(fetcher Fetcher) *Scraper {
	if fetcher == nil {
		fetcher = HTTPFetcher
	}
	return &Scraper{
		boards: map[string]Board{
			"indeed":   &indeedBoard{},
			"linkedin": &linkedinBoard{},
			"remotive": &remotiveBoard{},
		},
		fetcher: fetcher,
	}
}

// SupportedSites lists the board names this scraper understands.
func (s *Scraper) SupportedSites() []string {
	names := make([]string, 0, len(s.boards))
	for name := range s.boards {
		names = append(names, name)
	}
	return names
}

// Scrape runs the search on every requested board concurrently and returns
// the merged, filtered results. Unknown sites are an error; a board that
// fails mid-run only loses its own results.
func (s *Scraper) Scrape(ctx context.Context, params Params) ([]Job, error) {
	if strings.TrimSpace(params.SearchTerm) == "" {
		return nil, fmt.Errorf("search_term is required")
	}

	boards := make([]Board, 0, len(params.Sites))
	for _, site := range params.Sites {
		b, ok := s.boards[strings.ToLower(site)]
		if !ok {
			return nil, fmt.Errorf("unsupported job site %q (supported: %s)",
				site, strings.Join(s.SupportedSites(), ", "))
		}
		boards = append(boards, b)
	}

	var mu sync.Mutex
	var jobs []Job

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrentBoards)
	for _, b := range boards {
		g.Go(func() error {
			url := b.SearchURL(params)
			html, err := s.fetcher(gctx, url)
			if err != nil {
				// One board failing should not sink the whole search.
				log.Printf("[scrape] %s fetch failed: %v", b.Name(), err)
				return nil
			}
			found, err := b.Parse(html)
			if err != nil {
				log.Printf("[scrape] %s parse failed: %v", b.Name(), err)
				return nil
			}
			mu.Lock()
			jobs = append(jobs, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	jobs = filterJobs(jobs, params)
	if params.ResultsWanted > 0 && len(jobs) > params.ResultsWanted {
		jobs = jobs[:params.ResultsWanted]
	}

	log.Printf("[scrape] %q in %q: %d jobs from %d boards",
		params.SearchTerm, params.Location, len(jobs), len(boards))
	return jobs, nil
}

// filterJobs applies remote and experience-level filters post-parse.
func filterJobs(jobs []Job, params Params) []Job {
	out := jobs[:0]
	for _, j := range jobs {
		if params.IsRemote && !j.Remote && !containsFold(j.Location, "remote") {
			continue
		}
		if params.ExperienceLevel != "" && !matchesExperience(j, params.ExperienceLevel) {
			continue
		}
		out = append(out, j)
	}
	return out
}

// matchesExperience mirrors the loose keyword filter the service has always
// applied: the level itself, or common entry-level phrasings.
func matchesExperience(j Job, level string) bool {
	haystack := j.Title + " " + j.Description
	for _, kw := range []string{level, "0-3 years", "entry level"} {
		if containsFold(haystack, kw) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// sinceHours formats a freshness cutoff for boards that support it.
func sinceHours(hoursOld int) time.Duration {
	if hoursOld <= 0 {
		return 72 * time.Hour
	}
	return time.Duration(hoursOld) * time.Hour
}
