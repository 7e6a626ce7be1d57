package discovery

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/jobtailor/internal/fetch"
)

// duckDuckGoEndpoint is the JavaScript-free HTML search frontend.
const duckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

// DuckDuckGoSearcher finds result URLs through DuckDuckGo's HTML frontend.
type DuckDuckGoSearcher struct {
	endpoint string
	opts     *fetch.Options
}

// NewDuckDuckGoSearcher creates a searcher with default fetch options.
func NewDuckDuckGoSearcher() *DuckDuckGoSearcher {
	return &DuckDuckGoSearcher{
		endpoint: duckDuckGoEndpoint,
		opts:     fetch.DefaultOptions(),
	}
}

// WithEndpoint overrides the search endpoint. Used by tests.
func (s *DuckDuckGoSearcher) WithEndpoint(url string) *DuckDuckGoSearcher {
	s.endpoint = url
	return s
}

// Search runs one query and returns up to maxResults result URLs.
func (s *DuckDuckGoSearcher) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	q := url.Values{}
	q.Set("q", query)

	result, err := fetch.URL(ctx, s.endpoint+"?"+q.Encode(), s.opts)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(result.HTML))
	if err != nil {
		return nil, err
	}

	var urls []string
	doc.Find("a.result__a, a.result__url").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		if resolved := resolveResultURL(href); resolved != "" {
			urls = append(urls, resolved)
		}
		return len(urls) < maxResults
	})

	return urls, nil
}

// resolveResultURL unwraps DuckDuckGo's redirect links (the target is in the
// uddg query parameter) and passes direct links through.
func resolveResultURL(href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	if parsed.Scheme == "http" || parsed.Scheme == "https" {
		return href
	}
	return ""
}
