package scraping

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Board is one scrapeable job site.
type Board interface {
	// Name returns the site identifier used in requests.
	Name() string
	// SearchURL builds the listing-page URL for the given search.
	SearchURL(params Params) string
	// Parse extracts jobs from a listing page's HTML.
	Parse(html string) ([]Job, error)
}

// --- Indeed ---

type indeedBoard struct{}

func (b *indeedBoard) Name() string { return "indeed" }

func (b *indeedBoard) SearchURL(params Params) string {
	q := url.Values{}
	q.Set("q", params.SearchTerm)
	q.Set("l", params.Location)
	q.Set("fromage", fmt.Sprintf("%d", int(sinceHours(params.HoursOld).Hours()/24)))
	if params.IsRemote {
		q.Set("sc", "0kf:attr(DSQF7);")
	}
	return "https://www.indeed.com/jobs?" + q.Encode()
}

func (b *indeedBoard) Parse(html string) ([]Job, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Indeed HTML: %w", err)
	}

	var jobs []Job
	doc.Find("div.job_seen_beacon, div.jobsearch-SerpJobCard, [data-testid='slider_item']").Each(func(_ int, s *goquery.Selection) {
		title := textOf(s, "h2.jobTitle span, h2.jobTitle a, [data-testid='jobTitle']")
		if title == "" {
			return
		}
		href, _ := s.Find("h2.jobTitle a, a.jcs-JobTitle").Attr("href")
		job := Job{
			Title:    title,
			Company:  textOf(s, "[data-testid='company-name'], span.companyName"),
			Location: textOf(s, "[data-testid='text-location'], div.companyLocation"),
			Salary:   textOf(s, "[data-testid='attribute_snippet_salary'], .salary-snippet"),
			PostedAt: textOf(s, "[data-testid='myJobsStateDate'], span.date"),
			URL:      absoluteURL("https://www.indeed.com", href),
			Site:     b.Name(),
		}
		snippet := textOf(s, ".job-snippet, [data-testid='jobsnippet_footer']")
		job.Description = snippet
		job.Remote = containsFold(job.Location+" "+snippet, "remote")
		jobs = append(jobs, job)
	})
	return jobs, nil
}

// --- LinkedIn (public guest listing pages) ---

type linkedinBoard struct{}

func (b *linkedinBoard) Name() string { return "linkedin" }

func (b *linkedinBoard) SearchURL(params Params) string {
	q := url.Values{}
	q.Set("keywords", params.SearchTerm)
	q.Set("location", params.Location)
	q.Set("f_TPR", fmt.Sprintf("r%d", int(sinceHours(params.HoursOld).Seconds())))
	if params.IsRemote {
		q.Set("f_WT", "2")
	}
	return "https://www.linkedin.com/jobs/search?" + q.Encode()
}

func (b *linkedinBoard) Parse(html string) ([]Job, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse LinkedIn HTML: %w", err)
	}

	var jobs []Job
	doc.Find("div.base-card, li div.base-search-card").Each(func(_ int, s *goquery.Selection) {
		title := textOf(s, "h3.base-search-card__title")
		if title == "" {
			return
		}
		href, _ := s.Find("a.base-card__full-link").Attr("href")
		job := Job{
			Title:    title,
			Company:  textOf(s, "h4.base-search-card__subtitle, a.hidden-nested-link"),
			Location: textOf(s, "span.job-search-card__location"),
			PostedAt: textOf(s, "time.job-search-card__listdate"),
			URL:      href,
			Site:     b.Name(),
		}
		job.Remote = containsFold(job.Location, "remote")
		jobs = append(jobs, job)
	})
	return jobs, nil
}

// --- Remotive (remote-only board, simple static markup) ---

type remotiveBoard struct{}

func (b *remotiveBoard) Name() string { return "remotive" }

func (b *remotiveBoard) SearchURL(params Params) string {
	q := url.Values{}
	q.Set("query", params.SearchTerm)
	return "https://remotive.com/remote-jobs/search?" + q.Encode()
}

func (b *remotiveBoard) Parse(html string) ([]Job, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Remotive HTML: %w", err)
	}

	var jobs []Job
	doc.Find("li.job-tile, div.job-tile").Each(func(_ int, s *goquery.Selection) {
		title := textOf(s, ".job-tile-title, a.job-link span")
		if title == "" {
			return
		}
		href, _ := s.Find("a.job-link, a").Attr("href")
		jobs = append(jobs, Job{
			Title:    title,
			Company:  textOf(s, ".job-tile-company, .company"),
			Location: "Remote",
			URL:      absoluteURL("https://remotive.com", href),
			Site:     b.Name(),
			Remote:   true,
		})
	})
	return jobs, nil
}

// textOf returns the trimmed text of the first match under s.
func textOf(s *goquery.Selection, selector string) string {
	return strings.TrimSpace(s.Find(selector).First().Text())
}

// absoluteURL resolves href against base when it is relative.
func absoluteURL(base, href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(href, "/")
}
