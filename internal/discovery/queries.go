package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/jonathan/jobtailor/internal/keypool"
	"github.com/jonathan/jobtailor/internal/llm"
)

// careerPagePatterns mark URLs that are likely direct career pages.
var careerPagePatterns = []string{
	"/careers",
	"/jobs",
	"/join",
	"/work-with-us",
	"/opportunities",
	"boards.greenhouse.io",
	"jobs.lever.co",
	"careers.smartrecruiters.com",
	"myworkdayjobs.com",
}

// excludedDomains are job aggregators; discovery targets direct company
// pages only.
var excludedDomains = []string{
	"indeed.com",
	"linkedin.com",
	"glassdoor.com",
	"ziprecruiter.com",
	"monster.com",
	"naukri.com",
	"dice.com",
}

// IsValidCareerURL reports whether a URL looks like a direct company career
// page rather than a job aggregator.
func IsValidCareerURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}

	host := strings.ToLower(parsed.Host)
	for _, excluded := range excludedDomains {
		if strings.Contains(host, excluded) {
			return false
		}
	}

	full := strings.ToLower(rawURL)
	for _, pattern := range careerPagePatterns {
		if strings.Contains(full, pattern) {
			return true
		}
	}
	for _, kw := range []string{"career", "job", "hiring", "join", "work"} {
		if strings.Contains(full, kw) {
			return true
		}
	}
	return false
}

const querySystemPrompt = `You are a search query optimizer. Generate effective search queries to find company career pages for job seekers.
Return ONLY a JSON array of 5-8 search query strings. No explanation.`

// generateQueries asks the LLM for search queries tuned to the candidate's
// profile, falling back to a deterministic set when the call fails for any
// reason other than pool exhaustion.
func (s *Service) generateQueries(ctx context.Context, req Request) ([]string, error) {
	skillStr := strings.Join(firstN(req.Skills, 5), ", ")

	user := fmt.Sprintf(`Generate search queries to find career pages for:
- Role: %s
- Skills: %s
- Location: %s
- Experience: %d years
- Include startups: %t
- Include enterprise: %t

Focus on finding direct company career pages, not job aggregators.
Include queries like:
- "[role] careers [location]"
- "[skill] company hiring"
- "startup hiring [role]"
- Site-specific: "site:greenhouse.io [role]"

Return JSON array of strings only.`,
		req.Role, skillStr, req.Location, req.ExperienceYears,
		req.IncludeStartups, req.IncludeEnterprise)

	out, err := s.withKey(ctx, querySystemPrompt, user)
	if err != nil {
		if _, exhausted := keypool.IsNoKeysAvailable(err); exhausted {
			return nil, err
		}
		log.Printf("[discover] LLM query generation failed, using fallback queries: %v", err)
		return fallbackQueries(req), nil
	}

	var queries []string
	if err := json.Unmarshal([]byte(llm.CleanJSONBlock(out)), &queries); err != nil || len(queries) == 0 {
		log.Printf("[discover] unparseable query list, using fallback queries")
		return fallbackQueries(req), nil
	}

	queries = append(queries, req.CustomSearchTerms...)
	return firstN(queries, 10), nil
}

// fallbackQueries is the deterministic query set used when the LLM cannot
// help.
func fallbackQueries(req Request) []string {
	queries := []string{
		fmt.Sprintf("%s careers %s", req.Role, req.Location),
		fmt.Sprintf("%s jobs company hiring", req.Role),
		fmt.Sprintf("site:greenhouse.io %s", req.Role),
		fmt.Sprintf("site:lever.co %s", req.Role),
	}
	if len(req.Skills) > 0 {
		queries = append(queries, fmt.Sprintf("%s developer jobs %s", req.Skills[0], req.Location))
	}
	return append(queries, req.CustomSearchTerms...)
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
