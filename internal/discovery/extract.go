package discovery

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/jonathan/jobtailor/internal/llm"
	"github.com/jonathan/jobtailor/internal/schemas"
)

// maxPageContent caps the page text handed to the extraction prompt.
const maxPageContent = 12000

// minPageContent is the shortest page text worth sending to the LLM at all.
const minPageContent = 100

//go:embed jobs_schema.json
var jobsSchema string

const extractSystemPrompt = `You are a job data extractor. Extract job listings from webpage content.
Return ONLY valid JSON array. Each job object must have these fields:
- title: job title (string)
- company: company name (string)
- location: job location or "Remote" (string or null)
- description: brief job description (string, max 500 chars)
- apply_url: application URL if found, otherwise use source_url (string)
- salary_range: salary if mentioned (string or null)
- job_type: full-time/part-time/contract (string or null)
- requirements: list of key requirements (array of strings, max 5)
- confidence_score: how confident you are this is a real job 0.0-1.0 (number)

Return empty array [] if no relevant jobs found. No explanations.`

// extractJobs asks the LLM to pull structured listings out of page content
// and validates the reply against the embedded schema before trusting it.
func (s *Service) extractJobs(ctx context.Context, content, sourceURL, role string) ([]Job, error) {
	if len(content) < minPageContent {
		return nil, nil
	}
	if len(content) > maxPageContent {
		content = content[:maxPageContent]
	}

	user := fmt.Sprintf(`Extract job listings relevant to %q from this career page content.
Source URL: %s

Page Content:
%s

Return JSON array of jobs:`, role, sourceURL, content)

	out, err := s.withKey(ctx, extractSystemPrompt, user)
	if err != nil {
		return nil, err
	}

	cleaned := llm.CleanJSONBlock(out)
	if err := schemas.ValidateString(jobsSchema, cleaned); err != nil {
		return nil, fmt.Errorf("LLM output failed schema validation: %w", err)
	}

	var jobs []Job
	if err := json.Unmarshal([]byte(cleaned), &jobs); err != nil {
		return nil, fmt.Errorf("failed to parse extracted jobs: %w", err)
	}

	for i := range jobs {
		jobs[i].SourceURL = sourceURL
		if jobs[i].ApplyURL == "" {
			jobs[i].ApplyURL = sourceURL
		}
	}
	return jobs, nil
}
