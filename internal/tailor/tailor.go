// Package tailor orchestrates CV and cover letter generation: it borrows a
// credential from the key pool, calls the AI provider, reports the outcome
// back, and renders the results to PDF.
package tailor

import (
	"context"
	"fmt"
	"log"

	"github.com/jonathan/jobtailor/internal/keypool"
	"github.com/jonathan/jobtailor/internal/llm"
	"github.com/jonathan/jobtailor/internal/pdfgen"
)

// Request describes one tailoring job.
type Request struct {
	JobTitle    string
	Company     string
	Description string
	CVTemplate  string // empty means DefaultCVTemplate
}

// Result is a completed tailoring run.
type Result struct {
	CVText          string
	CoverLetterText string
	CVPDF           []byte
	CoverLetterPDF  []byte
	KeyUsed         string // masked
	Attempts        int
}

// Service ties the key pool, the LLM client and the PDF renderer together.
type Service struct {
	pool     *keypool.Manager
	client   llm.Client
	renderer pdfgen.Renderer
}

// NewService creates a tailoring service.
func NewService(pool *keypool.Manager, client llm.Client, renderer pdfgen.Renderer) *Service {
	return &Service{pool: pool, client: client, renderer: renderer}
}

// Tailor generates a tailored CV and cover letter for the request. Each
// attempt borrows a key from the pool and reports the call's outcome back;
// a rate-limited key is benched and the next key is tried, up to one attempt
// per key in the pool. The pool's exhaustion error (with its retry hint)
// passes through to the caller.
func (s *Service) Tailor(ctx context.Context, req Request) (*Result, error) {
	cvTemplate := req.CVTemplate
	if cvTemplate == "" {
		cvTemplate = DefaultCVTemplate
	}

	maxAttempts := s.pool.Size()
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		key, err := s.pool.Acquire()
		if err != nil {
			return nil, err
		}

		log.Printf("[tailor] attempt %d/%d using key %s", attempt, maxAttempts, keypool.Mask(key))

		cvText, clText, err := s.generate(ctx, req, cvTemplate, key)
		if err != nil {
			rateLimited := llm.IsRateLimited(err)
			s.pool.ReportFailure(key, rateLimited)
			lastErr = err
			if rateLimited {
				log.Printf("[tailor] key %s rate limited, trying next key", keypool.Mask(key))
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		s.pool.ReportSuccess(key)

		cvPDF, err := s.renderer.Render(ctx, cvText, "CV_"+req.JobTitle)
		if err != nil {
			return nil, fmt.Errorf("failed to render CV PDF: %w", err)
		}
		clPDF, err := s.renderer.Render(ctx, clText, "CoverLetter_"+req.JobTitle)
		if err != nil {
			return nil, fmt.Errorf("failed to render cover letter PDF: %w", err)
		}

		return &Result{
			CVText:          cvText,
			CoverLetterText: clText,
			CVPDF:           cvPDF,
			CoverLetterPDF:  clPDF,
			KeyUsed:         keypool.Mask(key),
			Attempts:        attempt,
		}, nil
	}

	return nil, fmt.Errorf("failed to generate after %d attempts: %w", maxAttempts, lastErr)
}

// generate produces the tailored CV and cover letter with one key. The CV is
// generated first; the key is only considered successful if both calls pass.
func (s *Service) generate(ctx context.Context, req Request, cvTemplate, key string) (cvText, clText string, err error) {
	cvSystem, cvUser := CVPrompt(cvTemplate, req.JobTitle, req.Company, req.Description)
	cvText, err = s.client.Generate(ctx, cvSystem, cvUser, key)
	if err != nil {
		return "", "", fmt.Errorf("CV generation failed: %w", err)
	}

	clSystem, clUser := CoverLetterPrompt(cvTemplate, req.JobTitle, req.Company, req.Description)
	clText, err = s.client.Generate(ctx, clSystem, clUser, key)
	if err != nil {
		return "", "", fmt.Errorf("cover letter generation failed: %w", err)
	}

	return cvText, clText, nil
}
