package server

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/jobtailor/internal/discovery"
	"github.com/jonathan/jobtailor/internal/history"
	"github.com/jonathan/jobtailor/internal/keypool"
	"github.com/jonathan/jobtailor/internal/scraping"
	"github.com/jonathan/jobtailor/internal/tailor"
)

// ScrapeResponse is the reply for POST /scrape.
type ScrapeResponse struct {
	Jobs  []scraping.Job `json:"jobs"`
	Count int            `json:"count"`
}

// TailorResponse is the reply for POST /tailor-cv. PDF bytes are
// base64-encoded by the JSON encoder.
type TailorResponse struct {
	CVText          string `json:"cv_text"`
	CoverLetterText string `json:"cover_letter_text"`
	CVPDF           []byte `json:"cv_pdf"`
	CoverLetterPDF  []byte `json:"cover_letter_pdf"`
	KeyUsed         string `json:"key_used"`
	Attempts        int    `json:"attempts"`
}

// DiscoverResponse is the reply for POST /discover.
type DiscoverResponse struct {
	Jobs           []discovery.Job `json:"jobs"`
	Count          int             `json:"count"`
	QueriesUsed    []string        `json:"queries_used"`
	SourcesCrawled int             `json:"sources_crawled"`
	Errors         []string        `json:"errors,omitempty"`
}

// handleRoot describes the service.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"service": "jobtailor",
		"endpoints": []string{
			"GET /health",
			"GET /api-keys/status",
			"GET /history",
			"POST /scrape",
			"POST /tailor-cv",
			"POST /discover",
		},
	})
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// KeyStatusEntry is one key's health in the GET /api-keys/status reply.
type KeyStatusEntry struct {
	Key                      string `json:"key"` // masked
	State                    string `json:"state"`
	ConsecutiveFailures      int    `json:"consecutive_failures"`
	CooldownRemainingSeconds int    `json:"cooldown_remaining_seconds"`
}

// handleKeyStatus reports the health of every key in the pool, masked.
func (s *Server) handleKeyStatus(w http.ResponseWriter, _ *http.Request) {
	statuses := s.pool.Status()
	available := 0
	keys := make([]KeyStatusEntry, 0, len(statuses))
	for _, st := range statuses {
		if st.State == keypool.StateAvailable {
			available++
		}
		keys = append(keys, KeyStatusEntry{
			Key:                      st.Key,
			State:                    string(st.State),
			ConsecutiveFailures:      st.ConsecutiveFailures,
			CooldownRemainingSeconds: int(st.CooldownRemaining.Seconds()),
		})
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"keys":      keys,
		"total":     len(keys),
		"available": available,
	})
}

// handleScrape searches the supported job boards.
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := decodeRequest(r, &req); err != nil {
		s.errorResponse(w, err)
		return
	}

	sites := req.Sites
	if len(sites) == 0 {
		sites = []string{"indeed", "linkedin"}
	}

	jobs, err := s.scraper.Scrape(r.Context(), scraping.Params{
		Sites:           sites,
		SearchTerm:      req.SearchTerm,
		Location:        req.Location,
		ResultsWanted:   req.ResultsWanted,
		HoursOld:        req.HoursOld,
		IsRemote:        req.IsRemote,
		ExperienceLevel: req.ExperienceLevel,
	})
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, ScrapeResponse{Jobs: jobs, Count: len(jobs)})
}

// handleTailorCV generates a tailored CV and cover letter as PDFs.
func (s *Server) handleTailorCV(w http.ResponseWriter, r *http.Request) {
	var req TailorRequest
	if err := decodeRequest(r, &req); err != nil {
		s.errorResponse(w, err)
		return
	}

	description := req.JobDescription
	if description == "" {
		fetched, err := s.fetchJobDescription(r.Context(), req.JobURL)
		if err != nil {
			s.errorResponse(w, &ErrValidation{Field: "job_url", Message: err.Error()})
			return
		}
		description = fetched
	}

	result, err := s.tailorer.Tailor(r.Context(), tailor.Request{
		JobTitle:    req.JobTitle,
		Company:     req.Company,
		Description: description,
		CVTemplate:  req.CVTemplate,
	})

	s.recordTailorRun(r, req, result, err)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, TailorResponse{
		CVText:          result.CVText,
		CoverLetterText: result.CoverLetterText,
		CVPDF:           result.CVPDF,
		CoverLetterPDF:  result.CoverLetterPDF,
		KeyUsed:         result.KeyUsed,
		Attempts:        result.Attempts,
	})
}

// handleDiscover finds jobs on the open web matching a candidate profile.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	var req DiscoverRequest
	if err := decodeRequest(r, &req); err != nil {
		s.errorResponse(w, err)
		return
	}

	result, err := s.discoverer.Discover(r.Context(), discovery.Request{
		Role:              req.Role,
		ExperienceYears:   req.ExperienceYears,
		Skills:            req.Skills,
		Location:          req.Location,
		MaxResults:        req.MaxResults,
		IncludeStartups:   req.IncludeStartups,
		IncludeEnterprise: req.IncludeEnterprise,
		CustomSearchTerms: req.CustomSearchTerms,
	})
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	if s.store != nil {
		if _, herr := s.store.RecordDiscoveryRun(r.Context(), history.DiscoveryRun{
			Role:           req.Role,
			Location:       req.Location,
			JobsFound:      len(result.Jobs),
			SourcesCrawled: result.SourcesCrawled,
		}); herr != nil {
			log.Printf("failed to record discovery run: %v", herr)
		}
	}

	s.jsonResponse(w, http.StatusOK, DiscoverResponse{
		Jobs:           result.Jobs,
		Count:          len(result.Jobs),
		QueriesUsed:    result.QueriesUsed,
		SourcesCrawled: result.SourcesCrawled,
		Errors:         result.Errors,
	})
}

// HistoryEntry is one recorded tailoring run in the GET /history reply.
type HistoryEntry struct {
	ID        string `json:"id"`
	JobTitle  string `json:"job_title"`
	Company   string `json:"company,omitempty"`
	KeyUsed   string `json:"key_used,omitempty"` // masked
	Attempts  int    `json:"attempts"`
	Succeeded bool   `json:"succeeded"`
	CreatedAt string `json:"created_at"`
}

func historyEntry(run history.TailorRun) HistoryEntry {
	return HistoryEntry{
		ID:        run.ID.String(),
		JobTitle:  run.JobTitle,
		Company:   run.Company,
		KeyUsed:   run.KeyMask,
		Attempts:  run.Attempts,
		Succeeded: run.Succeeded,
		CreatedAt: run.CreatedAt.Format(time.RFC3339),
	}
}

// handleListHistory returns the most recent tailoring runs, newest first.
// With history disabled the list is empty rather than an error.
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 200 {
			s.errorResponse(w, &ErrValidation{Field: "limit", Message: "must be an integer in [1, 200]"})
			return
		}
		limit = n
	}

	runs, err := s.store.ListTailorRuns(r.Context(), limit)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	entries := make([]HistoryEntry, 0, len(runs))
	for _, run := range runs {
		entries = append(entries, historyEntry(run))
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"runs":  entries,
		"count": len(entries),
	})
}

// handleGetHistory returns one recorded tailoring run by ID.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, &ErrValidation{Field: "id", Message: "must be a UUID"})
		return
	}

	run, err := s.store.GetTailorRun(r.Context(), id)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	if run == nil {
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	s.jsonResponse(w, http.StatusOK, historyEntry(*run))
}

// recordTailorRun persists the outcome of a tailoring request when history
// is enabled. History failures are logged, never surfaced to the client.
func (s *Server) recordTailorRun(r *http.Request, req TailorRequest, result *tailor.Result, tailorErr error) {
	if s.store == nil {
		return
	}
	run := history.TailorRun{
		JobTitle:  req.JobTitle,
		Company:   req.Company,
		Succeeded: tailorErr == nil,
	}
	if result != nil {
		run.KeyMask = result.KeyUsed
		run.Attempts = result.Attempts
	}
	if _, err := s.store.RecordTailorRun(r.Context(), run); err != nil {
		log.Printf("failed to record tailor run: %v", err)
	}
}
