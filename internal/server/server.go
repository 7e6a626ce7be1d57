// Package server provides the HTTP REST API for the job tailoring service.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/jobtailor/internal/config"
	"github.com/jonathan/jobtailor/internal/discovery"
	"github.com/jonathan/jobtailor/internal/fetch"
	"github.com/jonathan/jobtailor/internal/history"
	"github.com/jonathan/jobtailor/internal/keypool"
	"github.com/jonathan/jobtailor/internal/llm"
	"github.com/jonathan/jobtailor/internal/pdfgen"
	"github.com/jonathan/jobtailor/internal/scraping"
	"github.com/jonathan/jobtailor/internal/server/ratelimit"
	"github.com/jonathan/jobtailor/internal/tailor"
)

// Tailorer generates tailored application documents.
type Tailorer interface {
	Tailor(ctx context.Context, req tailor.Request) (*tailor.Result, error)
}

// Discoverer finds jobs on the open web.
type Discoverer interface {
	Discover(ctx context.Context, req discovery.Request) (*discovery.Result, error)
}

// JobScraper searches the supported job boards.
type JobScraper interface {
	Scrape(ctx context.Context, params scraping.Params) ([]scraping.Job, error)
}

// Server represents the HTTP server.
type Server struct {
	httpServer  *http.Server
	pool        *keypool.Manager
	tailorer    Tailorer
	discoverer  Discoverer
	scraper     JobScraper
	store       *history.Store
	rateLimiter *ratelimit.Limiter

	// descFetcher retrieves a job posting's text when a tailor request
	// supplies a URL instead of an inline description. Injected in tests.
	descFetcher func(ctx context.Context, url string) (string, error)
}

// fetchJobDescription pulls the readable posting text from a job URL.
// ATS-hosted postings (greenhouse, lever, workday) get their platform's
// selectors; everything else falls back to the generic job-posting set.
func (s *Server) fetchJobDescription(ctx context.Context, url string) (string, error) {
	if s.descFetcher != nil {
		return s.descFetcher(ctx, url)
	}
	result, err := fetch.URL(ctx, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to fetch job posting: %w", err)
	}
	selectors := fetch.PlatformContentSelectors(fetch.DetectPlatform(url))
	text, err := fetch.ExtractMainText(result.HTML, selectors)
	if err != nil {
		return "", fmt.Errorf("failed to extract job posting text: %w", err)
	}
	return text, nil
}

// New wires the full service from configuration: the key pool, the LLM
// client, the PDF renderer, the scraping and discovery services and the
// optional run-history store.
func New(cfg *config.Config) (*Server, error) {
	pool, err := keypool.New(cfg.APIKeyList(),
		keypool.WithCooldown(cfg.Cooldown()),
		keypool.WithFailureThreshold(cfg.FailureThreshold),
	)
	if err != nil {
		return nil, err
	}

	client, err := llm.NewClient(cfg.Provider, llm.Options{
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout(),
	})
	if err != nil {
		return nil, err
	}

	store, err := history.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}

	var fetcher scraping.Fetcher
	if cfg.UseBrowser {
		fetcher = browserFallbackFetcher
	}

	s := &Server{
		pool:        pool,
		tailorer:    tailor.NewService(pool, client, pdfgen.NewChromeRenderer()),
		discoverer:  discovery.NewService(pool, client, nil, nil),
		scraper:     scraping.New(fetcher),
		store:       store,
		rateLimiter: ratelimit.NewLimiter(ratelimit.LoadConfig()),
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // tailoring runs the LLM and a headless browser
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// browserFallbackFetcher retries thin pages with a headless browser; SPA
// boards render their listings client-side.
func browserFallbackFetcher(ctx context.Context, url string) (string, error) {
	html, err := scraping.HTTPFetcher(ctx, url)
	if err == nil && !fetch.ShouldUseBrowser(html) {
		return html, nil
	}
	return fetch.BrowserSimple(ctx, url)
}

// Handler builds the route table wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api-keys/status", s.handleKeyStatus)
	mux.HandleFunc("GET /history", s.handleListHistory)
	mux.HandleFunc("GET /history/{id}", s.handleGetHistory)
	mux.HandleFunc("POST /scrape", s.handleScrape)
	mux.HandleFunc("POST /tailor-cv", s.handleTailorCV)
	mux.HandleFunc("POST /discover", s.handleDiscover)

	return s.withRateLimit(s.withLogging(s.withCORS(mux)))
}

// Start begins listening for requests and blocks until shutdown.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	s.store.Close()
	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging tags each request with an ID and logs its timing.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		log.Printf("[%s] %s %s %s", requestID, r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s %s completed in %v", requestID, r.Method, r.URL.Path, time.Since(start))
	})
}

// withRateLimit rejects clients that exceed their endpoint budget.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)
		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)

		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractClientID identifies a client by IP address.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	retryAfter := int(info.RetryAfter.Seconds()) + 1
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	s.jsonResponse(w, http.StatusTooManyRequests, map[string]any{
		"error":       "rate_limit_exceeded",
		"retry_after": retryAfter,
	})
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse maps an error to its HTTP status and writes it. Pool
// exhaustion carries a Retry-After header with the earliest recovery time.
func (s *Server) errorResponse(w http.ResponseWriter, err error) {
	if retryAfter, ok := keypool.IsNoKeysAvailable(err); ok {
		secs := int(retryAfter.Seconds()) + 1
		w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
		s.jsonResponse(w, http.StatusServiceUnavailable, map[string]any{
			"error":       "all API keys are cooling down",
			"retry_after": secs,
		})
		return
	}
	s.jsonResponse(w, HTTPStatus(err), map[string]string{"error": err.Error()})
}
