// Package history provides optional PostgreSQL persistence for tailoring and
// discovery runs. The store is nil-safe: when no database is configured every
// method is a no-op, so callers never branch on whether history is enabled.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a PostgreSQL connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// TailorRun is one recorded tailoring request.
type TailorRun struct {
	ID        uuid.UUID
	JobTitle  string
	Company   string
	KeyMask   string
	Attempts  int
	Succeeded bool
	CreatedAt time.Time
}

// DiscoveryRun is one recorded discovery request.
type DiscoveryRun struct {
	ID             uuid.UUID
	Role           string
	Location       string
	JobsFound      int
	SourcesCrawled int
	CreatedAt      time.Time
}

// Connect establishes a connection pool and ensures the schema exists.
// An empty databaseURL returns a nil store, which disables history.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, nil
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// migrate creates the history tables when they do not exist yet.
func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tailor_runs (
			id UUID PRIMARY KEY,
			job_title TEXT NOT NULL,
			company TEXT NOT NULL DEFAULT '',
			key_mask TEXT NOT NULL DEFAULT '',
			attempts INT NOT NULL DEFAULT 0,
			succeeded BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS discovery_runs (
			id UUID PRIMARY KEY,
			role TEXT NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			jobs_found INT NOT NULL DEFAULT 0,
			sources_crawled INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to migrate history schema: %w", err)
	}
	return nil
}

// RecordTailorRun stores one tailoring request outcome and returns its ID.
// On a nil store it returns uuid.Nil with no error.
func (s *Store) RecordTailorRun(ctx context.Context, run TailorRun) (uuid.UUID, error) {
	if s == nil || s.pool == nil {
		return uuid.Nil, nil
	}

	id := uuid.New()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tailor_runs (id, job_title, company, key_mask, attempts, succeeded)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, run.JobTitle, run.Company, run.KeyMask, run.Attempts, run.Succeeded,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to record tailor run: %w", err)
	}
	return id, nil
}

// RecordDiscoveryRun stores one discovery request outcome and returns its ID.
// On a nil store it returns uuid.Nil with no error.
func (s *Store) RecordDiscoveryRun(ctx context.Context, run DiscoveryRun) (uuid.UUID, error) {
	if s == nil || s.pool == nil {
		return uuid.Nil, nil
	}

	id := uuid.New()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO discovery_runs (id, role, location, jobs_found, sources_crawled)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, run.Role, run.Location, run.JobsFound, run.SourcesCrawled,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to record discovery run: %w", err)
	}
	return id, nil
}

// ListTailorRuns returns the most recent tailoring runs, newest first.
func (s *Store) ListTailorRuns(ctx context.Context, limit int) ([]TailorRun, error) {
	if s == nil || s.pool == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, job_title, company, key_mask, attempts, succeeded, created_at
		 FROM tailor_runs
		 ORDER BY created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tailor runs: %w", err)
	}
	defer rows.Close()

	var runs []TailorRun
	for rows.Next() {
		var r TailorRun
		if err := rows.Scan(&r.ID, &r.JobTitle, &r.Company, &r.KeyMask, &r.Attempts, &r.Succeeded, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tailor run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetTailorRun retrieves one tailoring run by ID, or nil when not found.
func (s *Store) GetTailorRun(ctx context.Context, id uuid.UUID) (*TailorRun, error) {
	if s == nil || s.pool == nil {
		return nil, nil
	}

	var r TailorRun
	err := s.pool.QueryRow(ctx,
		`SELECT id, job_title, company, key_mask, attempts, succeeded, created_at
		 FROM tailor_runs WHERE id = $1`, id,
	).Scan(&r.ID, &r.JobTitle, &r.Company, &r.KeyMask, &r.Attempts, &r.Succeeded, &r.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tailor run: %w", err)
	}
	return &r, nil
}
