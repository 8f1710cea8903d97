// Package storage persists publication records. The table backs the
// publisher's idempotency guarantee and the prior-review lookups used by the
// CLI.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	// import db drivers
	_ "github.com/lib/pq"

	"github.com/sevigo/reviewd/internal/core"
)

// ErrNotFound is returned when no matching record exists.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for all database operations.
type Store interface {
	// RecordPublication persists one publication. Inserting the same
	// (request id, content hash) pair twice is a no-op, so the record can be
	// written concurrently with webhook re-deliveries.
	RecordPublication(ctx context.Context, rec *core.PublishedReview) error
	// WasPublished reports whether a result with this request id and content
	// hash has already been published.
	WasPublished(ctx context.Context, requestID, contentHash string) (bool, error)
	// LatestForPR returns the most recent publication for a pull request, or
	// ErrNotFound.
	LatestForPR(ctx context.Context, repoFullName string, prNumber int) (*core.PublishedReview, error)
}

type postgresStore struct {
	db *sqlx.DB
}

// NewStore creates a Postgres-backed Store.
func NewStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

func (s *postgresStore) RecordPublication(ctx context.Context, rec *core.PublishedReview) error {
	query := `
		INSERT INTO published_reviews
			(request_id, repo_full_name, pr_number, head_sha, content_hash, summary, comment_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (request_id, content_hash) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query,
		rec.RequestID, rec.RepoFullName, rec.PRNumber, rec.HeadSHA,
		rec.ContentHash, rec.Summary, rec.CommentCount, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record publication: %w", err)
	}
	return nil
}

func (s *postgresStore) WasPublished(ctx context.Context, requestID, contentHash string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM published_reviews WHERE request_id = $1 AND content_hash = $2)`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, requestID, contentHash).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check publication record: %w", err)
	}
	return exists, nil
}

func (s *postgresStore) LatestForPR(ctx context.Context, repoFullName string, prNumber int) (*core.PublishedReview, error) {
	query := `
		SELECT id, request_id, repo_full_name, pr_number, head_sha, content_hash, summary, comment_count, created_at
		FROM published_reviews
		WHERE repo_full_name = $1 AND pr_number = $2
		ORDER BY created_at DESC
		LIMIT 1`

	var rec core.PublishedReview
	if err := s.db.GetContext(ctx, &rec, query, repoFullName, prNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no review for %s#%d", ErrNotFound, repoFullName, prNumber)
		}
		return nil, err
	}
	return &rec, nil
}
