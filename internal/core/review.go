package core

import "time"

// PublishedReview is the persistent record of one publication, keyed by
// request id and result content hash. It backs the publisher's idempotency
// guarantee and the prior-review lookups.
type PublishedReview struct {
	ID           int64     `db:"id" json:"id"`
	RequestID    string    `db:"request_id" json:"request_id"`
	RepoFullName string    `db:"repo_full_name" json:"repo_full_name"`
	PRNumber     int       `db:"pr_number" json:"pr_number"`
	HeadSHA      string    `db:"head_sha" json:"head_sha"`
	ContentHash  string    `db:"content_hash" json:"content_hash"`
	Summary      string    `db:"summary" json:"summary"`
	CommentCount int       `db:"comment_count" json:"comment_count"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
