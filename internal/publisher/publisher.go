// Package publisher posts review results back to the hosting platform,
// exactly once per result. Idempotency is keyed by request id plus result
// content hash, so re-delivery of the same webhook event does not
// double-post.
package publisher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sevigo/reviewd/internal/core"
	"github.com/sevigo/reviewd/internal/github"
	"github.com/sevigo/reviewd/internal/storage"
)

// Publisher publishes validated review results. The publication record in
// the store is the only mutable state shared across requests; access to one
// (request id, content hash) key is serialized by a keyed mutex.
type Publisher struct {
	store  storage.Store
	locks  *keyedMutex
	logger *slog.Logger
}

// NewPublisher creates a publisher backed by the given publication store.
func NewPublisher(store storage.Store, logger *slog.Logger) *Publisher {
	return &Publisher{
		store:  store,
		locks:  newKeyedMutex(),
		logger: logger,
	}
}

// Publish posts the result to the pull request unless an identical result
// for the same request was already published. Platform rejections are
// wrapped in core.ErrPublishRejected and must not be retried automatically;
// persistent permission failures would otherwise spam the PR.
func (p *Publisher) Publish(ctx context.Context, gh github.Client, req *core.ReviewRequest, result *core.ReviewResult) error {
	if err := result.ValidateDedupe(); err != nil {
		return fmt.Errorf("refusing to publish invalid result: %w", err)
	}
	if result.Summary == "" && len(result.Comments) == 0 {
		p.logger.Info("empty review result, nothing to publish",
			"repo", req.RepoFullName, "pr", req.PRNumber)
		return nil
	}

	hash := result.ContentHash()
	key := req.ID + ":" + hash
	unlock := p.locks.Lock(key)
	defer unlock()

	published, err := p.store.WasPublished(ctx, req.ID, hash)
	if err != nil {
		return fmt.Errorf("failed to check idempotency record: %w", err)
	}
	if published {
		p.logger.Info("result already published, skipping",
			"repo", req.RepoFullName, "pr", req.PRNumber, "content_hash", hash)
		return nil
	}

	if err := p.post(ctx, gh, req, result); err != nil {
		return fmt.Errorf("%w: %w", core.ErrPublishRejected, err)
	}

	rec := &core.PublishedReview{
		RequestID:    req.ID,
		RepoFullName: req.RepoFullName,
		PRNumber:     req.PRNumber,
		HeadSHA:      req.HeadSHA,
		ContentHash:  hash,
		Summary:      result.Summary,
		CommentCount: len(result.Comments),
	}
	if err := p.store.RecordPublication(ctx, rec); err != nil {
		// The review is live but the record failed; a re-delivery could now
		// double-post. Surface loudly rather than failing the request.
		p.logger.Error("published review but failed to record it",
			"repo", req.RepoFullName, "pr", req.PRNumber, "error", err)
	}

	p.logger.Info("review published",
		"repo", req.RepoFullName,
		"pr", req.PRNumber,
		"comments", len(result.Comments),
		"content_hash", hash,
	)
	return nil
}

func (p *Publisher) post(ctx context.Context, gh github.Client, req *core.ReviewRequest, result *core.ReviewResult) error {
	if len(result.Comments) == 0 {
		return gh.CreateComment(ctx, req.RepoOwner, req.RepoName, req.PRNumber, result.Summary)
	}

	drafts := make([]github.DraftReviewComment, 0, len(result.Comments))
	for _, c := range result.Comments {
		drafts = append(drafts, github.DraftReviewComment{
			Path:      c.Path,
			StartLine: c.StartLine,
			Line:      c.Line,
			Body:      formatCommentBody(c),
		})
	}
	return gh.CreateReview(ctx, req.RepoOwner, req.RepoName, req.PRNumber, result.Summary, drafts)
}

// formatCommentBody prefixes the body with severity and category badges.
func formatCommentBody(c core.Comment) string {
	badge := fmt.Sprintf("**[%s]**", c.Severity)
	if c.Category != "" {
		badge += fmt.Sprintf(" *%s*", c.Category)
	}
	return badge + "\n\n" + c.Body
}
