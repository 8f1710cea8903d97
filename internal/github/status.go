// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v73/github"

	"github.com/sevigo/reviewd/internal/core"
)

// StatusUpdater defines the contract for reporting review progress through
// GitHub Check Runs. A failed review never posts comments; the check run is
// the only operator-visible signal.
type StatusUpdater interface {
	InProgress(ctx context.Context, req *core.ReviewRequest, title, summary string) (int64, error)
	Completed(ctx context.Context, req *core.ReviewRequest, checkRunID int64, conclusion, title, summary string) error
}

type statusUpdater struct {
	client Client
}

// NewStatusUpdater creates and returns a new instance of a statusUpdater.
func NewStatusUpdater(client Client) StatusUpdater {
	return &statusUpdater{client: client}
}

// InProgress creates a new GitHub Check Run with an "in_progress" status.
func (s *statusUpdater) InProgress(ctx context.Context, req *core.ReviewRequest, title, summary string) (int64, error) {
	opts := github.CreateCheckRunOptions{
		Name:    "Reviewd",
		HeadSHA: req.HeadSHA,
		Status:  github.Ptr("in_progress"),
		Output: &github.CheckRunOutput{
			Title:   &title,
			Summary: &summary,
		},
	}
	checkRun, err := s.client.CreateCheckRun(ctx, req.RepoOwner, req.RepoName, opts)
	if err != nil {
		return 0, fmt.Errorf("failed to create check run: %w", err)
	}
	return checkRun.GetID(), nil
}

// Completed updates an existing GitHub Check Run to a "completed" status.
func (s *statusUpdater) Completed(ctx context.Context, req *core.ReviewRequest, checkRunID int64, conclusion, title, summary string) error {
	now := time.Now()
	opts := github.UpdateCheckRunOptions{
		Status:      github.Ptr("completed"),
		Conclusion:  &conclusion,
		CompletedAt: &github.Timestamp{Time: now},
		Output: &github.CheckRunOutput{
			Title:   &title,
			Summary: &summary,
		},
	}
	_, err := s.client.UpdateCheckRun(ctx, req.RepoOwner, req.RepoName, checkRunID, opts)
	return err
}
