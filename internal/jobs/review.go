// Package jobs defines background tasks such as automated code reviews.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sevigo/reviewd/internal/config"
	"github.com/sevigo/reviewd/internal/core"
	"github.com/sevigo/reviewd/internal/github"
	"github.com/sevigo/reviewd/internal/llm"
	"github.com/sevigo/reviewd/internal/policy"
	"github.com/sevigo/reviewd/internal/prcontext"
	"github.com/sevigo/reviewd/internal/publisher"
)

// statusTimeout bounds the check-run update that reports a failed job.
const statusTimeout = 30 * time.Second

// ClientFactory creates a GitHub client for one installation. Injected so
// tests can substitute a fake platform.
type ClientFactory func(ctx context.Context, installationID int64) (github.Client, error)

// ReviewJob runs the full review pipeline for one request: build context,
// generate with backend fallback, parse and filter, publish. A failed
// request publishes nothing; the check run is the only failure signal.
type ReviewJob struct {
	cfg       *config.Config
	clients   ClientFactory
	prompts   *llm.PromptManager
	models    *llm.Dispatcher
	policy    *policy.Engine
	publisher *publisher.Publisher
	logger    *slog.Logger
}

// NewReviewJob creates a new ReviewJob.
func NewReviewJob(
	cfg *config.Config,
	clients ClientFactory,
	prompts *llm.PromptManager,
	models *llm.Dispatcher,
	pol *policy.Engine,
	pub *publisher.Publisher,
	logger *slog.Logger,
) core.Job {
	if cfg == nil {
		panic("config cannot be nil")
	}
	if clients == nil {
		panic("client factory cannot be nil")
	}
	if models == nil {
		panic("model dispatcher cannot be nil")
	}
	return &ReviewJob{
		cfg:       cfg,
		clients:   clients,
		prompts:   prompts,
		models:    models,
		policy:    pol,
		publisher: pub,
		logger:    logger,
	}
}

// Run executes the review pipeline for a given request. The whole run is
// bounded by the configured request deadline; on expiry it aborts with
// core.ErrRequestTimeout without partial publication.
func (j *ReviewJob) Run(ctx context.Context, req *core.ReviewRequest) error {
	if err := j.validateInputs(ctx, req); err != nil {
		j.logger.Error("input validation failed", "error", err)
		return fmt.Errorf("input validation failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, j.cfg.RequestTimeout)
	defer cancel()

	j.logger.Info("starting review job", "request_id", req.ID, "repo", req.RepoFullName, "pr", req.PRNumber)

	ghClient, err := j.clients(ctx, req.InstallationID)
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}

	if req.HeadSHA == "" {
		// Comment-triggered requests carry no SHA in the payload. The caller's
		// request stays untouched; the job works on a filled-in copy.
		pr, err := ghClient.GetPullRequest(ctx, req.RepoOwner, req.RepoName, req.PRNumber)
		if err != nil {
			return j.wrapTimeout(ctx, fmt.Errorf("failed to get PR details: %w", err))
		}
		filled := *req
		filled.HeadSHA = pr.GetHead().GetSHA()
		filled.BaseSHA = pr.GetBase().GetSHA()
		req = &filled
	}
	if req.HeadSHA == "" {
		return fmt.Errorf("PR %d has no valid head SHA", req.PRNumber)
	}

	statusUpdater := github.NewStatusUpdater(ghClient)
	checkRunID, err := statusUpdater.InProgress(ctx, req, "Code Review", "Review in progress...")
	if err != nil {
		return j.wrapTimeout(ctx, fmt.Errorf("failed to set in-progress status: %w", err))
	}

	result, err := j.review(ctx, ghClient, req)
	if err != nil {
		j.updateStatusOnError(statusUpdater, req, checkRunID, failureSummary(err))
		return j.wrapTimeout(ctx, err)
	}

	if err := j.publisher.Publish(ctx, ghClient, req, result); err != nil {
		j.updateStatusOnError(statusUpdater, req, checkRunID, "Failed to publish review")
		return j.wrapTimeout(ctx, err)
	}

	if err := statusUpdater.Completed(ctx, req, checkRunID, "success", "Review Complete", "Review finished successfully"); err != nil {
		j.logger.Error("failed to update completion status", "error", err)
		return fmt.Errorf("failed to update completion status: %w", err)
	}

	j.logger.Info("review job completed successfully", "request_id", req.ID, "repo", req.RepoFullName, "pr", req.PRNumber)
	return nil
}

// review runs the read-and-generate half of the pipeline: context assembly,
// model dispatch with fallback, parsing with a single strict re-prompt, and
// policy filtering.
func (j *ReviewJob) review(ctx context.Context, ghClient github.Client, req *core.ReviewRequest) (*core.ReviewResult, error) {
	pol := j.effectivePolicy(ctx, ghClient, req)

	builder := prcontext.NewBuilder(ghClient, j.cfg.TokenBudget, j.logger)
	rc, err := builder.Build(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to build review context: %w", err)
	}

	prompt, err := j.prompts.BuildReviewPrompt(llm.CodeReviewPrompt, req, rc)
	if err != nil {
		return nil, err
	}

	raw, backend, err := j.models.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	parsed, err := llm.ParseReview(raw)
	if errors.Is(err, core.ErrMalformedOutput) {
		// One re-prompt with stricter formatting instructions, then give up.
		j.logger.Warn("model output unparsable, re-prompting", "backend", backend)
		strictPrompt, perr := j.prompts.BuildReviewPrompt(llm.StrictReviewPrompt, req, rc)
		if perr != nil {
			return nil, perr
		}
		raw, backend, err = j.models.Generate(ctx, strictPrompt)
		if err != nil {
			return nil, err
		}
		parsed, err = llm.ParseReview(raw)
	}
	if err != nil {
		return nil, err
	}

	j.logger.Info("review generated",
		"request_id", req.ID,
		"backend", backend,
		"suggestions", len(parsed.Comments),
		"truncated", rc.Truncated,
	)

	return j.policy.Apply(pol, req, parsed.Summary, parsed.Comments, rc)
}

// fetchRepoPolicy reads the optional per-repository override file at the
// request's head SHA. A 404 from the contents API means the repository has
// no override and maps to config.ErrRepoPolicyNotFound.
func (j *ReviewJob) fetchRepoPolicy(ctx context.Context, ghClient github.Client, req *core.ReviewRequest) ([]byte, error) {
	data, err := ghClient.GetFileContent(ctx, req.RepoOwner, req.RepoName, config.RepoPolicyFile, req.HeadSHA)
	if github.IsNotFound(err) {
		return nil, config.ErrRepoPolicyNotFound
	}
	return data, err
}

// effectivePolicy merges the optional per-repository .reviewd.yml override
// into the process-wide policy. A missing or broken override falls back to
// the base policy.
func (j *ReviewJob) effectivePolicy(ctx context.Context, ghClient github.Client, req *core.ReviewRequest) config.PolicyConfig {
	data, err := j.fetchRepoPolicy(ctx, ghClient, req)
	switch {
	case errors.Is(err, config.ErrRepoPolicyNotFound):
		j.logger.Debug("no repo policy file", "repo", req.RepoFullName)
		return j.cfg.Policy
	case err != nil:
		j.logger.Warn("failed to fetch repo policy file", "repo", req.RepoFullName, "error", err)
		return j.cfg.Policy
	}
	override, err := config.ParseRepoPolicy(data)
	if err != nil {
		j.logger.Warn("ignoring invalid repo policy file", "repo", req.RepoFullName, "error", err)
		return j.cfg.Policy
	}
	j.logger.Debug("applying repo policy overrides", "repo", req.RepoFullName)
	return override.Merge(j.cfg.Policy)
}

// wrapTimeout maps a deadline expiry onto the request-timeout error so
// callers can distinguish it from component failures.
func (j *ReviewJob) wrapTimeout(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", core.ErrRequestTimeout, err)
	}
	return err
}

// validateInputs ensures the request contains all required fields.
func (j *ReviewJob) validateInputs(ctx context.Context, req *core.ReviewRequest) error {
	if ctx == nil {
		return fmt.Errorf("context cannot be nil")
	}
	if req == nil {
		return fmt.Errorf("request cannot be nil")
	}
	if req.ID == "" {
		return fmt.Errorf("request id cannot be empty")
	}
	if req.RepoOwner == "" {
		return fmt.Errorf("repository owner cannot be empty")
	}
	if req.RepoName == "" {
		return fmt.Errorf("repository name cannot be empty")
	}
	if req.PRNumber <= 0 {
		return fmt.Errorf("pull request number must be positive, got: %d", req.PRNumber)
	}
	return nil
}

func (j *ReviewJob) updateStatusOnError(statusUpdater github.StatusUpdater, req *core.ReviewRequest, checkRunID int64, message string) {
	// Use a fresh context: the request context may already be expired.
	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()
	if err := statusUpdater.Completed(ctx, req, checkRunID, "failure", "Review Failed", message); err != nil {
		j.logger.Error("failed to update failure status", "error", err)
	}
}

// failureSummary maps pipeline errors onto operator-facing check run text
// without leaking internals.
func failureSummary(err error) string {
	switch {
	case errors.Is(err, core.ErrContextTooLarge):
		return "Diff too large to review"
	case errors.Is(err, core.ErrAllBackendsExhausted):
		return "All model backends failed"
	case errors.Is(err, core.ErrMalformedOutput):
		return "Model produced unusable output"
	case errors.Is(err, core.ErrRequestTimeout):
		return "Review timed out"
	default:
		return "Failed to generate review"
	}
}
