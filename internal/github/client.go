// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v73/github"
	"golang.org/x/oauth2"
)

// ChangedFile holds the filename and patch data for a single file included
// in a pull request, plus the change counts the truncation policy ranks by.
type ChangedFile struct {
	Filename  string
	Patch     string
	Status    string
	Additions int
	Deletions int
}

// PriorComment is one existing comment on a pull request, either an issue
// comment (Path empty) or an inline review comment.
type PriorComment struct {
	Path   string
	Line   int
	Body   string
	Author string
}

// DraftReviewComment represents a single inline comment to be posted as part
// of a review.
type DraftReviewComment struct {
	Path      string
	StartLine int
	Line      int
	Body      string
}

// Client defines the set of GitHub API operations the review pipeline needs:
// reading pull request state and publishing reviews and check runs.
type Client interface {
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error)
	GetChangedFiles(ctx context.Context, owner, repo string, number int) ([]ChangedFile, error)
	ListPriorComments(ctx context.Context, owner, repo string, number int) ([]PriorComment, error)
	GetFileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error)
	CreateComment(ctx context.Context, owner, repo string, number int, body string) error
	CreateReview(ctx context.Context, owner, repo string, number int, body string, comments []DraftReviewComment) error
	CreateCheckRun(ctx context.Context, owner, repo string, opts github.CreateCheckRunOptions) (*github.CheckRun, error)
	UpdateCheckRun(ctx context.Context, owner, repo string, checkRunID int64, opts github.UpdateCheckRunOptions) (*github.CheckRun, error)
}

// IsNotFound reports whether err is a GitHub API 404 response.
func IsNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	if !errors.As(err, &ghErr) {
		return false
	}
	return ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}

type gitHubClient struct {
	client *github.Client
	logger *slog.Logger
}

// NewClient wraps the official go-github client to provide a focused,
// testable interface for application-specific GitHub operations.
func NewClient(client *github.Client, logger *slog.Logger) Client {
	return &gitHubClient{client: client, logger: logger}
}

// NewPATClient creates a GitHub client authenticated with a personal access
// token. Used by the CLI and local development where no App installation is
// available.
func NewPATClient(ctx context.Context, token string, logger *slog.Logger) Client {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	return &gitHubClient{client: github.NewClient(tc), logger: logger}
}

// GetPullRequest retrieves a single pull request by its number.
func (g *gitHubClient) GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	pr, _, err := g.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		g.logger.Error("failed to get pull request", "owner", owner, "repo", repo, "pr", number, "error", err)
		return nil, err
	}
	return pr, nil
}

// GetChangedFiles retrieves the list of files modified in a pull request.
// It handles pagination automatically to ensure all files are fetched from
// the GitHub API, which returns a maximum of 100 files per page.
func (g *gitHubClient) GetChangedFiles(ctx context.Context, owner, repo string, number int) ([]ChangedFile, error) {
	var allFiles []ChangedFile
	opts := &github.ListOptions{PerPage: 100}

	for {
		files, resp, err := g.client.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			g.logger.Error("failed to list files for pull request", "owner", owner, "repo", repo, "pr", number, "error", err)
			return nil, err
		}

		for _, file := range files {
			allFiles = append(allFiles, ChangedFile{
				Filename:  file.GetFilename(),
				Patch:     file.GetPatch(),
				Status:    file.GetStatus(),
				Additions: file.GetAdditions(),
				Deletions: file.GetDeletions(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allFiles, nil
}

// ListPriorComments fetches both the issue comments and the inline review
// comments already present on a pull request. The pipeline uses them as the
// duplicate-suppression history.
func (g *gitHubClient) ListPriorComments(ctx context.Context, owner, repo string, number int) ([]PriorComment, error) {
	var all []PriorComment

	issueOpts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		comments, resp, err := g.client.Issues.ListComments(ctx, owner, repo, number, issueOpts)
		if err != nil {
			g.logger.Error("failed to list issue comments", "owner", owner, "repo", repo, "pr", number, "error", err)
			return nil, err
		}
		for _, c := range comments {
			all = append(all, PriorComment{
				Body:   c.GetBody(),
				Author: c.GetUser().GetLogin(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		issueOpts.Page = resp.NextPage
	}

	reviewOpts := &github.PullRequestListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		comments, resp, err := g.client.PullRequests.ListComments(ctx, owner, repo, number, reviewOpts)
		if err != nil {
			g.logger.Error("failed to list review comments", "owner", owner, "repo", repo, "pr", number, "error", err)
			return nil, err
		}
		for _, c := range comments {
			all = append(all, PriorComment{
				Path:   c.GetPath(),
				Line:   c.GetLine(),
				Body:   c.GetBody(),
				Author: c.GetUser().GetLogin(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		reviewOpts.Page = resp.NextPage
	}

	return all, nil
}

// GetFileContent fetches the contents of a single file at the given ref.
// Used for the optional per-repository policy file.
func (g *gitHubClient) GetFileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	opts := &github.RepositoryContentGetOptions{Ref: ref}
	content, _, _, err := g.client.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return nil, err
	}
	text, err := content.GetContent()
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

// CreateComment creates a new comment on a pull request.
func (g *gitHubClient) CreateComment(ctx context.Context, owner, repo string, number int, body string) error {
	comment := &github.IssueComment{Body: &body}
	_, _, err := g.client.Issues.CreateComment(ctx, owner, repo, number, comment)
	if err != nil {
		g.logger.Error("failed to create comment", "owner", owner, "repo", repo, "pr", number, "error", err)
	}
	return err
}

// CreateReview creates a new pull request review with a summary body and
// line-specific comments.
func (g *gitHubClient) CreateReview(ctx context.Context, owner, repo string, number int, body string, comments []DraftReviewComment) error {
	var ghComments []*github.DraftReviewComment
	for _, c := range comments {
		comment := &github.DraftReviewComment{
			Path: github.Ptr(c.Path),
			Line: github.Ptr(c.Line),
			Body: github.Ptr(c.Body),
		}
		if c.StartLine > 0 && c.StartLine < c.Line {
			comment.StartLine = github.Ptr(c.StartLine)
		}
		ghComments = append(ghComments, comment)
	}

	reviewRequest := &github.PullRequestReviewRequest{
		Body:     &body,
		Event:    github.Ptr("COMMENT"),
		Comments: ghComments,
	}

	_, _, err := g.client.PullRequests.CreateReview(ctx, owner, repo, number, reviewRequest)
	if err != nil {
		g.logger.Error("failed to create pull request review", "owner", owner, "repo", repo, "pr", number, "error", err)
	}
	return err
}

// CreateCheckRun creates a new check run.
func (g *gitHubClient) CreateCheckRun(ctx context.Context, owner, repo string, opts github.CreateCheckRunOptions) (*github.CheckRun, error) {
	checkRun, _, err := g.client.Checks.CreateCheckRun(ctx, owner, repo, opts)
	if err != nil {
		g.logger.Error("failed to create check run", "owner", owner, "repo", repo, "error", err)
		return nil, err
	}
	return checkRun, nil
}

// UpdateCheckRun updates an existing check run.
func (g *gitHubClient) UpdateCheckRun(ctx context.Context, owner, repo string, checkRunID int64, opts github.UpdateCheckRunOptions) (*github.CheckRun, error) {
	checkRun, _, err := g.client.Checks.UpdateCheckRun(ctx, owner, repo, checkRunID, opts)
	if err != nil {
		g.logger.Error("failed to update check run", "owner", owner, "repo", repo, "checkRunID", checkRunID, "error", err)
	}
	return checkRun, err
}
