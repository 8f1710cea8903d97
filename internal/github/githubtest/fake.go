// Package githubtest provides a configurable in-memory fake of the GitHub
// client interface for tests.
package githubtest

import (
	"context"
	"net/http"
	"sync"

	gh "github.com/google/go-github/v73/github"

	"github.com/sevigo/reviewd/internal/github"
)

// PostedReview records one CreateReview call.
type PostedReview struct {
	Owner    string
	Repo     string
	Number   int
	Body     string
	Comments []github.DraftReviewComment
}

// FakeClient implements github.Client. Zero-value fields fall back to benign
// defaults; override the function fields to steer behavior. All mutations
// are recorded and safe for concurrent use.
type FakeClient struct {
	mu sync.Mutex

	PR           *gh.PullRequest
	ChangedFiles []github.ChangedFile
	Prior        []github.PriorComment
	FileContents map[string][]byte

	GetPullRequestErr   error
	GetChangedFilesErr  error
	ListPriorErr        error
	CreateCommentErr    error
	CreateReviewErr     error
	GetFileContentErr   error
	CreateCheckRunErr   error
	UpdateCheckRunErr   error
	PostedReviews       []PostedReview
	PostedComments      []string
	CheckRunHeadSHAs    []string
	CheckRunConclusions []string
}

var _ github.Client = (*FakeClient)(nil)

func (f *FakeClient) GetPullRequest(_ context.Context, _, _ string, _ int) (*gh.PullRequest, error) {
	if f.GetPullRequestErr != nil {
		return nil, f.GetPullRequestErr
	}
	if f.PR != nil {
		return f.PR, nil
	}
	return &gh.PullRequest{
		Head: &gh.PullRequestBranch{SHA: gh.Ptr("headsha")},
		Base: &gh.PullRequestBranch{SHA: gh.Ptr("basesha")},
	}, nil
}

func (f *FakeClient) GetChangedFiles(_ context.Context, _, _ string, _ int) ([]github.ChangedFile, error) {
	if f.GetChangedFilesErr != nil {
		return nil, f.GetChangedFilesErr
	}
	return f.ChangedFiles, nil
}

func (f *FakeClient) ListPriorComments(_ context.Context, _, _ string, _ int) ([]github.PriorComment, error) {
	if f.ListPriorErr != nil {
		return nil, f.ListPriorErr
	}
	return f.Prior, nil
}

func (f *FakeClient) GetFileContent(_ context.Context, _, _, path, _ string) ([]byte, error) {
	if f.GetFileContentErr != nil {
		return nil, f.GetFileContentErr
	}
	if data, ok := f.FileContents[path]; ok {
		return data, nil
	}
	return nil, &gh.ErrorResponse{
		Response: &http.Response{StatusCode: http.StatusNotFound},
		Message:  "Not Found",
	}
}

func (f *FakeClient) CreateComment(_ context.Context, _, _ string, _ int, body string) error {
	if f.CreateCommentErr != nil {
		return f.CreateCommentErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PostedComments = append(f.PostedComments, body)
	return nil
}

func (f *FakeClient) CreateReview(_ context.Context, owner, repo string, number int, body string, comments []github.DraftReviewComment) error {
	if f.CreateReviewErr != nil {
		return f.CreateReviewErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PostedReviews = append(f.PostedReviews, PostedReview{
		Owner:    owner,
		Repo:     repo,
		Number:   number,
		Body:     body,
		Comments: comments,
	})
	return nil
}

func (f *FakeClient) CreateCheckRun(_ context.Context, _, _ string, opts gh.CreateCheckRunOptions) (*gh.CheckRun, error) {
	if f.CreateCheckRunErr != nil {
		return nil, f.CreateCheckRunErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CheckRunHeadSHAs = append(f.CheckRunHeadSHAs, opts.HeadSHA)
	return &gh.CheckRun{ID: gh.Ptr(int64(1))}, nil
}

func (f *FakeClient) UpdateCheckRun(_ context.Context, _, _ string, _ int64, opts gh.UpdateCheckRunOptions) (*gh.CheckRun, error) {
	if f.UpdateCheckRunErr != nil {
		return nil, f.UpdateCheckRunErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if opts.Conclusion != nil {
		f.CheckRunConclusions = append(f.CheckRunConclusions, *opts.Conclusion)
	}
	return &gh.CheckRun{}, nil
}

// Reviews returns a copy of the recorded CreateReview calls.
func (f *FakeClient) Reviews() []PostedReview {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]PostedReview, len(f.PostedReviews))
	copy(out, f.PostedReviews)
	return out
}
