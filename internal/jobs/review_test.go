package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/reviewd/internal/config"
	"github.com/sevigo/reviewd/internal/core"
	"github.com/sevigo/reviewd/internal/github"
	"github.com/sevigo/reviewd/internal/github/githubtest"
	"github.com/sevigo/reviewd/internal/llm"
	"github.com/sevigo/reviewd/internal/policy"
	"github.com/sevigo/reviewd/internal/publisher"
	"github.com/sevigo/reviewd/internal/storage"
)

// scriptedBackend serves canned responses in call order, or hangs until the
// attempt deadline when block is set.
type scriptedBackend struct {
	name    string
	timeout time.Duration
	block   bool
	outputs []string

	mu    sync.Mutex
	calls int
}

func (s *scriptedBackend) Name() string { return s.name }

func (s *scriptedBackend) Timeout() time.Duration {
	if s.timeout == 0 {
		return time.Second
	}
	return s.timeout
}

func (s *scriptedBackend) Generate(ctx context.Context, _ string) (string, error) {
	s.mu.Lock()
	call := s.calls
	s.calls++
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return "", &core.BackendError{Backend: s.name, Kind: core.Retryable, Err: ctx.Err()}
	}
	if call >= len(s.outputs) {
		call = len(s.outputs) - 1
	}
	return s.outputs[call], nil
}

const goodModelOutput = `# Review Summary
Found two problems worth fixing.

# Suggestions

## Suggestion [a.go:2]
**Severity:** High
**Category:** Bug

The returned error is ignored.

## Suggestion [b.go:2]
**Severity:** Medium

This helper duplicates an existing one.
`

func reviewTestFixture(t *testing.T, backends []llm.Backend) (*githubtest.FakeClient, core.Job) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fake := &githubtest.FakeClient{
		ChangedFiles: []github.ChangedFile{
			{Filename: "a.go", Patch: "@@ -1,1 +1,3 @@\n package a\n+func A() error {}\n+var _ = A"},
			{Filename: "b.go", Patch: "@@ -1,1 +1,3 @@\n package b\n+func B() {}\n+var _ = B"},
			{Filename: "c.go", Patch: "@@ -1,1 +1,2 @@\n package c\n+var c = 1"},
		},
	}

	models, err := llm.NewDispatcher(backends, logger)
	require.NoError(t, err)
	prompts, err := llm.NewPromptManager()
	require.NoError(t, err)

	cfg := &config.Config{
		TokenBudget:    100000,
		RequestTimeout: 5 * time.Second,
	}
	factory := func(_ context.Context, _ int64) (github.Client, error) { return fake, nil }

	job := NewReviewJob(
		cfg,
		factory,
		prompts,
		models,
		policy.NewEngine(logger),
		publisher.NewPublisher(storage.NewMemoryStore(), logger),
		logger,
	)
	return fake, job
}

func jobRequest() *core.ReviewRequest {
	return &core.ReviewRequest{
		ID:           "delivery-1",
		RepoOwner:    "acme",
		RepoName:     "widgets",
		RepoFullName: "acme/widgets",
		PRNumber:     12,
		PRTitle:      "Refactor helpers",
		Kind:         core.EventOpened,
		HeadSHA:      "abc123",
	}
}

// The full pipeline: the primary backend hangs until its attempt deadline,
// the secondary produces a parsable review, and exactly the two anchored
// comments reach the pull request.
func TestReviewJob_FallbackEndToEnd(t *testing.T) {
	hung := &scriptedBackend{name: "primary", timeout: 20 * time.Millisecond, block: true}
	healthy := &scriptedBackend{name: "secondary", outputs: []string{goodModelOutput}}
	fake, job := reviewTestFixture(t, []llm.Backend{hung, healthy})

	require.NoError(t, job.Run(context.Background(), jobRequest()))

	reviews := fake.Reviews()
	require.Len(t, reviews, 1)
	require.Len(t, reviews[0].Comments, 2)
	assert.Equal(t, "a.go", reviews[0].Comments[0].Path)
	assert.Equal(t, 2, reviews[0].Comments[0].Line)
	assert.Equal(t, "b.go", reviews[0].Comments[1].Path)
	assert.Contains(t, reviews[0].Body, "two problems")

	require.Len(t, fake.CheckRunConclusions, 1)
	assert.Equal(t, "success", fake.CheckRunConclusions[0])
}

// Re-delivery of the same event must not post the review twice.
func TestReviewJob_RedeliveryPublishesOnce(t *testing.T) {
	backend := &scriptedBackend{name: "only", outputs: []string{goodModelOutput}}
	fake, job := reviewTestFixture(t, []llm.Backend{backend})

	require.NoError(t, job.Run(context.Background(), jobRequest()))
	require.NoError(t, job.Run(context.Background(), jobRequest()))

	assert.Len(t, fake.Reviews(), 1)
}

func TestReviewJob_MalformedOutputTriggersOneReprompt(t *testing.T) {
	backend := &scriptedBackend{
		name:    "only",
		outputs: []string{"I refuse to follow the format.", goodModelOutput},
	}
	fake, job := reviewTestFixture(t, []llm.Backend{backend})

	require.NoError(t, job.Run(context.Background(), jobRequest()))

	assert.Equal(t, 2, backend.calls)
	require.Len(t, fake.Reviews(), 1)
	assert.Len(t, fake.Reviews()[0].Comments, 2)
}

func TestReviewJob_MalformedTwiceFails(t *testing.T) {
	backend := &scriptedBackend{
		name:    "only",
		outputs: []string{"nonsense", "still nonsense"},
	}
	fake, job := reviewTestFixture(t, []llm.Backend{backend})

	err := job.Run(context.Background(), jobRequest())
	require.ErrorIs(t, err, core.ErrMalformedOutput)

	assert.Equal(t, 2, backend.calls, "exactly one re-prompt, then give up")
	assert.Empty(t, fake.Reviews(), "a failed request publishes nothing")
	require.Len(t, fake.CheckRunConclusions, 1)
	assert.Equal(t, "failure", fake.CheckRunConclusions[0])
}

func TestReviewJob_RequestTimeout(t *testing.T) {
	hung := &scriptedBackend{name: "only", timeout: time.Minute, block: true}
	fake, job := reviewTestFixture(t, []llm.Backend{hung})

	// Tighten the request deadline below the backend's attempt timeout.
	j := job.(*ReviewJob)
	j.cfg.RequestTimeout = 50 * time.Millisecond

	err := job.Run(context.Background(), jobRequest())
	require.ErrorIs(t, err, core.ErrRequestTimeout)
	assert.Empty(t, fake.Reviews())
	require.Len(t, fake.CheckRunConclusions, 1)
	assert.Equal(t, "failure", fake.CheckRunConclusions[0])
}

func TestReviewJob_DerivesHeadSHAFromPR(t *testing.T) {
	backend := &scriptedBackend{name: "only", outputs: []string{goodModelOutput}}
	fake, job := reviewTestFixture(t, []llm.Backend{backend})

	req := jobRequest()
	req.Kind = core.EventComment
	req.HeadSHA = ""

	require.NoError(t, job.Run(context.Background(), req))

	// The derived SHA drives the check run; the caller's request is untouched.
	require.Len(t, fake.CheckRunHeadSHAs, 1)
	assert.Equal(t, "headsha", fake.CheckRunHeadSHAs[0])
	assert.Empty(t, req.HeadSHA)
	assert.Empty(t, req.BaseSHA)
	assert.Len(t, fake.Reviews(), 1)
}

func TestReviewJob_RepoPolicyOverride(t *testing.T) {
	backend := &scriptedBackend{name: "only", outputs: []string{goodModelOutput}}
	fake, job := reviewTestFixture(t, []llm.Backend{backend})

	// Raise the floor so the Medium finding on b.go is filtered out.
	fake.FileContents = map[string][]byte{
		config.RepoPolicyFile: []byte("severity_floor: high\n"),
	}

	require.NoError(t, job.Run(context.Background(), jobRequest()))

	reviews := fake.Reviews()
	require.Len(t, reviews, 1)
	require.Len(t, reviews[0].Comments, 1)
	assert.Equal(t, "a.go", reviews[0].Comments[0].Path)
}

func TestReviewJob_RepoPolicyFetch(t *testing.T) {
	backend := &scriptedBackend{name: "only", outputs: []string{goodModelOutput}}
	fake, job := reviewTestFixture(t, []llm.Backend{backend})
	j := job.(*ReviewJob)

	t.Run("missing file maps to the not-found sentinel", func(t *testing.T) {
		_, err := j.fetchRepoPolicy(context.Background(), fake, jobRequest())
		require.ErrorIs(t, err, config.ErrRepoPolicyNotFound)
	})

	t.Run("fetch failure passes through", func(t *testing.T) {
		fake.GetFileContentErr = errors.New("rate limited")
		defer func() { fake.GetFileContentErr = nil }()

		_, err := j.fetchRepoPolicy(context.Background(), fake, jobRequest())
		require.Error(t, err)
		assert.NotErrorIs(t, err, config.ErrRepoPolicyNotFound)
	})

	t.Run("either way the base policy applies", func(t *testing.T) {
		fake.GetFileContentErr = errors.New("rate limited")
		defer func() { fake.GetFileContentErr = nil }()

		pol := j.effectivePolicy(context.Background(), fake, jobRequest())
		assert.Equal(t, j.cfg.Policy, pol)
	})
}

func TestReviewJob_ValidatesInputs(t *testing.T) {
	backend := &scriptedBackend{name: "only", outputs: []string{goodModelOutput}}
	_, job := reviewTestFixture(t, []llm.Backend{backend})

	tests := []struct {
		name string
		req  *core.ReviewRequest
	}{
		{"nil request", nil},
		{"missing id", &core.ReviewRequest{RepoOwner: "a", RepoName: "b", PRNumber: 1}},
		{"missing owner", &core.ReviewRequest{ID: "x", RepoName: "b", PRNumber: 1}},
		{"bad pr number", &core.ReviewRequest{ID: "x", RepoOwner: "a", RepoName: "b", PRNumber: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, job.Run(context.Background(), tt.req))
		})
	}
}

func TestReviewJob_ClientFactoryFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := &scriptedBackend{name: "only", outputs: []string{goodModelOutput}}
	models, err := llm.NewDispatcher([]llm.Backend{backend}, logger)
	require.NoError(t, err)
	prompts, err := llm.NewPromptManager()
	require.NoError(t, err)

	job := NewReviewJob(
		&config.Config{TokenBudget: 1000, RequestTimeout: time.Second},
		func(_ context.Context, _ int64) (github.Client, error) { return nil, errors.New("no installation") },
		prompts,
		models,
		policy.NewEngine(logger),
		publisher.NewPublisher(storage.NewMemoryStore(), logger),
		logger,
	)

	assert.Error(t, job.Run(context.Background(), jobRequest()))
}
