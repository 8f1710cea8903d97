package prcontext

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/reviewd/internal/core"
	"github.com/sevigo/reviewd/internal/github"
	"github.com/sevigo/reviewd/internal/github/githubtest"
)

const patchLarge = "@@ -1,2 +1,5 @@\n package a\n+func Added() int {\n+\treturn 1\n+}\n var keep = true"

const patchSmall = "@@ -1,1 +1,2 @@\n package b\n+var b = 2"

func testRequest() *core.ReviewRequest {
	return &core.ReviewRequest{
		ID:           "req-1",
		RepoOwner:    "acme",
		RepoName:     "widgets",
		RepoFullName: "acme/widgets",
		PRNumber:     1,
		PRTitle:      "Add feature",
	}
}

func newTestBuilder(fake *githubtest.FakeClient, budget int) *Builder {
	return NewBuilder(fake, budget, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBuild_UnderBudgetIsLossless(t *testing.T) {
	fake := &githubtest.FakeClient{
		ChangedFiles: []github.ChangedFile{
			{Filename: "a.go", Patch: patchLarge},
			{Filename: "b.go", Patch: patchSmall},
		},
		Prior: []github.PriorComment{
			{Path: "a.go", Line: 2, Body: "seen before", Author: "bob"},
		},
	}

	rc, err := newTestBuilder(fake, 10000).Build(context.Background(), testRequest())
	require.NoError(t, err)

	assert.False(t, rc.Truncated)
	require.Len(t, rc.Files, 2)
	assert.Equal(t, patchLarge, rc.Files[0].Patch)
	assert.Equal(t, patchSmall, rc.Files[1].Patch)
	assert.Positive(t, rc.EstimatedTokens)

	require.Len(t, rc.History, 1)
	assert.Equal(t, "bob", rc.History[0].Author)

	// Added lines anchor inline comments; untouched lines do not.
	assert.True(t, rc.LineValid("a.go", 2))
	assert.False(t, rc.LineValid("a.go", 50))
	assert.False(t, rc.LineValid("missing.go", 2))
}

func TestBuild_TruncatesSmallestFilesFirst(t *testing.T) {
	fake := &githubtest.FakeClient{
		ChangedFiles: []github.ChangedFile{
			{Filename: "a.go", Patch: patchLarge},
			{Filename: "b.go", Patch: patchSmall},
		},
	}

	// Room for the overhead, both placeholders, and exactly one whole
	// patch. The file with more changed lines must win the slot.
	req := testRequest()
	budget := overheadTokens(req) + 2*placeholderTokens + estimateTokens(patchLarge)

	rc, err := newTestBuilder(fake, budget).Build(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, rc.Truncated)
	require.Len(t, rc.Files, 2)

	assert.Equal(t, "a.go", rc.Files[0].Path)
	assert.False(t, rc.Files[0].Placeholder)
	assert.NotEmpty(t, rc.Files[0].Patch)

	assert.Equal(t, "b.go", rc.Files[1].Path)
	assert.True(t, rc.Files[1].Placeholder)
	assert.Empty(t, rc.Files[1].Patch)

	assert.LessOrEqual(t, rc.EstimatedTokens, budget)
}

func TestBuild_ContextTooLarge(t *testing.T) {
	fake := &githubtest.FakeClient{
		ChangedFiles: []github.ChangedFile{
			{Filename: "a.go", Patch: patchLarge},
		},
	}

	_, err := newTestBuilder(fake, 10).Build(context.Background(), testRequest())
	assert.ErrorIs(t, err, core.ErrContextTooLarge)
}

func TestBuild_UnderBudgetKeepsGeneratedFiles(t *testing.T) {
	fake := &githubtest.FakeClient{
		ChangedFiles: []github.ChangedFile{
			{Filename: "api.pb.go", Patch: patchSmall},
			{Filename: "a.go", Patch: patchSmall},
		},
	}

	rc, err := newTestBuilder(fake, 1000000).Build(context.Background(), testRequest())
	require.NoError(t, err)

	// A diff that fits the budget passes through untouched, generated
	// files included.
	assert.False(t, rc.Truncated)
	require.Len(t, rc.Files, 2)
	assert.False(t, rc.Files[0].Placeholder)
	assert.Equal(t, patchSmall, rc.Files[0].Patch)
	assert.False(t, rc.Files[1].Placeholder)
}

func TestBuild_GeneratedFilesDropFirst(t *testing.T) {
	fake := &githubtest.FakeClient{
		ChangedFiles: []github.ChangedFile{
			{Filename: "api.pb.go", Patch: patchLarge},
			{Filename: "a.go", Patch: patchSmall},
		},
	}

	// Room for exactly one whole patch. The generated file has more
	// changed lines, but hand-written code outranks it.
	req := testRequest()
	budget := overheadTokens(req) + 2*placeholderTokens + estimateTokens(patchSmall)

	rc, err := newTestBuilder(fake, budget).Build(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, rc.Truncated)
	require.Len(t, rc.Files, 2)

	assert.Equal(t, "api.pb.go", rc.Files[0].Path)
	assert.True(t, rc.Files[0].Placeholder)
	assert.Empty(t, rc.Files[0].Patch)

	assert.Equal(t, "a.go", rc.Files[1].Path)
	assert.False(t, rc.Files[1].Placeholder)
	assert.Equal(t, patchSmall, rc.Files[1].Patch)
}

func TestBuild_BinaryFileBecomesPlaceholder(t *testing.T) {
	fake := &githubtest.FakeClient{
		ChangedFiles: []github.ChangedFile{
			{Filename: "logo.png", Patch: "", Additions: 3, Deletions: 1},
			{Filename: "a.go", Patch: patchSmall},
		},
	}

	rc, err := newTestBuilder(fake, 10000).Build(context.Background(), testRequest())
	require.NoError(t, err)

	require.Len(t, rc.Files, 2)
	assert.True(t, rc.Files[0].Placeholder)
	assert.Equal(t, 4, rc.Files[0].ChangedLines)
	assert.False(t, rc.Truncated)
}

func TestBuild_Failures(t *testing.T) {
	t.Run("no changed files", func(t *testing.T) {
		fake := &githubtest.FakeClient{}
		_, err := newTestBuilder(fake, 10000).Build(context.Background(), testRequest())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no changed files")
	})

	t.Run("diff fetch fails", func(t *testing.T) {
		fake := &githubtest.FakeClient{GetChangedFilesErr: errors.New("boom")}
		_, err := newTestBuilder(fake, 10000).Build(context.Background(), testRequest())
		assert.Error(t, err)
	})

	t.Run("prior comment fetch fails", func(t *testing.T) {
		fake := &githubtest.FakeClient{
			ChangedFiles: []github.ChangedFile{{Filename: "a.go", Patch: patchSmall}},
			ListPriorErr: errors.New("boom"),
		}
		_, err := newTestBuilder(fake, 10000).Build(context.Background(), testRequest())
		assert.Error(t, err)
	})
}

func TestGeneratedFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"main.go", false},
		{"api.pb.go", true},
		{"bundle.min.js", true},
		{"go.sum", true},
		{"vendor/lib/x.go", true},
		{"pkg/node_modules/y.js", true},
		{"docs/build.md", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, generatedFile(tt.path))
		})
	}
}
