// Package prcontext assembles the bounded prompt context for one review
// request: the pull request's changed-file diffs plus the prior conversation.
// Building is read-only; the package never writes anything back to the
// platform.
package prcontext

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/sevigo/reviewd/internal/core"
	"github.com/sevigo/reviewd/internal/github"
)

// placeholderTokens is the estimated cost of one dropped-file summary line.
const placeholderTokens = 16

// Builder fetches pull request data and assembles a core.ReviewContext that
// fits the configured token budget.
type Builder struct {
	gh     github.Client
	budget int
	logger *slog.Logger
}

// NewBuilder creates a context builder with the given token budget.
func NewBuilder(gh github.Client, budget int, logger *slog.Logger) *Builder {
	return &Builder{gh: gh, budget: budget, logger: logger}
}

// Build fetches the diff and prior conversation for the request and applies
// the truncation policy. A diff that fits the budget is passed through
// lossless. When the total exceeds the budget, generated files are dropped
// first, then files with the fewest changed lines, and every dropped file is
// summarized as a one-line placeholder. Build fails with
// core.ErrContextTooLarge only when even the minimal summarized context
// exceeds the budget.
func (b *Builder) Build(ctx context.Context, req *core.ReviewRequest) (*core.ReviewContext, error) {
	changed, err := b.gh.GetChangedFiles(ctx, req.RepoOwner, req.RepoName, req.PRNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch changed files: %w", err)
	}
	if len(changed) == 0 {
		return nil, fmt.Errorf("pull request %s#%d has no changed files", req.RepoFullName, req.PRNumber)
	}

	prior, err := b.gh.ListPriorComments(ctx, req.RepoOwner, req.RepoName, req.PRNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prior comments: %w", err)
	}

	rc := &core.ReviewContext{
		History: make([]core.PriorComment, 0, len(prior)),
	}
	for _, c := range prior {
		rc.History = append(rc.History, core.PriorComment{
			Path:   c.Path,
			Line:   c.Line,
			Body:   c.Body,
			Author: c.Author,
		})
	}

	files := make([]core.FileDiff, 0, len(changed))
	for _, cf := range changed {
		fd := core.FileDiff{Path: cf.Filename}
		if cf.Patch == "" {
			// GitHub omits the patch for binary and oversized files.
			fd.Placeholder = true
			fd.ChangedLines = cf.Additions + cf.Deletions
		} else {
			fd.Patch = cf.Patch
			fd.ChangedLines, fd.NewLines = analyzePatch(cf.Filename, cf.Patch)
		}
		files = append(files, fd)
	}

	base := overheadTokens(req)
	total := base
	for i := range files {
		total += fileTokens(&files[i])
	}

	if total <= b.budget {
		rc.Files = files
		rc.EstimatedTokens = total
		return rc, nil
	}

	truncated, estimate, err := b.truncate(files, base)
	if err != nil {
		return nil, err
	}
	b.logger.Info("review context truncated",
		"repo", req.RepoFullName,
		"pr", req.PRNumber,
		"estimated_tokens", estimate,
		"budget", b.budget,
	)

	rc.Files = truncated
	rc.Truncated = true
	rc.EstimatedTokens = estimate
	return rc, nil
}

// truncate keeps the highest-impact files whole and degrades the rest to
// placeholders, preserving the original file order in the returned slice.
// Generated files are the first class to go; they add noise without review
// value, so they only survive when the budget has room left over.
func (b *Builder) truncate(files []core.FileDiff, base int) ([]core.FileDiff, int, error) {
	minimal := base + len(files)*placeholderTokens
	if minimal > b.budget {
		return nil, 0, fmt.Errorf("%w: %d files exceed budget of %d tokens even summarized", core.ErrContextTooLarge, len(files), b.budget)
	}

	// Rank candidate files: hand-written before generated, then by
	// changed-line count, largest first.
	order := make([]int, 0, len(files))
	for i := range files {
		if !files[i].Placeholder {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, c int) bool {
		i, j := order[a], order[c]
		gi, gj := generatedFile(files[i].Path), generatedFile(files[j].Path)
		if gi != gj {
			return !gi
		}
		return files[i].ChangedLines > files[j].ChangedLines
	})

	keep := make(map[int]bool, len(order))
	remaining := b.budget - minimal
	for _, idx := range order {
		cost := fileTokens(&files[idx]) - placeholderTokens
		if cost <= remaining {
			keep[idx] = true
			remaining -= cost
		}
	}

	out := make([]core.FileDiff, len(files))
	estimate := minimal
	for i := range files {
		out[i] = files[i]
		if !files[i].Placeholder && !keep[i] {
			out[i].Patch = ""
			out[i].NewLines = nil
			out[i].Placeholder = true
		}
		if keep[i] {
			estimate += fileTokens(&files[i]) - placeholderTokens
		}
	}
	return out, estimate, nil
}

func fileTokens(f *core.FileDiff) int {
	if f.Placeholder {
		return placeholderTokens
	}
	return estimateTokens(f.Patch) + placeholderTokens
}

func overheadTokens(req *core.ReviewRequest) int {
	return estimateTokens(req.PRTitle) + estimateTokens(req.PRBody) + 256
}

// estimateTokens provides a fast, character-based estimation of token count.
func estimateTokens(text string) int {
	return len(text) / 3
}
