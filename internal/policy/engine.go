// Package policy filters parsed review output before publication: path
// allow/deny globs, the severity floor, and duplicate-comment suppression.
package policy

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/sevigo/reviewd/internal/config"
	"github.com/sevigo/reviewd/internal/core"
)

// Engine applies the configured review policy to parsed model output and
// produces a publishable core.ReviewResult.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a policy engine.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger}
}

// Apply runs the policy filters in order — path globs, severity floor,
// duplicate suppression — and returns a result that satisfies the dedupe
// invariant: no two comments target the same (file, line range, body) tuple.
//
// Comments that survive filtering but cannot be anchored to a diff line are
// folded into the summary instead of dropped, so findings about context
// lines are not silently lost.
func (e *Engine) Apply(pol config.PolicyConfig, req *core.ReviewRequest, parsedSummary string, comments []core.Comment, rc *core.ReviewContext) (*core.ReviewResult, error) {
	result := &core.ReviewResult{
		RequestID: req.ID,
		Summary:   strings.TrimSpace(parsedSummary),
	}

	seen := make(map[string]struct{})
	var offDiff []core.Comment

	for _, c := range comments {
		if !pathAllowed(pol, c.Path) {
			e.logger.Debug("comment dropped by path policy", "path", c.Path)
			continue
		}
		if c.Severity < pol.SeverityFloor {
			e.logger.Debug("comment dropped below severity floor",
				"path", c.Path, "severity", c.Severity.String())
			continue
		}
		if isDuplicate(c, rc.History) {
			e.logger.Debug("comment suppressed as duplicate", "path", c.Path, "line", c.Line)
			continue
		}

		key := dedupeKey(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if c.Path == "" || c.Line <= 0 || !rc.LineValid(c.Path, c.Line) {
			offDiff = append(offDiff, c)
			continue
		}
		result.Comments = append(result.Comments, c)
	}

	if len(offDiff) > 0 {
		result.Summary = appendOffDiff(result.Summary, offDiff)
	}

	if err := result.ValidateDedupe(); err != nil {
		return nil, fmt.Errorf("policy engine produced an invalid result: %w", err)
	}
	return result, nil
}

// pathAllowed applies deny globs first, then the allow list. An empty allow
// list admits every path not denied.
func pathAllowed(pol config.PolicyConfig, path string) bool {
	for _, pattern := range pol.DenyPaths {
		if matchGlob(pattern, path) {
			return false
		}
	}
	if len(pol.AllowPaths) == 0 {
		return true
	}
	for _, pattern := range pol.AllowPaths {
		if matchGlob(pattern, path) {
			return true
		}
	}
	return false
}

// isDuplicate reports whether an equivalent comment already exists in the
// pull request's prior conversation.
func isDuplicate(c core.Comment, history []core.PriorComment) bool {
	body := normalizeBody(c.Body)
	if body == "" {
		return true
	}
	for _, prior := range history {
		priorBody := normalizeBody(prior.Body)
		if prior.Path != "" && (prior.Path != c.Path || prior.Line != c.Line) {
			continue
		}
		if priorBody == body || strings.Contains(priorBody, body) {
			return true
		}
	}
	return false
}

func dedupeKey(c core.Comment) string {
	return fmt.Sprintf("%s:%d-%d:%s", c.Path, c.StartLine, c.Line, normalizeBody(c.Body))
}

func normalizeBody(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func appendOffDiff(summary string, comments []core.Comment) string {
	var sb strings.Builder
	sb.WriteString(summary)
	sb.WriteString("\n\n---\n**Additional notes (outside the diff):**\n")
	for _, c := range comments {
		location := c.Path
		if c.Line > 0 {
			location = fmt.Sprintf("%s:%d", c.Path, c.Line)
		}
		sb.WriteString(fmt.Sprintf("\n- `%s` (%s): %s\n", location, c.Severity, c.Body))
	}
	return strings.TrimSpace(sb.String())
}
