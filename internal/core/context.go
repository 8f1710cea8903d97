package core

// FileDiff is the diff of one changed file in the pull request, annotated
// with the data the truncation policy needs.
type FileDiff struct {
	Path string
	// Patch is the unified diff hunk text for this file. Empty when the file
	// was dropped by truncation and replaced with a placeholder.
	Patch string
	// ChangedLines is the number of added plus removed lines in the patch.
	ChangedLines int
	// NewLines holds the new-file line numbers covered by the patch, used to
	// anchor inline comments onto the diff.
	NewLines map[int]struct{}
	// Placeholder is set when the file's content was dropped and only a
	// one-line summary remains.
	Placeholder bool
}

// PriorComment is one comment already present on the pull request,
// fetched so the policy engine can suppress duplicates.
type PriorComment struct {
	Path   string
	Line   int
	Body   string
	Author string
}

// ReviewContext is the bounded prompt context assembled for one request.
// It is owned exclusively by a single builder invocation and never shared
// across requests.
type ReviewContext struct {
	Files []FileDiff
	// Truncated is set when the budget forced any file to be dropped or
	// summarized.
	Truncated bool
	// EstimatedTokens is the token estimate for the assembled context.
	EstimatedTokens int
	History         []PriorComment
}

// LineValid reports whether path:line is part of the diff, so an inline
// comment can be anchored there.
func (c *ReviewContext) LineValid(path string, line int) bool {
	for i := range c.Files {
		f := &c.Files[i]
		if f.Path != path || f.Placeholder {
			continue
		}
		_, ok := f.NewLines[line]
		return ok
	}
	return false
}
