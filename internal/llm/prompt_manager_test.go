package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/reviewd/internal/core"
)

func TestPromptManager(t *testing.T) {
	pm, err := NewPromptManager()
	require.NoError(t, err)

	req := &core.ReviewRequest{
		RepoFullName: "acme/widgets",
		PRTitle:      "Add retry logic",
		PRBody:       "Retries transient failures.",
	}
	rc := &core.ReviewContext{
		Truncated: true,
		Files: []core.FileDiff{
			{Path: "retry.go", Patch: "@@ -1,1 +1,2 @@\n package retry\n+var n = 3"},
			{Path: "big_gen.go", Placeholder: true, ChangedLines: 900},
		},
	}

	for _, key := range []PromptKey{CodeReviewPrompt, StrictReviewPrompt} {
		t.Run(string(key), func(t *testing.T) {
			prompt, err := pm.BuildReviewPrompt(key, req, rc)
			require.NoError(t, err)

			assert.Contains(t, prompt, "acme/widgets")
			assert.Contains(t, prompt, "Add retry logic")
			assert.Contains(t, prompt, "retry.go")
			assert.Contains(t, prompt, "var n = 3")
			// The output contract the parser depends on.
			assert.Contains(t, prompt, "# Review Summary")
			assert.Contains(t, prompt, "## Suggestion")
		})
	}

	_, err = pm.Render(PromptKey("missing"), ReviewPromptData{})
	assert.Error(t, err)
}
