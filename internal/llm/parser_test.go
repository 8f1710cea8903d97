package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/reviewd/internal/core"
)

const sampleReview = `# Review Summary
The change looks solid overall. Error handling in the new parser
could be tightened up.

# Suggestions

## Suggestion [internal/parser/parse.go:42]
**Severity:** High
**Category:** Error Handling

The error from ` + "`strconv.Atoi`" + ` is silently discarded. Return it
to the caller instead.

## Suggestion [internal/parser/parse.go:58-61]
**Severity:** Low
**Category:** Style

This loop can be replaced with ` + "`strings.Join`" + `.
`

func TestParseReview(t *testing.T) {
	review, err := ParseReview(sampleReview)
	require.NoError(t, err)

	assert.Contains(t, review.Summary, "looks solid overall")
	require.Len(t, review.Comments, 2)

	first := review.Comments[0]
	assert.Equal(t, "internal/parser/parse.go", first.Path)
	assert.Equal(t, 42, first.StartLine)
	assert.Equal(t, 42, first.Line)
	assert.Equal(t, core.SeverityHigh, first.Severity)
	assert.Equal(t, "Error Handling", first.Category)
	assert.Contains(t, first.Body, "silently discarded")

	second := review.Comments[1]
	assert.Equal(t, 58, second.StartLine)
	assert.Equal(t, 61, second.Line)
	assert.Equal(t, core.SeverityLow, second.Severity)
}

func TestParseReview_FencedOutput(t *testing.T) {
	fenced := "```markdown\n" + sampleReview + "\n```"
	review, err := ParseReview(fenced)
	require.NoError(t, err)
	assert.Len(t, review.Comments, 2)
	assert.NotContains(t, review.Summary, "```")
}

func TestParseReview_SummaryOnly(t *testing.T) {
	review, err := ParseReview("# Review Summary\nNo issues found.\n")
	require.NoError(t, err)
	assert.Equal(t, "No issues found.", review.Summary)
	assert.Empty(t, review.Comments)
}

func TestParseReview_CaseInsensitiveHeadings(t *testing.T) {
	raw := `# REVIEW SUMMARY
Fine.

# SUGGESTIONS

## SUGGESTION [main.go:3]
**severity:** medium

Use a named constant here.
`
	review, err := ParseReview(raw)
	require.NoError(t, err)
	require.Len(t, review.Comments, 1)
	assert.Equal(t, "main.go", review.Comments[0].Path)
	assert.Equal(t, core.SeverityMedium, review.Comments[0].Severity)
}

func TestParseReview_UnparsableHeaderKeepsContent(t *testing.T) {
	raw := `# Review Summary
Partial.

# Suggestions

## Suggestion [no line number]
Something worth saying anyway.
`
	review, err := ParseReview(raw)
	require.NoError(t, err)
	require.Len(t, review.Comments, 1)
	assert.Equal(t, "unknown", review.Comments[0].Path)
	assert.Zero(t, review.Comments[0].Line)
}

func TestParseReview_EmptyBodyDropped(t *testing.T) {
	raw := `# Review Summary
Fine.

# Suggestions

## Suggestion [main.go:1]
**Severity:** Low
`
	review, err := ParseReview(raw)
	require.NoError(t, err)
	assert.Empty(t, review.Comments, "a suggestion with no body text carries no information")
}

func TestParseReview_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty string", ""},
		{"whitespace only", "   \n\t\n"},
		{"prose without sections", "I reviewed the code and it seems okay to me."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReview(tt.raw)
			assert.ErrorIs(t, err, core.ErrMalformedOutput)
		})
	}
}
