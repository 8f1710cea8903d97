package llm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sevigo/reviewd/internal/core"
)

var (
	// Matches: ## Suggestion [path/to/file.go:123] or [path/to/file.go:120-123]
	suggestionHeaderRegex = regexp.MustCompile(`(?i)##\s+Suggestion\s+\[(.*?):\s*(\d+)(?:\s*-\s*(\d+))?\]`)
	severityRegex         = regexp.MustCompile(`(?i)\*\*Severity:?\*\*\s*(.*)`)
	categoryRegex         = regexp.MustCompile(`(?i)\*\*Category:?\*\*\s*(.*)`)
)

// ParsedReview is the raw structured form of a model's review output,
// before policy filtering.
type ParsedReview struct {
	Summary  string
	Comments []core.Comment
}

// ParseReview extracts structured review data from the model's Markdown
// output. It tolerates several common model quirks:
//   - response wrapped in ```markdown ... ``` fences
//   - inconsistent heading levels or casing
//   - missing sections (only the summary is strictly required)
//
// Output that yields neither a summary nor any suggestion fails with
// core.ErrMalformedOutput, which triggers the pipeline's single re-prompt.
func ParseReview(raw string) (*ParsedReview, error) {
	markdown := stripMarkdownFence(raw)

	review := &ParsedReview{}
	lines := strings.Split(markdown, "\n")

	var currentSection string
	var current *core.Comment
	var bodyBuilder strings.Builder
	var summaryBuilder strings.Builder

	flush := func() {
		if current == nil {
			return
		}
		current.Body = strings.TrimSpace(bodyBuilder.String())
		bodyBuilder.Reset()
		if current.Body != "" {
			review.Comments = append(review.Comments, *current)
		}
		current = nil
	}

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		upperLine := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(upperLine, "# REVIEW SUMMARY"):
			flush()
			currentSection = "SUMMARY"
			continue
		case strings.HasPrefix(upperLine, "# SUGGESTIONS"):
			flush()
			currentSection = "SUGGESTIONS"
			continue
		}

		if strings.HasPrefix(upperLine, "## SUGGESTION") {
			flush()

			matches := suggestionHeaderRegex.FindStringSubmatch(line)
			if len(matches) >= 3 {
				lineNum, _ := strconv.Atoi(matches[2])
				current = &core.Comment{
					Path:      strings.TrimSpace(matches[1]),
					StartLine: lineNum,
					Line:      lineNum,
				}
				if matches[3] != "" {
					if end, err := strconv.Atoi(matches[3]); err == nil && end >= lineNum {
						current.Line = end
					}
				}
			} else {
				// Header present but unparsable; keep the content with
				// best-effort placement so it is not silently lost.
				current = &core.Comment{Path: "unknown"}
			}
			currentSection = "SUGGESTION_CONTENT"
			continue
		}

		switch currentSection {
		case "SUMMARY":
			if line != "" && !strings.HasPrefix(line, "#") {
				if summaryBuilder.Len() > 0 {
					summaryBuilder.WriteString("\n")
				}
				summaryBuilder.WriteString(line)
			}
		case "SUGGESTION_CONTENT":
			if current == nil {
				continue
			}
			if strings.HasPrefix(line, "**Severity") {
				if matches := severityRegex.FindStringSubmatch(line); len(matches) > 1 {
					current.Severity = core.ParseSeverity(matches[1])
				}
				continue
			}
			if strings.HasPrefix(line, "**Category") {
				if matches := categoryRegex.FindStringSubmatch(line); len(matches) > 1 {
					current.Category = strings.TrimSpace(matches[1])
				}
				continue
			}
			// Accumulate body content, preserving original indentation.
			if line != "" || bodyBuilder.Len() > 0 {
				bodyBuilder.WriteString(lines[i] + "\n")
			}
		}
	}

	flush()
	review.Summary = strings.TrimSpace(summaryBuilder.String())

	if review.Summary == "" && len(review.Comments) == 0 {
		return nil, fmt.Errorf("%w: no recognized sections found", core.ErrMalformedOutput)
	}
	return review, nil
}

// stripMarkdownFence removes ```markdown ... ``` wrapping that some models
// add around their output.
func stripMarkdownFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "```markdown") || strings.HasPrefix(trimmed, "```md") {
		idx := strings.Index(trimmed, "\n")
		if idx < 0 {
			return s
		}
		inner := trimmed[idx+1:]
		if lastFence := strings.LastIndex(inner, "```"); lastFence >= 0 {
			inner = inner[:lastFence]
		}
		return strings.TrimSpace(inner)
	}
	return s
}
