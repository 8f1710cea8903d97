package llm

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/sevigo/reviewd/internal/core"
)

//go:embed prompts/*.prompt
var promptFiles embed.FS

// PromptKey selects one of the embedded prompt templates.
type PromptKey string

const (
	// CodeReviewPrompt is the standard review instruction set.
	CodeReviewPrompt PromptKey = "code_review"
	// StrictReviewPrompt re-states the output schema with stricter
	// formatting instructions. Used for the single re-prompt after a
	// malformed response.
	StrictReviewPrompt PromptKey = "strict_review"
)

// PromptManager loads and renders the embedded prompt templates.
type PromptManager struct {
	prompts map[PromptKey]*template.Template
}

// NewPromptManager parses all embedded prompt files at startup so a broken
// template fails the process early instead of mid-request.
func NewPromptManager() (*PromptManager, error) {
	pm := &PromptManager{prompts: make(map[PromptKey]*template.Template)}

	files, err := promptFiles.ReadDir("prompts")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded prompts directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".prompt") {
			continue
		}
		key := PromptKey(strings.TrimSuffix(file.Name(), ".prompt"))

		content, err := promptFiles.ReadFile("prompts/" + file.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded prompt file %s: %w", file.Name(), err)
		}
		tmpl, err := template.New(string(key)).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse prompt template %s: %w", file.Name(), err)
		}
		pm.prompts[key] = tmpl
	}

	for _, required := range []PromptKey{CodeReviewPrompt, StrictReviewPrompt} {
		if _, ok := pm.prompts[required]; !ok {
			return nil, fmt.Errorf("required prompt template %q is missing", required)
		}
	}
	return pm, nil
}

// ReviewPromptData is the type-safe binding for the review templates.
type ReviewPromptData struct {
	RepoFullName string
	PRTitle      string
	PRBody       string
	Truncated    bool
	Files        []core.FileDiff
}

// Render executes the template for the given key.
func (pm *PromptManager) Render(key PromptKey, data ReviewPromptData) (string, error) {
	tmpl, ok := pm.prompts[key]
	if !ok {
		return "", fmt.Errorf("unknown prompt key %q", key)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %q: %w", key, err)
	}
	return buf.String(), nil
}

// BuildReviewPrompt renders the prompt for one request from its assembled
// context.
func (pm *PromptManager) BuildReviewPrompt(key PromptKey, req *core.ReviewRequest, rc *core.ReviewContext) (string, error) {
	return pm.Render(key, ReviewPromptData{
		RepoFullName: req.RepoFullName,
		PRTitle:      req.PRTitle,
		PRBody:       req.PRBody,
		Truncated:    rc.Truncated,
		Files:        rc.Files,
	})
}
