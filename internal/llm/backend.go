// Package llm implements the model layer of the review pipeline: the
// configured backends, the ordered-fallback dispatcher that drives them, and
// the parser that turns raw model output into a structured review.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/sevigo/reviewd/internal/config"
)

// Backend is one configured language-model endpoint usable to generate
// review text. Implementations classify their own failures as retryable or
// fatal via core.BackendError.
type Backend interface {
	Name() string
	// Timeout is the independent per-attempt deadline for this backend.
	Timeout() time.Duration
	// Generate sends the prompt and returns the raw model output.
	Generate(ctx context.Context, prompt string) (string, error)
}

// NewBackends constructs the fallback chain from configuration, ordered by
// ascending priority rank. Credentials are resolved here, once, at startup.
func NewBackends(cfgs []config.BackendConfig, logger *slog.Logger) ([]Backend, error) {
	ordered := make([]config.BackendConfig, len(cfgs))
	copy(ordered, cfgs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	backends := make([]Backend, 0, len(ordered))
	for _, cfg := range ordered {
		var (
			b   Backend
			err error
		)
		switch cfg.Provider {
		case "anthropic":
			b, err = newAnthropicBackend(cfg)
		case "openai":
			b, err = newOpenAIBackend(cfg)
		case "ollama":
			b, err = newOllamaBackend(cfg, logger)
		default:
			err = fmt.Errorf("unsupported provider %q", cfg.Provider)
		}
		if err != nil {
			return nil, fmt.Errorf("backend %s: %w", cfg.Name, err)
		}
		backends = append(backends, b)
		logger.Info("configured model backend",
			"name", cfg.Name,
			"provider", cfg.Provider,
			"model", cfg.Model,
			"priority", cfg.Priority,
		)
	}
	return backends, nil
}
