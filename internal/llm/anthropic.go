package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sevigo/reviewd/internal/config"
	"github.com/sevigo/reviewd/internal/core"
)

type anthropicBackend struct {
	name      string
	model     string
	maxTokens int64
	timeout   time.Duration
	client    anthropic.Client
}

func newAnthropicBackend(cfg config.BackendConfig) (Backend, error) {
	key := cfg.APIKey()
	if key == "" {
		return nil, fmt.Errorf("no API key resolved from %s", cfg.APIKeyEnv)
	}
	return &anthropicBackend{
		name:      cfg.Name,
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
		timeout:   cfg.Timeout,
		client:    anthropic.NewClient(option.WithAPIKey(key)),
	}, nil
}

func (b *anthropicBackend) Name() string { return b.name }

func (b *anthropicBackend) Timeout() time.Duration { return b.timeout }

func (b *anthropicBackend) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: b.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", b.classify(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &core.BackendError{Backend: b.name, Kind: core.Retryable, Err: errors.New("empty completion")}
	}
	return sb.String(), nil
}

// classify maps Anthropic API failures onto the dispatcher's taxonomy.
// Rate limits, overload, and transient server errors advance the fallback
// chain; auth and request-shape errors indicate a configuration defect.
func (b *anthropicBackend) classify(err error) error {
	kind := core.Retryable
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 400, 401, 403, 404, 422:
			kind = core.Fatal
		}
	}
	return &core.BackendError{Backend: b.name, Kind: kind, Err: err}
}
