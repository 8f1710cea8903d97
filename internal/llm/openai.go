package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/sevigo/reviewd/internal/config"
	"github.com/sevigo/reviewd/internal/core"
)

type openAIBackend struct {
	name      string
	model     string
	maxTokens int64
	timeout   time.Duration
	client    openai.Client
}

func newOpenAIBackend(cfg config.BackendConfig) (Backend, error) {
	key := cfg.APIKey()
	if key == "" {
		return nil, fmt.Errorf("no API key resolved from %s", cfg.APIKeyEnv)
	}
	opts := []option.RequestOption{option.WithAPIKey(key)}
	if cfg.Host != "" {
		opts = append(opts, option.WithBaseURL(cfg.Host))
	}
	return &openAIBackend{
		name:      cfg.Name,
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
		timeout:   cfg.Timeout,
		client:    openai.NewClient(opts...),
	}, nil
}

func (b *openAIBackend) Name() string { return b.name }

func (b *openAIBackend) Timeout() time.Duration { return b.timeout }

func (b *openAIBackend) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens: openai.Int(b.maxTokens),
	})
	if err != nil {
		return "", b.classify(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &core.BackendError{Backend: b.name, Kind: core.Retryable, Err: errors.New("empty completion")}
	}
	return resp.Choices[0].Message.Content, nil
}

func (b *openAIBackend) classify(err error) error {
	kind := core.Retryable
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 400, 401, 403, 404, 422:
			kind = core.Fatal
		}
	}
	return &core.BackendError{Backend: b.name, Kind: kind, Err: err}
}
