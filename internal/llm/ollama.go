package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sevigo/goframe/llms"
	"github.com/sevigo/goframe/llms/ollama"

	"github.com/sevigo/reviewd/internal/config"
	"github.com/sevigo/reviewd/internal/core"
)

type ollamaBackend struct {
	name    string
	timeout time.Duration
	model   llms.Model
}

// newOllamaHTTPClient creates an HTTP client with longer timeouts for Ollama
// requests. Local models can take a while to process large prompts.
func newOllamaHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxConnsPerHost:     10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

func newOllamaBackend(cfg config.BackendConfig, logger *slog.Logger) (Backend, error) {
	opts := []ollama.Option{
		ollama.WithModel(cfg.Model),
		ollama.WithHTTPClient(newOllamaHTTPClient(cfg.Timeout)),
		ollama.WithLogger(logger),
	}
	if cfg.Host != "" {
		opts = append(opts, ollama.WithServerURL(cfg.Host))
	}
	model, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return &ollamaBackend{name: cfg.Name, timeout: cfg.Timeout, model: model}, nil
}

func (b *ollamaBackend) Name() string { return b.name }

func (b *ollamaBackend) Timeout() time.Duration { return b.timeout }

func (b *ollamaBackend) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, b.model, prompt)
	if err != nil {
		// A local Ollama server has no meaningful fatal class; treat every
		// failure as transient and let the chain advance.
		return "", &core.BackendError{Backend: b.name, Kind: core.Retryable, Err: err}
	}
	if out == "" {
		return "", &core.BackendError{Backend: b.name, Kind: core.Retryable, Err: errors.New("empty completion")}
	}
	return out, nil
}
