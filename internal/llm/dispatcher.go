package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sevigo/reviewd/internal/core"
)

// dispatchState is the dispatcher's position in its fallback state machine:
// Idle → Sending(backend_i) → {Success | Retryable | Fatal}. Modeling the
// fallback as explicit states keeps the exhaustion and fatal-stop paths
// independently testable instead of buried in nested error handling.
type dispatchState int

const (
	stateIdle dispatchState = iota
	stateSending
	stateSuccess
	stateRetryable
	stateFatal
)

func (s dispatchState) String() string {
	switch s {
	case stateSending:
		return "sending"
	case stateSuccess:
		return "success"
	case stateRetryable:
		return "retryable"
	case stateFatal:
		return "fatal"
	default:
		return "idle"
	}
}

// Dispatcher sends one assembled prompt to the configured backends in
// priority order, advancing on retryable failures and stopping immediately
// on fatal ones.
type Dispatcher struct {
	backends []Backend
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over an ordered, non-empty backend list.
func NewDispatcher(backends []Backend, logger *slog.Logger) (*Dispatcher, error) {
	if len(backends) == 0 {
		return nil, errors.New("at least one model backend is required")
	}
	return &Dispatcher{backends: backends, logger: logger}, nil
}

// Generate runs the fallback chain and returns the first successful raw
// output together with the name of the backend that produced it.
//
// Each attempt gets its own independent timeout from the backend's
// configuration; there is no retry budget beyond the list length. A fatal
// classification (auth failure, malformed request) aborts the chain, since
// it signals a configuration defect rather than a transient condition. When
// every backend fails retryably the dispatcher returns
// core.ErrAllBackendsExhausted wrapping all attempt errors.
func (d *Dispatcher) Generate(ctx context.Context, prompt string) (string, string, error) {
	state := stateIdle
	var attempts []error

	for _, backend := range d.backends {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}

		state = stateSending
		d.logger.Debug("dispatch transition", "state", state, "backend", backend.Name())

		attemptCtx, cancel := context.WithTimeout(ctx, backend.Timeout())
		out, err := backend.Generate(attemptCtx, prompt)
		cancel()

		if err == nil {
			state = stateSuccess
			d.logger.Info("dispatch transition", "state", state, "backend", backend.Name())
			return out, backend.Name(), nil
		}

		// Distinguish the request-level deadline from a per-attempt timeout:
		// the former aborts the whole request, the latter only this backend.
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}

		var backendErr *core.BackendError
		if errors.As(err, &backendErr) && backendErr.Kind == core.Fatal {
			state = stateFatal
			d.logger.Error("dispatch transition", "state", state, "backend", backend.Name(), "error", err)
			return "", "", err
		}

		state = stateRetryable
		d.logger.Warn("dispatch transition", "state", state, "backend", backend.Name(), "error", err)
		attempts = append(attempts, err)
	}

	return "", "", fmt.Errorf("%w: %w", core.ErrAllBackendsExhausted, errors.Join(attempts...))
}
