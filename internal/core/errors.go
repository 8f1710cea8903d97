package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the review pipeline. Callers classify failures with
// errors.Is rather than string matching.
var (
	// ErrUnrecognizedEvent is returned by the listener when the incoming
	// event kind is not one the agent reviews.
	ErrUnrecognizedEvent = errors.New("unrecognized event kind")

	// ErrUntrustedSender is returned when the event sender is flagged as an
	// automation account. Bot-authored events are dropped to prevent the
	// agent from reviewing, and replying to, its own output.
	ErrUntrustedSender = errors.New("untrusted sender")

	// ErrContextTooLarge is returned by the context builder when even the
	// fully summarized context does not fit the token budget.
	ErrContextTooLarge = errors.New("review context exceeds token budget")

	// ErrAllBackendsExhausted is returned by the model dispatcher after every
	// configured backend failed with a retryable error.
	ErrAllBackendsExhausted = errors.New("all model backends exhausted")

	// ErrMalformedOutput is returned when the model output cannot be parsed
	// into the expected review schema.
	ErrMalformedOutput = errors.New("malformed model output")

	// ErrPublishRejected is returned when the hosting platform rejects the
	// publish call. It is surfaced to the operator and never auto-retried.
	ErrPublishRejected = errors.New("publish rejected by platform")

	// ErrRequestTimeout is returned when the request-level deadline expires
	// before the pipeline completes. Nothing is published.
	ErrRequestTimeout = errors.New("review request deadline exceeded")
)

// BackendErrorKind classifies a single backend attempt failure.
type BackendErrorKind int

const (
	// Retryable failures (timeouts, rate limits, 5xx) advance the dispatcher
	// to the next backend in priority order.
	Retryable BackendErrorKind = iota
	// Fatal failures (auth, malformed request) indicate a configuration
	// defect and stop the fallback chain immediately.
	Fatal
)

func (k BackendErrorKind) String() string {
	if k == Fatal {
		return "fatal"
	}
	return "retryable"
}

// BackendError wraps a failure from one model backend attempt with its
// classification.
type BackendError struct {
	Backend string
	Kind    BackendErrorKind
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %s: %v", e.Backend, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
