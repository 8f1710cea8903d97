// Package core defines the essential interfaces and data structures that form the
// backbone of the application. These components are designed to be abstract,
// allowing for flexible and decoupled implementations of the application's logic.
package core

// EventKind identifies the pull request lifecycle event that triggered a review.
type EventKind string

const (
	EventOpened         EventKind = "opened"
	EventReopened       EventKind = "reopened"
	EventReadyForReview EventKind = "ready_for_review"
	EventComment        EventKind = "comment"
)

// ReviewRequest is the normalized, internal view of a single incoming
// pull request event. It is created once by the event listener and is
// immutable for the rest of the pipeline.
type ReviewRequest struct {
	// ID uniquely identifies this delivery. It is taken from the platform's
	// delivery header when present, otherwise generated.
	ID string

	RepoOwner    string
	RepoName     string
	RepoFullName string

	PRNumber int
	PRTitle  string
	PRBody   string

	Kind    EventKind
	HeadSHA string
	BaseSHA string

	// Sender is the login of the account that triggered the event.
	Sender string

	InstallationID int64
}
