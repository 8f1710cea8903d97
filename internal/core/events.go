package core

import (
	"fmt"
	"strings"

	"github.com/google/go-github/v73/github"
	"github.com/google/uuid"
)

// TrustPolicy decides whether an event sender is a real user or an
// automation account. Platform semantics differ, so the predicate is
// configuration rather than a hardcoded check.
type TrustPolicy struct {
	// DenyLogins lists exact sender logins that are never trusted.
	DenyLogins []string
	// DenySuffixes lists login suffixes that mark automation accounts,
	// e.g. "[bot]".
	DenySuffixes []string
}

// Trusted reports whether a sender with the given login and account type may
// trigger a review. Accounts the platform itself marks as bots are always
// rejected.
func (p TrustPolicy) Trusted(login, accountType string) bool {
	if strings.EqualFold(accountType, "Bot") {
		return false
	}
	for _, deny := range p.DenyLogins {
		if strings.EqualFold(login, deny) {
			return false
		}
	}
	for _, suffix := range p.DenySuffixes {
		if suffix != "" && strings.HasSuffix(strings.ToLower(login), strings.ToLower(suffix)) {
			return false
		}
	}
	return true
}

var reviewedActions = map[string]EventKind{
	"opened":           EventOpened,
	"reopened":         EventReopened,
	"ready_for_review": EventReadyForReview,
}

// RequestFromPullRequestEvent transforms a raw GitHub PullRequestEvent into
// the internal ReviewRequest. It acts as an anti-corruption layer: the
// payload is validated here so jobs never see a partial request. Events for
// actions the agent does not review fail with ErrUnrecognizedEvent; events
// from automation accounts fail with ErrUntrustedSender.
func RequestFromPullRequestEvent(event *github.PullRequestEvent, deliveryID string, trust TrustPolicy) (*ReviewRequest, error) {
	kind, ok := reviewedActions[event.GetAction()]
	if !ok {
		return nil, fmt.Errorf("%w: pull_request action %q", ErrUnrecognizedEvent, event.GetAction())
	}

	sender := event.GetSender()
	if !trust.Trusted(sender.GetLogin(), sender.GetType()) {
		return nil, fmt.Errorf("%w: %s", ErrUntrustedSender, sender.GetLogin())
	}

	pr := event.GetPullRequest()
	if pr == nil || pr.GetNumber() <= 0 {
		return nil, fmt.Errorf("pull request information is missing from the event")
	}
	if pr.GetDraft() && kind != EventReadyForReview {
		return nil, fmt.Errorf("%w: draft pull request", ErrUnrecognizedEvent)
	}

	repo := event.GetRepo()
	if repo == nil || repo.GetOwner().GetLogin() == "" || repo.GetName() == "" {
		return nil, fmt.Errorf("repository or owner information is missing from the event")
	}

	return &ReviewRequest{
		ID:             requestID(deliveryID),
		RepoOwner:      repo.GetOwner().GetLogin(),
		RepoName:       repo.GetName(),
		RepoFullName:   repo.GetFullName(),
		PRNumber:       pr.GetNumber(),
		PRTitle:        pr.GetTitle(),
		PRBody:         pr.GetBody(),
		Kind:           kind,
		HeadSHA:        pr.GetHead().GetSHA(),
		BaseSHA:        pr.GetBase().GetSHA(),
		Sender:         sender.GetLogin(),
		InstallationID: event.GetInstallation().GetID(),
	}, nil
}

// RequestFromIssueComment transforms a GitHub IssueCommentEvent into a
// ReviewRequest. Only "/review" commands on open pull requests qualify;
// everything else fails with ErrUnrecognizedEvent.
func RequestFromIssueComment(event *github.IssueCommentEvent, deliveryID string, trust TrustPolicy) (*ReviewRequest, error) {
	if !event.GetIssue().IsPullRequest() {
		return nil, fmt.Errorf("%w: comment is not on a pull request", ErrUnrecognizedEvent)
	}
	if !strings.EqualFold(strings.TrimSpace(event.GetComment().GetBody()), "/review") {
		return nil, fmt.Errorf("%w: comment is not a review command", ErrUnrecognizedEvent)
	}

	sender := event.GetSender()
	login := sender.GetLogin()
	accountType := sender.GetType()
	if login == "" {
		login = event.GetComment().GetUser().GetLogin()
		accountType = event.GetComment().GetUser().GetType()
	}
	if !trust.Trusted(login, accountType) {
		return nil, fmt.Errorf("%w: %s", ErrUntrustedSender, login)
	}

	repo := event.GetRepo()
	if repo == nil || repo.GetOwner().GetLogin() == "" || repo.GetName() == "" {
		return nil, fmt.Errorf("repository or owner information is missing from the event")
	}

	prNumber := event.GetIssue().GetNumber()
	if prNumber <= 0 {
		return nil, fmt.Errorf("invalid pull request number: %d", prNumber)
	}

	return &ReviewRequest{
		ID:             requestID(deliveryID),
		RepoOwner:      repo.GetOwner().GetLogin(),
		RepoName:       repo.GetName(),
		RepoFullName:   repo.GetFullName(),
		PRNumber:       prNumber,
		PRTitle:        event.GetIssue().GetTitle(),
		PRBody:         event.GetIssue().GetBody(),
		Kind:           EventComment,
		Sender:         login,
		InstallationID: event.GetInstallation().GetID(),
	}, nil
}

func requestID(deliveryID string) string {
	if deliveryID != "" {
		return deliveryID
	}
	return uuid.NewString()
}
