package core

import (
	"errors"
	"testing"

	"github.com/google/go-github/v73/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prEvent(action, senderLogin, senderType string) *github.PullRequestEvent {
	return &github.PullRequestEvent{
		Action: github.Ptr(action),
		Sender: &github.User{Login: github.Ptr(senderLogin), Type: github.Ptr(senderType)},
		PullRequest: &github.PullRequest{
			Number: github.Ptr(42),
			Title:  github.Ptr("Add feature"),
			Head:   &github.PullRequestBranch{SHA: github.Ptr("abc123")},
			Base:   &github.PullRequestBranch{SHA: github.Ptr("def456")},
		},
		Repo: &github.Repository{
			Owner:    &github.User{Login: github.Ptr("acme")},
			Name:     github.Ptr("widgets"),
			FullName: github.Ptr("acme/widgets"),
		},
		Installation: &github.Installation{ID: github.Ptr(int64(7))},
	}
}

func TestRequestFromPullRequestEvent(t *testing.T) {
	trust := TrustPolicy{DenySuffixes: []string{"[bot]"}}

	tests := []struct {
		name     string
		event    *github.PullRequestEvent
		wantKind EventKind
		wantErr  error
	}{
		{
			name:     "opened event",
			event:    prEvent("opened", "alice", "User"),
			wantKind: EventOpened,
		},
		{
			name:     "reopened event",
			event:    prEvent("reopened", "alice", "User"),
			wantKind: EventReopened,
		},
		{
			name:     "ready for review event",
			event:    prEvent("ready_for_review", "alice", "User"),
			wantKind: EventReadyForReview,
		},
		{
			name:    "synchronize action is not reviewed",
			event:   prEvent("synchronize", "alice", "User"),
			wantErr: ErrUnrecognizedEvent,
		},
		{
			name:    "closed action is not reviewed",
			event:   prEvent("closed", "alice", "User"),
			wantErr: ErrUnrecognizedEvent,
		},
		{
			name:    "bot account type is dropped",
			event:   prEvent("opened", "some-ci", "Bot"),
			wantErr: ErrUntrustedSender,
		},
		{
			name:    "bot suffix login is dropped",
			event:   prEvent("opened", "dependabot[bot]", "User"),
			wantErr: ErrUntrustedSender,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := RequestFromPullRequestEvent(tt.event, "delivery-1", trust)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
				assert.Nil(t, req)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, req.Kind)
			assert.Equal(t, "delivery-1", req.ID)
			assert.Equal(t, "acme", req.RepoOwner)
			assert.Equal(t, "widgets", req.RepoName)
			assert.Equal(t, 42, req.PRNumber)
			assert.Equal(t, "abc123", req.HeadSHA)
			assert.Equal(t, int64(7), req.InstallationID)
		})
	}
}

func TestRequestFromPullRequestEvent_GeneratesID(t *testing.T) {
	req, err := RequestFromPullRequestEvent(prEvent("opened", "alice", "User"), "", TrustPolicy{})
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
}

func TestRequestFromIssueComment(t *testing.T) {
	trust := TrustPolicy{DenyLogins: []string{"reviewd-app"}}

	base := func(body, sender, senderType string) *github.IssueCommentEvent {
		return &github.IssueCommentEvent{
			Issue: &github.Issue{
				Number:           github.Ptr(9),
				Title:            github.Ptr("Fix bug"),
				PullRequestLinks: &github.PullRequestLinks{URL: github.Ptr("https://api.github.com/repos/acme/widgets/pulls/9")},
			},
			Comment: &github.IssueComment{
				Body: github.Ptr(body),
				User: &github.User{Login: github.Ptr(sender), Type: github.Ptr(senderType)},
			},
			Sender: &github.User{Login: github.Ptr(sender), Type: github.Ptr(senderType)},
			Repo: &github.Repository{
				Owner:    &github.User{Login: github.Ptr("acme")},
				Name:     github.Ptr("widgets"),
				FullName: github.Ptr("acme/widgets"),
			},
			Installation: &github.Installation{ID: github.Ptr(int64(7))},
		}
	}

	t.Run("review command", func(t *testing.T) {
		req, err := RequestFromIssueComment(base("/review", "alice", "User"), "d2", trust)
		require.NoError(t, err)
		assert.Equal(t, EventComment, req.Kind)
		assert.Equal(t, 9, req.PRNumber)
	})

	t.Run("case insensitive command", func(t *testing.T) {
		_, err := RequestFromIssueComment(base("  /REVIEW  ", "alice", "User"), "d2", trust)
		require.NoError(t, err)
	})

	t.Run("other comments ignored", func(t *testing.T) {
		_, err := RequestFromIssueComment(base("LGTM", "alice", "User"), "d2", trust)
		assert.ErrorIs(t, err, ErrUnrecognizedEvent)
	})

	t.Run("denied login dropped", func(t *testing.T) {
		_, err := RequestFromIssueComment(base("/review", "reviewd-app", "User"), "d2", trust)
		assert.ErrorIs(t, err, ErrUntrustedSender)
	})

	t.Run("comment not on a pull request", func(t *testing.T) {
		ev := base("/review", "alice", "User")
		ev.Issue.PullRequestLinks = nil
		_, err := RequestFromIssueComment(ev, "d2", trust)
		assert.ErrorIs(t, err, ErrUnrecognizedEvent)
	})
}

func TestTrustPolicy(t *testing.T) {
	p := TrustPolicy{
		DenyLogins:   []string{"blocked-user"},
		DenySuffixes: []string{"[bot]", "-ci"},
	}

	tests := []struct {
		login       string
		accountType string
		want        bool
	}{
		{"alice", "User", true},
		{"alice", "Bot", false},
		{"Blocked-User", "User", false},
		{"renovate[bot]", "User", false},
		{"deploy-ci", "User", false},
		{"cicero", "User", true},
	}

	for _, tt := range tests {
		t.Run(tt.login, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Trusted(tt.login, tt.accountType))
		})
	}
}
