// Package handler provides HTTP handlers for the reviewd service.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v73/github"

	"github.com/sevigo/reviewd/internal/config"
	"github.com/sevigo/reviewd/internal/core"
)

// WebhookHandler processes incoming webhooks from GitHub. It validates the
// payload signature, normalizes supported events into review requests, and
// hands them to the job dispatcher. Events from automation accounts are
// dropped here so the agent never reviews its own output.
type WebhookHandler struct {
	cfg        *config.Config
	trust      core.TrustPolicy
	dispatcher core.JobDispatcher
	logger     *slog.Logger
}

// NewWebhookHandler creates a new webhook handler with the given configuration and dispatcher.
func NewWebhookHandler(cfg *config.Config, dispatcher core.JobDispatcher, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		cfg:        cfg,
		trust:      cfg.TrustPolicy(),
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Handle processes GitHub webhook requests.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := github.ValidatePayload(r, []byte(h.cfg.GitHub.WebhookSecret))
	if err != nil {
		h.logger.Error("invalid webhook payload signature", "error", err)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	event, err := github.ParseWebHook(github.WebHookType(r), payload)
	if err != nil {
		h.logger.Error("could not parse webhook", "error", err)
		http.Error(w, "Could not parse webhook", http.StatusBadRequest)
		return
	}

	deliveryID := github.DeliveryID(r)

	switch e := event.(type) {
	case *github.PullRequestEvent:
		req, err := core.RequestFromPullRequestEvent(e, deliveryID, h.trust)
		h.dispatch(r.Context(), w, req, err)
	case *github.IssueCommentEvent:
		req, err := core.RequestFromIssueComment(e, deliveryID, h.trust)
		h.dispatch(r.Context(), w, req, err)
	default:
		h.logger.Debug("ignoring unhandled webhook event type", "type", github.WebHookType(r))
		_, _ = fmt.Fprint(w, "Event type not handled")
	}
}

// dispatch queues a normalized request, or reports why the event was
// ignored. Unrecognized events and untrusted senders are expected traffic
// and answered with 200 so the platform does not re-deliver them.
func (h *WebhookHandler) dispatch(ctx context.Context, w http.ResponseWriter, req *core.ReviewRequest, err error) {
	switch {
	case errors.Is(err, core.ErrUntrustedSender):
		h.logger.Info("dropping event from automation sender", "reason", err.Error())
		_, _ = fmt.Fprint(w, "Sender not trusted, event ignored")
		return
	case errors.Is(err, core.ErrUnrecognizedEvent):
		h.logger.Debug("ignoring event", "reason", err.Error())
		_, _ = fmt.Fprint(w, "Event ignored")
		return
	case err != nil:
		h.logger.Error("failed to normalize event", "error", err)
		http.Error(w, "Invalid event payload", http.StatusBadRequest)
		return
	}

	if err := h.dispatcher.Dispatch(ctx, req); err != nil {
		h.logger.Error("failed to dispatch review job", "error", err, "repo", req.RepoFullName)
		http.Error(w, "Failed to start review job", http.StatusInternalServerError)
		return
	}

	h.logger.Info("review job dispatched successfully",
		"request_id", req.ID, "repo", req.RepoFullName, "pr", req.PRNumber, "kind", req.Kind)
	w.WriteHeader(http.StatusAccepted)
	_, _ = fmt.Fprint(w, "Review job accepted")
}
