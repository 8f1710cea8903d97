package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sevigo/reviewd/internal/storage"
)

// ReviewsHandler serves the review history recorded by the publisher.
type ReviewsHandler struct {
	store  storage.Store
	logger *slog.Logger
}

// NewReviewsHandler creates a handler backed by the publication store.
func NewReviewsHandler(store storage.Store, logger *slog.Logger) *ReviewsHandler {
	return &ReviewsHandler{store: store, logger: logger}
}

// Latest returns the most recent published review for a pull request as JSON,
// or 404 when nothing has been published yet.
func (h *ReviewsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	repo := chi.URLParam(r, "repo")
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number <= 0 {
		http.Error(w, "Invalid pull request number", http.StatusBadRequest)
		return
	}

	rec, err := h.store.LatestForPR(r.Context(), owner+"/"+repo, number)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "No published review for this pull request", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to look up published review", "owner", owner, "repo", repo, "pr", number, "error", err)
		http.Error(w, "Failed to look up review", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rec); err != nil {
		h.logger.Error("failed to encode review record", "error", err)
	}
}
