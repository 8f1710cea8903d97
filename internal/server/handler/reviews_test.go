package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/reviewd/internal/core"
	"github.com/sevigo/reviewd/internal/storage"
)

func reviewsTestRouter(store storage.Store) *chi.Mux {
	h := NewReviewsHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Get("/reviews/{owner}/{repo}/{number}", h.Latest)
	return r
}

func TestReviewsHandler_Latest(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.RecordPublication(context.Background(), &core.PublishedReview{
		RequestID:    "req-1",
		RepoFullName: "acme/widgets",
		PRNumber:     7,
		HeadSHA:      "abc123",
		ContentHash:  "hash-1",
		Summary:      "first pass",
		CommentCount: 2,
	}))
	require.NoError(t, store.RecordPublication(context.Background(), &core.PublishedReview{
		RequestID:    "req-2",
		RepoFullName: "acme/widgets",
		PRNumber:     7,
		HeadSHA:      "def456",
		ContentHash:  "hash-2",
		Summary:      "second pass",
		CommentCount: 1,
	}))
	r := reviewsTestRouter(store)

	t.Run("returns the latest record", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reviews/acme/widgets/7", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var got core.PublishedReview
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "second pass", got.Summary)
		assert.Equal(t, "def456", got.HeadSHA)
		assert.Equal(t, 1, got.CommentCount)
	})

	t.Run("unknown pull request", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reviews/acme/widgets/99", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid number", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reviews/acme/widgets/abc", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
