package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/sevigo/reviewd/internal/core"
)

// memoryStore is an in-memory Store used by the CLI's one-shot mode and by
// tests, where a database would be overkill.
type memoryStore struct {
	mu      sync.Mutex
	nextID  int64
	records []core.PublishedReview
	keys    map[string]struct{}
}

// NewMemoryStore creates an empty in-memory Store.
func NewMemoryStore() Store {
	return &memoryStore{keys: make(map[string]struct{})}
}

func (s *memoryStore) RecordPublication(_ context.Context, rec *core.PublishedReview) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.RequestID + ":" + rec.ContentHash
	if _, ok := s.keys[key]; ok {
		return nil
	}
	s.keys[key] = struct{}{}

	s.nextID++
	stored := *rec
	stored.ID = s.nextID
	s.records = append(s.records, stored)
	return nil
}

func (s *memoryStore) WasPublished(_ context.Context, requestID, contentHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[requestID+":"+contentHash]
	return ok, nil
}

func (s *memoryStore) LatestForPR(_ context.Context, repoFullName string, prNumber int) (*core.PublishedReview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].RepoFullName == repoFullName && s.records[i].PRNumber == prNumber {
			rec := s.records[i]
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("%w: no review for %s#%d", ErrNotFound, repoFullName, prNumber)
}
