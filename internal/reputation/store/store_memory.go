package store

import (
	"context"
	"sync"

	"quorum/internal/reputation/models"
	"quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
)

// InMemoryStore keeps reputation entries in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[domain.AccountID]models.ReputationEntry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[domain.AccountID]models.ReputationEntry)}
}

func (s *InMemoryStore) Find(_ context.Context, target domain.AccountID) (models.ReputationEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[target]
	if !ok {
		return models.ReputationEntry{}, sentinel.ErrNotFound
	}
	return entry, nil
}

// Save upserts the entry; first write creates it.
func (s *InMemoryStore) Save(_ context.Context, entry models.ReputationEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Target] = entry
	return nil
}
