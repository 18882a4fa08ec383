package memory

import (
	"context"
	"sync"

	"quorum/pkg/domain"
	audit "quorum/pkg/platform/audit"
	"quorum/pkg/platform/sentinel"
)

// InMemoryStore keeps the log in process memory for unit tests and
// single-node deployments. It owns the monotonic entry id.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []audit.Entry
	byActor map[domain.AccountID][]int
	nextID  domain.EntryID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byActor: make(map[domain.AccountID][]int),
		nextID:  1,
	}
}

func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) (audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextID
	s.nextID++
	s.entries = append(s.entries, entry)
	s.byActor[entry.Actor] = append(s.byActor[entry.Actor], len(s.entries)-1)
	return entry, nil
}

func (s *InMemoryStore) GetByID(_ context.Context, id domain.EntryID) (audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := int(id) - 1
	if idx < 0 || idx >= len(s.entries) {
		return audit.Entry{}, sentinel.ErrNotFound
	}
	return s.entries[idx], nil
}

func (s *InMemoryStore) ListByActor(_ context.Context, actor domain.AccountID) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idxs := s.byActor[actor]
	out := make([]audit.Entry, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.entries[i])
	}
	return out, nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.entries) - limit
	if start < 0 {
		start = 0
	}
	return append([]audit.Entry{}, s.entries[start:]...), nil
}

func (s *InMemoryStore) Count(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.entries)), nil
}
