package authz

import (
	"context"
	"sort"
	"sync"

	"quorum/pkg/domain"
)

// InMemoryStore keeps the grant set in process memory.
type InMemoryStore struct {
	mu     sync.RWMutex
	grants map[domain.AccountID]map[Role]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{grants: make(map[domain.AccountID]map[Role]struct{})}
}

func (s *InMemoryStore) Grant(_ context.Context, account domain.AccountID, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.grants[account]
	if !ok {
		set = make(map[Role]struct{})
		s.grants[account] = set
	}
	set[role] = struct{}{}
	return nil
}

func (s *InMemoryStore) Revoke(_ context.Context, account domain.AccountID, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants[account], role)
	return nil
}

func (s *InMemoryStore) Has(_ context.Context, account domain.AccountID, role Role) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.grants[account][role]
	return ok, nil
}

func (s *InMemoryStore) Roles(_ context.Context, account domain.AccountID) ([]Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Role, 0, len(s.grants[account]))
	for role := range s.grants[account] {
		out = append(out, role)
	}
	// Deterministic order for the read surface.
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
