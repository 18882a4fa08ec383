package store

import (
	"context"
	"sync"

	"quorum/internal/delegation/models"
	"quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
)

// InMemoryStore keeps delegations keyed by delegator; the single-delegation
// invariant falls out of the map key.
type InMemoryStore struct {
	mu          sync.RWMutex
	delegations map[domain.AccountID]models.Delegation
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{delegations: make(map[domain.AccountID]models.Delegation)}
}

func (s *InMemoryStore) Save(_ context.Context, delegation models.Delegation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delegations[delegation.Delegator] = delegation
	return nil
}

func (s *InMemoryStore) FindByDelegator(_ context.Context, delegator domain.AccountID) (models.Delegation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	delegation, ok := s.delegations[delegator]
	if !ok {
		return models.Delegation{}, sentinel.ErrNotFound
	}
	return delegation, nil
}

// ListByDelegate returns the active delegations pointing at the delegate.
func (s *InMemoryStore) ListByDelegate(_ context.Context, delegate domain.AccountID) ([]models.Delegation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Delegation
	for _, d := range s.delegations {
		if d.Active && d.Delegate == delegate {
			out = append(out, d)
		}
	}
	return out, nil
}
