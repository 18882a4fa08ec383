package store

import (
	"context"
	"sync"

	"quorum/internal/proposal/models"
	"quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
)

// InMemoryStore keeps proposals in process memory and owns the monotonic
// proposal id.
type InMemoryStore struct {
	mu        sync.RWMutex
	proposals map[domain.ProposalID]models.Proposal
	nextID    domain.ProposalID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		proposals: make(map[domain.ProposalID]models.Proposal),
		nextID:    1,
	}
}

// Create assigns the next id and persists the proposal.
func (s *InMemoryStore) Create(_ context.Context, proposal models.Proposal) (models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal.ID = s.nextID
	s.nextID++
	s.proposals[proposal.ID] = proposal
	return proposal, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.ProposalID) (models.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	proposal, ok := s.proposals[id]
	if !ok {
		return models.Proposal{}, sentinel.ErrNotFound
	}
	return proposal, nil
}

func (s *InMemoryStore) Save(_ context.Context, proposal models.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.proposals[proposal.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.proposals[proposal.ID] = proposal
	return nil
}

// Count reports how many proposals have been created.
func (s *InMemoryStore) Count(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(s.nextID - 1), nil
}
