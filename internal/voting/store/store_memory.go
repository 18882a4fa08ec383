package store

import (
	"context"
	"sort"
	"sync"

	"quorum/internal/voting/models"
	"quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
)

type voteKey struct {
	proposal domain.ProposalID
	voter    domain.AccountID
}

// InMemoryStore keeps vote records in process memory. The map key enforces
// one vote per (proposal, voter) pair.
type InMemoryStore struct {
	mu    sync.RWMutex
	votes map[voteKey]models.VoteRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{votes: make(map[voteKey]models.VoteRecord)}
}

// Insert persists the record unless the pair has already voted.
func (s *InMemoryStore) Insert(_ context.Context, record models.VoteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := voteKey{proposal: record.ProposalID, voter: record.Voter}
	if _, ok := s.votes[key]; ok {
		return sentinel.ErrConflict
	}
	s.votes[key] = record
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, proposalID domain.ProposalID, voter domain.AccountID) (models.VoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.votes[voteKey{proposal: proposalID, voter: voter}]
	if !ok {
		return models.VoteRecord{}, sentinel.ErrNotFound
	}
	return record, nil
}

// ListByProposal returns a proposal's votes ordered by cast sequence, then
// voter id for a stable order within one sequence.
func (s *InMemoryStore) ListByProposal(_ context.Context, proposalID domain.ProposalID) ([]models.VoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.VoteRecord
	for key, record := range s.votes {
		if key.proposal == proposalID {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].Voter < out[j].Voter
	})
	return out, nil
}
