package store

import (
	"context"
	"sync"

	"quorum/internal/dispute/models"
	"quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
)

type openKey struct {
	reporter domain.AccountID
	target   domain.AccountID
	proposal domain.ProposalID
}

// InMemoryStore keeps disputes in process memory and owns the monotonic
// dispute id. The open index enforces one pending dispute per
// (reporter, target, proposal) triple.
type InMemoryStore struct {
	mu       sync.RWMutex
	disputes map[domain.DisputeID]models.Dispute
	open     map[openKey]domain.DisputeID
	nextID   domain.DisputeID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		disputes: make(map[domain.DisputeID]models.Dispute),
		open:     make(map[openKey]domain.DisputeID),
		nextID:   1,
	}
}

// Create assigns the next id and persists the dispute; a still-open dispute
// for the same triple conflicts.
func (s *InMemoryStore) Create(_ context.Context, dispute models.Dispute) (models.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := openKey{reporter: dispute.Reporter, target: dispute.Target, proposal: dispute.ProposalID}
	if _, ok := s.open[key]; ok {
		return models.Dispute{}, sentinel.ErrConflict
	}
	dispute.ID = s.nextID
	s.nextID++
	s.disputes[dispute.ID] = cloneDispute(dispute)
	s.open[key] = dispute.ID
	return dispute, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.DisputeID) (models.Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dispute, ok := s.disputes[id]
	if !ok {
		return models.Dispute{}, sentinel.ErrNotFound
	}
	return cloneDispute(dispute), nil
}

func (s *InMemoryStore) Save(_ context.Context, dispute models.Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.disputes[dispute.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.disputes[dispute.ID] = cloneDispute(dispute)
	if !dispute.Pending() {
		delete(s.open, openKey{reporter: dispute.Reporter, target: dispute.Target, proposal: dispute.ProposalID})
	}
	return nil
}

// ListByTarget returns disputes reported against the target, oldest first.
func (s *InMemoryStore) ListByTarget(_ context.Context, target domain.AccountID) ([]models.Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Dispute
	for id := domain.DisputeID(1); id < s.nextID; id++ {
		if dispute, ok := s.disputes[id]; ok && dispute.Target == target {
			out = append(out, cloneDispute(dispute))
		}
	}
	return out, nil
}

// ListPending returns the unresolved disputes, oldest first.
func (s *InMemoryStore) ListPending(_ context.Context) ([]models.Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Dispute
	for id := domain.DisputeID(1); id < s.nextID; id++ {
		if dispute, ok := s.disputes[id]; ok && dispute.Pending() {
			out = append(out, cloneDispute(dispute))
		}
	}
	return out, nil
}

// Count returns the number of disputes ever reported.
func (s *InMemoryStore) Count(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.disputes)), nil
}

// cloneDispute copies the evidence slice so callers never alias stored state.
func cloneDispute(d models.Dispute) models.Dispute {
	if len(d.Evidence) > 0 {
		evidence := make([]models.Evidence, len(d.Evidence))
		copy(evidence, d.Evidence)
		d.Evidence = evidence
	}
	if d.Resolution != nil {
		resolution := *d.Resolution
		d.Resolution = &resolution
	}
	return d
}
