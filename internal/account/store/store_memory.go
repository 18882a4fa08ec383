package store

import (
	"context"
	"sync"

	"quorum/internal/account/models"
	"quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
)

// InMemoryStore keeps accounts and the identity-hash reverse index in process
// memory. The index, not a scan, is the lookup path for the anti-Sybil check:
// BindIdentity performs its existence test and insert under one lock so
// racing verifications for the same hash admit exactly one winner.
type InMemoryStore struct {
	mu        sync.RWMutex
	accounts  map[domain.AccountID]models.Account
	hashIndex map[domain.IdentityHash]domain.AccountID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		accounts:  make(map[domain.AccountID]models.Account),
		hashIndex: make(map[domain.IdentityHash]domain.AccountID),
	}
}

// CreateIfAbsent inserts a new account; sentinel.ErrConflict when the id is
// already registered.
func (s *InMemoryStore) CreateIfAbsent(_ context.Context, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; ok {
		return sentinel.ErrConflict
	}
	s.accounts[account.ID] = account
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.AccountID) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return models.Account{}, sentinel.ErrNotFound
	}
	return account, nil
}

// FindByIdentityHash resolves the reverse index.
func (s *InMemoryStore) FindByIdentityHash(_ context.Context, hash domain.IdentityHash) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.hashIndex[hash]
	if !ok {
		return models.Account{}, sentinel.ErrNotFound
	}
	return s.accounts[id], nil
}

// BindIdentity atomically claims the hash for the account and persists the
// verified record. sentinel.ErrConflict when any verified account already
// holds the hash.
func (s *InMemoryStore) BindIdentity(_ context.Context, account models.Account, hash domain.IdentityHash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.hashIndex[hash]; taken {
		return sentinel.ErrConflict
	}
	s.hashIndex[hash] = account.ID
	s.accounts[account.ID] = account
	return nil
}

// Save overwrites an existing account record.
func (s *InMemoryStore) Save(_ context.Context, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.accounts[account.ID] = account
	return nil
}

// AdjustVotingPower applies a signed delta to an account's derived voting
// power inside the store lock, so delegation-driven updates land atomically
// with the balance change that produced them.
func (s *InMemoryStore) AdjustVotingPower(_ context.Context, id domain.AccountID, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if delta < 0 {
		dec := uint64(-delta)
		if account.VotingPower < dec {
			return sentinel.ErrInvalidState
		}
		account.VotingPower -= dec
	} else {
		account.VotingPower += uint64(delta)
	}
	s.accounts[id] = account
	return nil
}
