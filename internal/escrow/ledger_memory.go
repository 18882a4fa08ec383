package escrow

import (
	"context"
	"sync"

	"quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
)

// InMemoryLedger is the ledger for tests and single-node deployments.
// Balances start at zero; Credit seeds them.
type InMemoryLedger struct {
	mu       sync.Mutex
	balances map[domain.AccountID]uint64
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{balances: make(map[domain.AccountID]uint64)}
}

// Credit mints balance onto a holder. Deployment seeding and pool
// reconciliation only; governed value movement goes through Transfer.
func (l *InMemoryLedger) Credit(_ context.Context, holder domain.AccountID, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[holder] += amount
	return nil
}

func (l *InMemoryLedger) Transfer(_ context.Context, amount uint64, from, to domain.AccountID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[from] < amount {
		return sentinel.ErrInsufficientFunds
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

func (l *InMemoryLedger) Balance(_ context.Context, holder domain.AccountID) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[holder], nil
}
