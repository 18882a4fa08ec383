// Package escrow is the transfer primitive behind dispute stakes. The core
// never takes custody of native assets; it moves balances between named
// holders on whatever ledger the deployment plugs in.
package escrow

import (
	"context"

	"quorum/pkg/domain"
)

// Named holders on the ledger. Everything else is an account id.
const (
	// Pool holds stakes while their disputes are pending.
	Pool = domain.AccountID("escrow:pool")
	// PendingTreasury accumulates forfeited stakes until treasury governance
	// decides their destination.
	PendingTreasury = domain.AccountID("escrow:pending-treasury")
)

// Ledger moves value between holders. Transfer is atomic: it either moves
// the full amount or reports sentinel.ErrInsufficientFunds and moves nothing.
// Credit mints balance onto a holder outside governed transfers; it exists
// for deployment seeding and for reconciling the pool against persisted
// dispute state after a restart.
type Ledger interface {
	Transfer(ctx context.Context, amount uint64, from, to domain.AccountID) error
	Balance(ctx context.Context, holder domain.AccountID) (uint64, error)
	Credit(ctx context.Context, holder domain.AccountID, amount uint64) error
}
