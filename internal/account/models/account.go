package models

import (
	"quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
)

// Account is the aggregate root for a shareholder identity.
//
// Invariants:
//   - Verified is false until an admin binds an identity hash
//   - IdentityHash, once bound, never changes and is globally unique across
//     verified accounts (the anti-Sybil guarantee, enforced by the store's
//     reverse index)
//   - Shares only grow through minting and move through transfers; no
//     operation destroys them
//   - VotingPower is derived bookkeeping: own shares while not delegating,
//     plus shares of accounts currently delegating in
//   - Accounts are never deleted, only deactivated
type Account struct {
	ID           domain.AccountID
	IdentityHash domain.IdentityHash
	Verified     bool
	Shares       uint64
	VotingPower  uint64
	Active       bool
	CreatedAt    domain.Sequence
}

// NewAccount builds an unverified account at registration time.
func NewAccount(id domain.AccountID, seq domain.Sequence) Account {
	return Account{
		ID:        id,
		Active:    true,
		CreatedAt: seq,
	}
}

// CanVerify checks whether an identity hash may be bound to this account.
// Global hash uniqueness is the store's concern; this guards local state.
func (a *Account) CanVerify(hash domain.IdentityHash) error {
	if !a.Active {
		return dErrors.New(dErrors.CodeInvalidState, "account is deactivated")
	}
	if a.Verified {
		return dErrors.New(dErrors.CodeConflict, "account is already verified")
	}
	if hash.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "identity hash must not be zero")
	}
	return nil
}

// ApplyVerification binds the hash and marks the account verified. Call
// CanVerify first.
func (a *Account) ApplyVerification(hash domain.IdentityHash) {
	a.IdentityHash = hash
	a.Verified = true
}

// CanMint checks whether shares may be minted to this account.
func (a *Account) CanMint(amount uint64) error {
	if !a.Verified {
		return dErrors.New(dErrors.CodeInvalidState, "account is not verified")
	}
	if amount == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "mint amount must be positive")
	}
	return nil
}

// ApplyMint adds shares. Minting is additive only; the voting-power side of
// the same transition is applied by the service because the delta may land on
// a delegate.
func (a *Account) ApplyMint(amount uint64) {
	a.Shares += amount
}

// CanDebit checks whether the account can part with amount shares.
func (a *Account) CanDebit(amount uint64) error {
	if amount == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "transfer amount must be positive")
	}
	if a.Shares < amount {
		return dErrors.Newf(dErrors.CodeInsufficientFunds, "balance %d is below %d", a.Shares, amount)
	}
	return nil
}

// ApplyDebit removes shares. Call CanDebit first.
func (a *Account) ApplyDebit(amount uint64) {
	a.Shares -= amount
}

// ApplyCredit adds transferred shares.
func (a *Account) ApplyCredit(amount uint64) {
	a.Shares += amount
}

// Deactivate soft-deletes the account. Shares and the identity binding
// survive so historical votes and the anti-Sybil index stay intact.
func (a *Account) Deactivate() {
	a.Active = false
}
