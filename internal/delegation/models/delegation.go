package models

import (
	"quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
)

// Delegation is one delegator's single outbound delegation.
//
// Invariants:
//   - At most one active delegation per delegator
//   - LockUntil is always strictly ahead of CreatedAt
//   - While LockUntil is in the future the delegation cannot be replaced or
//     revoked, and the delegator's balance cannot be transferred
//   - Deactivation is the only mutation after creation
type Delegation struct {
	Delegator domain.AccountID
	Delegate  domain.AccountID
	LockUntil domain.Sequence
	CreatedAt domain.Sequence
	Active    bool
}

// NewDelegation builds an active delegation locked for lockDuration sequences
// from now.
func NewDelegation(delegator, delegate domain.AccountID, lockDuration uint64, now domain.Sequence) Delegation {
	return Delegation{
		Delegator: delegator,
		Delegate:  delegate,
		LockUntil: now.Add(lockDuration),
		CreatedAt: now,
		Active:    true,
	}
}

// LockedAt reports whether the delegation still pins the delegator's balance
// at the given sequence.
func (d *Delegation) LockedAt(now domain.Sequence) bool {
	return d.Active && d.LockUntil.After(now)
}

// CanReplace checks whether a new delegation may supersede this one.
// A still-locked delegation is rejected outright; there is no overwrite.
func (d *Delegation) CanReplace(now domain.Sequence) error {
	if d.LockedAt(now) {
		return dErrors.Newf(dErrors.CodeConflict, "delegation is locked until sequence %d", d.LockUntil)
	}
	return nil
}

// CanRevoke checks whether the delegation may be revoked at now.
func (d *Delegation) CanRevoke(now domain.Sequence) error {
	if !d.Active {
		return dErrors.New(dErrors.CodeInvalidState, "delegation is not active")
	}
	if d.LockedAt(now) {
		return dErrors.Newf(dErrors.CodeConflict, "delegation is locked until sequence %d", d.LockUntil)
	}
	return nil
}

// ApplyRevocation deactivates the delegation. Call CanRevoke (or CanReplace)
// first.
func (d *Delegation) ApplyRevocation() {
	d.Active = false
}
