// Package audit is the append-only event ledger written by every governance
// component and read by external observers. Entries are identified by a
// monotonic id owned by the store, carry the logical sequence of the
// transition that produced them, and are never mutated or deleted.
package audit

import (
	"context"

	"quorum/pkg/domain"
)

// EventCategory classifies audit entries by their primary purpose. This
// enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers entries with legal/regulatory significance:
	// identity verification, share issuance, escrow movements.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers entries relevant to abuse monitoring:
	// penalties, suspensions, rejected authorization.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine governance activity that can be
	// sampled: votes, proposal lifecycle, delegation churn.
	CategoryOperations EventCategory = "operations"
)

// Action tags the state transition an entry records.
type Action string

const (
	ActionAccountRegistered Action = "account_registered"
	ActionIdentityVerified  Action = "identity_verified"
	ActionSharesMinted      Action = "shares_minted"
	ActionSharesTransferred Action = "shares_transferred"

	ActionDelegationCreated Action = "delegation_created"
	ActionDelegationRevoked Action = "delegation_revoked"

	ActionProposalCreated   Action = "proposal_created"
	ActionProposalActivated Action = "proposal_activated"
	ActionProposalClosed    Action = "proposal_closed"
	ActionProposalFinalized Action = "proposal_finalized"
	ActionProposalExecuted  Action = "proposal_executed"

	ActionVoteCast Action = "vote_cast"

	ActionPenaltyApplied    Action = "penalty_applied"
	ActionDelegateSuspended Action = "delegate_suspended"

	ActionDisputeReported  Action = "dispute_reported"
	ActionEvidenceAdded    Action = "evidence_added"
	ActionDisputeResolved  Action = "dispute_resolved"
	ActionArbitratorSet    Action = "arbitrator_set"
	ActionStakeEscrowed    Action = "stake_escrowed"
	ActionStakeReleased    Action = "stake_released"
	ActionStakeToTreasury  Action = "stake_to_treasury"
	ActionRoleGranted      Action = "role_granted"
	ActionRoleRevoked      Action = "role_revoked"
)

// actionCategories maps each action to its category.
var actionCategories = map[Action]EventCategory{
	ActionIdentityVerified:  CategoryCompliance,
	ActionSharesMinted:      CategoryCompliance,
	ActionSharesTransferred: CategoryCompliance,
	ActionStakeEscrowed:     CategoryCompliance,
	ActionStakeReleased:     CategoryCompliance,
	ActionStakeToTreasury:   CategoryCompliance,
	ActionDisputeResolved:   CategoryCompliance,

	ActionPenaltyApplied:    CategorySecurity,
	ActionDelegateSuspended: CategorySecurity,
	ActionRoleGranted:       CategorySecurity,
	ActionRoleRevoked:       CategorySecurity,
	ActionArbitratorSet:     CategorySecurity,

	ActionAccountRegistered: CategoryOperations,
	ActionDelegationCreated: CategoryOperations,
	ActionDelegationRevoked: CategoryOperations,
	ActionProposalCreated:   CategoryOperations,
	ActionProposalActivated: CategoryOperations,
	ActionProposalClosed:    CategoryOperations,
	ActionProposalFinalized: CategoryOperations,
	ActionProposalExecuted:  CategoryOperations,
	ActionVoteCast:          CategoryOperations,
	ActionEvidenceAdded:     CategoryOperations,
}

// Category returns the EventCategory for this action. Unknown actions default
// to CategoryOperations.
func (a Action) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}

// Entry is one immutable row of the governance audit log. It is emitted
// inside the transition that it records, so an entry exists exactly when the
// transition committed. It carries no wall-clock timestamp: the sequence is
// the only time the core knows.
type Entry struct {
	ID         domain.EntryID
	Action     Action
	Actor      domain.AccountID
	Target     domain.AccountID
	ProposalID domain.ProposalID // zero when the entry has no proposal scope
	Sequence   domain.Sequence
	Detail     string
	RequestID  string // transport correlation id, empty for internal transitions
}

// Store persists entries and owns the log's monotonic id counter. Append
// assigns the id and returns the stored entry.
type Store interface {
	Append(ctx context.Context, entry Entry) (Entry, error)
	GetByID(ctx context.Context, id domain.EntryID) (Entry, error)
	ListByActor(ctx context.Context, actor domain.AccountID) ([]Entry, error)
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
	Count(ctx context.Context) (uint64, error)
}
