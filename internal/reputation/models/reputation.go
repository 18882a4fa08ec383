package models

import (
	"quorum/internal/policy"
	"quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
)

// ReputationEntry tracks one delegate's standing.
//
// Invariants:
//   - Suspension is sticky: once set it never clears
//   - ValidDisputes ≤ TotalDisputes
//   - Score stays in [0, PerfectScore]
type ReputationEntry struct {
	Target         domain.AccountID
	TotalPenalties uint64
	PenaltyCount   uint64
	Suspended      bool
	LastPenaltySeq domain.Sequence
	TotalDisputes  uint64
	ValidDisputes  uint64
}

func NewReputationEntry(target domain.AccountID) ReputationEntry {
	return ReputationEntry{Target: target}
}

// CanPenalize validates the severity scale.
func CanPenalize(severity uint64) error {
	if severity < 1 || severity > policy.MaxSeverity {
		return dErrors.Newf(dErrors.CodeBadRequest, "severity must be between 1 and %d", policy.MaxSeverity)
	}
	return nil
}

// ApplyPenalty records a penalty and returns the amount charged. Repeat
// offenses escalate: the amount scales with the count of prior penalties, so
// consecutive penalties at equal severity are strictly increasing. The third
// penalty suspends, permanently.
func (r *ReputationEntry) ApplyPenalty(severity uint64, now domain.Sequence) uint64 {
	amount := policy.BasePenalty * severity * (1 + r.PenaltyCount)
	r.TotalPenalties += amount
	r.PenaltyCount++
	r.LastPenaltySeq = now
	if r.PenaltyCount >= policy.SuspensionThreshold {
		r.Suspended = true
	}
	return amount
}

// ApplyDisputeOutcome folds a resolved dispute against this delegate into
// the dispute counters.
func (r *ReputationEntry) ApplyDisputeOutcome(wasValid bool) {
	r.TotalDisputes++
	if wasValid {
		r.ValidDisputes++
	}
}

// Score derives the standing from the dispute record. A delegate with no
// disputes scores perfect; every valid dispute pulls the score down
// proportionally.
func (r *ReputationEntry) Score() uint64 {
	if r.TotalDisputes == 0 {
		return policy.PerfectScore
	}
	return policy.PerfectScore - r.ValidDisputes*policy.PerfectScore/r.TotalDisputes
}
