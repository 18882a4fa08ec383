package models

import (
	"quorum/internal/policy"
	"quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
)

// Status is the dispute lifecycle state.
type Status string

const (
	StatusPending         Status = "pending"
	StatusResolvedValid   Status = "resolved_valid"
	StatusResolvedInvalid Status = "resolved_invalid"
)

// EvidenceKind tags what an evidence hash points at.
type EvidenceKind string

const (
	EvidenceKindDocument  EvidenceKind = "document"
	EvidenceKindTxTrace   EvidenceKind = "tx_trace"
	EvidenceKindStatement EvidenceKind = "statement"
)

func (k EvidenceKind) valid() bool {
	switch k {
	case EvidenceKindDocument, EvidenceKindTxTrace, EvidenceKindStatement:
		return true
	}
	return false
}

// Evidence is one append-only exhibit on a dispute. Index is its position in
// the dispute's evidence list and never changes.
type Evidence struct {
	Index     int
	Submitter domain.AccountID
	Hash      string
	Kind      EvidenceKind
	Sequence  domain.Sequence
}

// Resolution records who settled the dispute and why.
type Resolution struct {
	By       domain.AccountID
	Reason   string
	Sequence domain.Sequence
}

// Dispute is the aggregate root for one misconduct report.
//
// Invariants:
//   - Stake ≥ MinDisputeStake, escrowed for the dispute's whole life
//   - Evidence is append-only; the next index is always len(Evidence)
//   - Resolution happens exactly once, from Pending only
type Dispute struct {
	ID          domain.DisputeID
	Reporter    domain.AccountID
	Target      domain.AccountID
	ProposalID  domain.ProposalID
	Description string
	Stake       uint64
	Status      Status
	Evidence    []Evidence
	Resolution  *Resolution
	CreatedAt   domain.Sequence
}

// NewDispute validates the report and builds a pending dispute. The id is
// assigned by the store.
func NewDispute(reporter, target domain.AccountID, proposalID domain.ProposalID, description string, stake uint64, now domain.Sequence) (Dispute, error) {
	if reporter == target {
		return Dispute{}, dErrors.New(dErrors.CodeBadRequest, "cannot report a dispute against yourself")
	}
	if stake < policy.MinDisputeStake {
		return Dispute{}, dErrors.Newf(dErrors.CodeBadRequest, "stake must be at least %d", policy.MinDisputeStake)
	}
	if description == "" {
		return Dispute{}, dErrors.New(dErrors.CodeBadRequest, "dispute description is required")
	}
	return Dispute{
		Reporter:    reporter,
		Target:      target,
		ProposalID:  proposalID,
		Description: description,
		Stake:       stake,
		Status:      StatusPending,
		CreatedAt:   now,
	}, nil
}

// Pending reports whether the dispute is still open.
func (d *Dispute) Pending() bool {
	return d.Status == StatusPending
}

// CanAddEvidence checks that the dispute still accepts exhibits.
func (d *Dispute) CanAddEvidence(kind EvidenceKind, hash string) error {
	if !d.Pending() {
		return dErrors.New(dErrors.CodeInvalidState, "dispute is already resolved")
	}
	if hash == "" {
		return dErrors.New(dErrors.CodeBadRequest, "evidence hash is required")
	}
	if !kind.valid() {
		return dErrors.Newf(dErrors.CodeBadRequest, "unknown evidence kind %q", kind)
	}
	return nil
}

// ApplyEvidence appends an exhibit and returns it. Call CanAddEvidence first.
func (d *Dispute) ApplyEvidence(submitter domain.AccountID, hash string, kind EvidenceKind, now domain.Sequence) Evidence {
	evidence := Evidence{
		Index:     len(d.Evidence),
		Submitter: submitter,
		Hash:      hash,
		Kind:      kind,
		Sequence:  now,
	}
	d.Evidence = append(d.Evidence, evidence)
	return evidence
}

// CanResolve checks the Pending → resolved transition.
func (d *Dispute) CanResolve() error {
	if !d.Pending() {
		return dErrors.New(dErrors.CodeInvalidState, "dispute is already resolved")
	}
	return nil
}

// ApplyResolution settles the dispute exactly once. Call CanResolve first.
func (d *Dispute) ApplyResolution(by domain.AccountID, isValid bool, reason string, now domain.Sequence) {
	if isValid {
		d.Status = StatusResolvedValid
	} else {
		d.Status = StatusResolvedInvalid
	}
	d.Resolution = &Resolution{By: by, Reason: reason, Sequence: now}
}

// Reward is the reporter's premium on a valid dispute, in addition to the
// returned stake.
func (d *Dispute) Reward() uint64 {
	return d.Stake * policy.DisputeRewardBps / 10000
}
