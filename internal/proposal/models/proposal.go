package models

import (
	"quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
)

// Status is the proposal lifecycle state.
//
// Transitions: Pending → Active → {Closed, Approved, Rejected};
// Approved → Executed. Nothing else.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusClosed   Status = "closed"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExecuted Status = "executed"
)

// Proposal is the aggregate root for one governance question.
//
// Invariants:
//   - EndSeq > StartSeq, and StartSeq is never in the past at creation
//   - Tallies mutate only while Active and StartSeq ≤ now ≤ EndSeq
//   - Executed implies previously Approved
//   - Finalization happens strictly after EndSeq, exactly once
type Proposal struct {
	ID           domain.ProposalID
	Title        string
	Description  string
	Proposer     domain.AccountID
	StartSeq     domain.Sequence
	EndSeq       domain.Sequence
	VotesFor     uint64
	VotesAgainst uint64
	Status       Status
	CreatedAt    domain.Sequence
}

// NewProposal validates the voting window and builds a pending proposal. The
// id is assigned by the store.
func NewProposal(proposer domain.AccountID, title, description string, startSeq, endSeq, now domain.Sequence) (Proposal, error) {
	if title == "" {
		return Proposal{}, dErrors.New(dErrors.CodeBadRequest, "proposal title is required")
	}
	if endSeq <= startSeq {
		return Proposal{}, dErrors.New(dErrors.CodeBadRequest, "voting window must end after it starts")
	}
	if startSeq < now {
		return Proposal{}, dErrors.New(dErrors.CodeBadRequest, "voting window must not start in the past")
	}
	return Proposal{
		Title:       title,
		Description: description,
		Proposer:    proposer,
		StartSeq:    startSeq,
		EndSeq:      endSeq,
		Status:      StatusPending,
		CreatedAt:   now,
	}, nil
}

// CanActivate checks the Pending → Active transition.
func (p *Proposal) CanActivate(now domain.Sequence) error {
	if p.Status != StatusPending {
		return dErrors.Newf(dErrors.CodeInvalidState, "proposal is %s, not pending", p.Status)
	}
	if now < p.StartSeq {
		return dErrors.Newf(dErrors.CodeInvalidState, "voting window opens at sequence %d", p.StartSeq)
	}
	if now > p.EndSeq {
		return dErrors.New(dErrors.CodeInvalidState, "voting window has already closed")
	}
	return nil
}

// ApplyActivation opens the proposal for voting. Call CanActivate first.
func (p *Proposal) ApplyActivation() {
	p.Status = StatusActive
}

// CanClose checks the administrative early-close transition.
func (p *Proposal) CanClose() error {
	if p.Status != StatusActive {
		return dErrors.Newf(dErrors.CodeInvalidState, "proposal is %s, not active", p.Status)
	}
	return nil
}

// ApplyClose closes the proposal without a verdict. Call CanClose first.
func (p *Proposal) ApplyClose() {
	p.Status = StatusClosed
}

// CanTally checks whether a vote may contribute to the tallies at now.
func (p *Proposal) CanTally(now domain.Sequence) error {
	if p.Status != StatusActive {
		return dErrors.Newf(dErrors.CodeInvalidState, "proposal is %s, not active", p.Status)
	}
	if now < p.StartSeq || now > p.EndSeq {
		return dErrors.New(dErrors.CodeInvalidState, "proposal voting window is not open")
	}
	return nil
}

// ApplyVote adds a snapshotted weight to one tally. Call CanTally first.
func (p *Proposal) ApplyVote(inFavor bool, weight uint64) {
	if inFavor {
		p.VotesFor += weight
	} else {
		p.VotesAgainst += weight
	}
}

// CanFinalize checks the Active → {Approved, Rejected} transition. Finalizing
// is valid strictly after the window ends and only once.
func (p *Proposal) CanFinalize(now domain.Sequence) error {
	if p.Status != StatusActive {
		return dErrors.Newf(dErrors.CodeInvalidState, "proposal is %s, not active", p.Status)
	}
	if !now.After(p.EndSeq) {
		return dErrors.Newf(dErrors.CodeInvalidState, "voting window is open until sequence %d", p.EndSeq)
	}
	return nil
}

// ApplyFinalization settles the verdict. Approval requires votesFor to carry
// strictly more than thresholdBps of the total; ties and zero-vote proposals
// reject. Call CanFinalize first.
func (p *Proposal) ApplyFinalization(thresholdBps uint64) {
	total := p.VotesFor + p.VotesAgainst
	if total > 0 && p.VotesFor*10000 > thresholdBps*total {
		p.Status = StatusApproved
	} else {
		p.Status = StatusRejected
	}
}

// Approved reports whether the proposal carried.
func (p *Proposal) Approved() bool {
	return p.Status == StatusApproved || p.Status == StatusExecuted
}

// Executed reports whether the proposal's effect has been applied.
func (p *Proposal) Executed() bool {
	return p.Status == StatusExecuted
}

// CanExecute checks the Approved → Executed transition.
func (p *Proposal) CanExecute() error {
	if p.Status == StatusExecuted {
		return dErrors.New(dErrors.CodeInvalidState, "proposal is already executed")
	}
	if p.Status != StatusApproved {
		return dErrors.Newf(dErrors.CodeInvalidState, "proposal is %s, not approved", p.Status)
	}
	return nil
}

// ApplyExecution marks the proposal executed. Call CanExecute first.
func (p *Proposal) ApplyExecution() {
	p.Status = StatusExecuted
}
