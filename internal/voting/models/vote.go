package models

import (
	"quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
)

// Choice is the direction of a vote.
type Choice string

const (
	ChoiceFor     Choice = "for"
	ChoiceAgainst Choice = "against"
)

// ParseChoice validates a wire-level choice string.
func ParseChoice(s string) (Choice, error) {
	switch Choice(s) {
	case ChoiceFor, ChoiceAgainst:
		return Choice(s), nil
	}
	return "", dErrors.Newf(dErrors.CodeBadRequest, "choice must be %q or %q", ChoiceFor, ChoiceAgainst)
}

// InFavor reports the tally side the choice lands on.
func (c Choice) InFavor() bool { return c == ChoiceFor }

// VoteRecord is one account's immutable vote on one proposal. Weight is the
// voter's power snapshotted at cast time; later share or delegation changes
// never touch it.
type VoteRecord struct {
	ProposalID domain.ProposalID
	Voter      domain.AccountID
	Choice     Choice
	Weight     uint64
	Sequence   domain.Sequence
}

func NewVoteRecord(proposalID domain.ProposalID, voter domain.AccountID, choice Choice, weight uint64, seq domain.Sequence) VoteRecord {
	return VoteRecord{
		ProposalID: proposalID,
		Voter:      voter,
		Choice:     choice,
		Weight:     weight,
		Sequence:   seq,
	}
}
