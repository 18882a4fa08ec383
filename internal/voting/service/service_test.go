package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	accountmodels "quorum/internal/account/models"
	accountstore "quorum/internal/account/store"
	"quorum/internal/authz"
	proposalmodels "quorum/internal/proposal/models"
	proposalstore "quorum/internal/proposal/store"
	reputationservice "quorum/internal/reputation/service"
	reputationstore "quorum/internal/reputation/store"
	"quorum/internal/voting/models"
	votestore "quorum/internal/voting/store"
	"quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	audit "quorum/pkg/platform/audit"
	auditmemory "quorum/pkg/platform/audit/store/memory"
	"quorum/pkg/requestcontext"
)

const (
	owner = domain.AccountID("owner")
	alice = domain.AccountID("alice")
	bob   = domain.AccountID("bob")
	carol = domain.AccountID("carol")
)

type VotingServiceSuite struct {
	suite.Suite
	votes      *votestore.InMemoryStore
	proposals  *proposalstore.InMemoryStore
	accounts   *accountstore.InMemoryStore
	reputation *reputationservice.Service
	service    *Service
	proposal   proposalmodels.Proposal
}

func TestVotingServiceSuite(t *testing.T) {
	suite.Run(t, new(VotingServiceSuite))
}

func (s *VotingServiceSuite) SetupTest() {
	ctx := context.Background()
	s.votes = votestore.NewInMemoryStore()
	s.proposals = proposalstore.NewInMemoryStore()
	s.accounts = accountstore.NewInMemoryStore()
	auditor := audit.NewPublisher(auditmemory.NewInMemoryStore())

	roles, err := authz.New(owner, authz.NewInMemoryStore(), auditor)
	s.Require().NoError(err)
	s.reputation, err = reputationservice.New(reputationstore.NewInMemoryStore(), s.accounts, roles, auditor)
	s.Require().NoError(err)

	s.service, err = New(s.votes, s.proposals, s.accounts, s.reputation, auditor)
	s.Require().NoError(err)

	s.seedAccount(alice, 600)
	s.seedAccount(bob, 400)
	s.seedAccount(carol, 0)

	p, err := proposalmodels.NewProposal(alice, "question", "", 10, 110, 5)
	s.Require().NoError(err)
	p.ApplyActivation()
	s.proposal, err = s.proposals.Create(ctx, p)
	s.Require().NoError(err)
}

func (s *VotingServiceSuite) seedAccount(id domain.AccountID, power uint64) {
	account := accountmodels.NewAccount(id, 1)
	account.Verified = true
	account.Shares = power
	account.VotingPower = power
	s.Require().NoError(s.accounts.CreateIfAbsent(context.Background(), account))
}

func requestAt(seq domain.Sequence) context.Context {
	return requestcontext.WithSequence(context.Background(), seq)
}

func (s *VotingServiceSuite) tally() proposalmodels.Proposal {
	p, err := s.proposals.FindByID(context.Background(), s.proposal.ID)
	s.Require().NoError(err)
	return p
}

func (s *VotingServiceSuite) TestVote() {
	s.Run("weight snapshots the voter's full power", func() {
		record, err := s.service.Vote(requestAt(50), alice, s.proposal.ID, models.ChoiceFor)
		s.NoError(err)
		s.Equal(uint64(600), record.Weight)
		s.Equal(domain.Sequence(50), record.Sequence)
		s.Equal(uint64(600), s.tally().VotesFor)
	})

	s.Run("second vote by the same account conflicts and leaves tallies untouched", func() {
		_, err := s.service.Vote(requestAt(51), alice, s.proposal.ID, models.ChoiceAgainst)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal(uint64(600), s.tally().VotesFor)
		s.Zero(s.tally().VotesAgainst)
	})

	s.Run("against votes land on the other tally", func() {
		record, err := s.service.Vote(requestAt(52), bob, s.proposal.ID, models.ChoiceAgainst)
		s.NoError(err)
		s.Equal(uint64(400), record.Weight)
		s.Equal(uint64(400), s.tally().VotesAgainst)
	})

	s.Run("later power changes do not revisit the snapshot", func() {
		s.Require().NoError(s.accounts.AdjustVotingPower(context.Background(), alice, 1000))
		record, err := s.service.GetVote(context.Background(), s.proposal.ID, alice)
		s.NoError(err)
		s.Equal(uint64(600), record.Weight)
		s.Equal(uint64(600), s.tally().VotesFor)
	})
}

func (s *VotingServiceSuite) TestVoteRejections() {
	s.Run("unknown proposal", func() {
		_, err := s.service.Vote(requestAt(50), alice, 999, models.ChoiceFor)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown voter", func() {
		_, err := s.service.Vote(requestAt(50), "ghost", s.proposal.ID, models.ChoiceFor)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("window not yet open", func() {
		_, err := s.service.Vote(requestAt(9), alice, s.proposal.ID, models.ChoiceFor)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("window already closed", func() {
		_, err := s.service.Vote(requestAt(111), alice, s.proposal.ID, models.ChoiceFor)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("powerless account is forbidden", func() {
		_, err := s.service.Vote(requestAt(50), carol, s.proposal.ID, models.ChoiceFor)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unverified account is rejected", func() {
		account := accountmodels.NewAccount("newbie", 1)
		account.VotingPower = 10
		s.Require().NoError(s.accounts.CreateIfAbsent(context.Background(), account))

		_, err := s.service.Vote(requestAt(50), "newbie", s.proposal.ID, models.ChoiceFor)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("suspended account is forbidden", func() {
		for i := 0; i < 3; i++ {
			_, err := s.reputation.Penalize(requestAt(domain.Sequence(20+i)), owner, bob, 1, "repeat offense")
			s.Require().NoError(err)
		}
		_, err := s.service.Vote(requestAt(50), bob, s.proposal.ID, models.ChoiceFor)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("malformed choice", func() {
		_, err := s.service.Vote(requestAt(50), alice, s.proposal.ID, "maybe")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *VotingServiceSuite) TestListVotes() {
	_, err := s.service.Vote(requestAt(60), bob, s.proposal.ID, models.ChoiceAgainst)
	s.Require().NoError(err)
	_, err = s.service.Vote(requestAt(50), alice, s.proposal.ID, models.ChoiceFor)
	s.Require().NoError(err)

	records, err := s.service.ListVotes(context.Background(), s.proposal.ID)
	s.NoError(err)
	s.Require().Len(records, 2)
	s.Equal(alice, records[0].Voter)
	s.Equal(bob, records[1].Voter)
}
