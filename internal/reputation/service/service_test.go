package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	accountmodels "quorum/internal/account/models"
	accountstore "quorum/internal/account/store"
	"quorum/internal/authz"
	"quorum/internal/policy"
	reputationstore "quorum/internal/reputation/store"
	"quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	audit "quorum/pkg/platform/audit"
	auditmemory "quorum/pkg/platform/audit/store/memory"
	"quorum/pkg/requestcontext"
)

const (
	owner    = domain.AccountID("owner")
	governor = domain.AccountID("gov")
	delegate = domain.AccountID("carol")
	stranger = domain.AccountID("nobody")
)

type ReputationServiceSuite struct {
	suite.Suite
	store    *reputationstore.InMemoryStore
	accounts *accountstore.InMemoryStore
	audits   *auditmemory.InMemoryStore
	service  *Service
}

func TestReputationServiceSuite(t *testing.T) {
	suite.Run(t, new(ReputationServiceSuite))
}

func (s *ReputationServiceSuite) SetupTest() {
	ctx := context.Background()
	s.store = reputationstore.NewInMemoryStore()
	s.accounts = accountstore.NewInMemoryStore()
	s.audits = auditmemory.NewInMemoryStore()
	auditor := audit.NewPublisher(s.audits)

	roles, err := authz.New(owner, authz.NewInMemoryStore(), auditor)
	s.Require().NoError(err)
	s.Require().NoError(roles.Grant(ctx, owner, governor, authz.RoleGovernor))

	s.service, err = New(s.store, s.accounts, roles, auditor)
	s.Require().NoError(err)

	for _, id := range []domain.AccountID{governor, delegate, stranger} {
		s.Require().NoError(s.accounts.CreateIfAbsent(ctx, accountmodels.NewAccount(id, 1)))
	}
}

func requestAt(seq domain.Sequence) context.Context {
	return requestcontext.WithSequence(context.Background(), seq)
}

func (s *ReputationServiceSuite) TestPenalize() {
	s.Run("non-governor cannot penalize", func() {
		_, err := s.service.Penalize(requestAt(10), stranger, delegate, 1, "spam")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("severity out of range", func() {
		_, err := s.service.Penalize(requestAt(10), governor, delegate, 0, "spam")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
		_, err = s.service.Penalize(requestAt(10), governor, delegate, policy.MaxSeverity+1, "spam")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("unknown target", func() {
		_, err := s.service.Penalize(requestAt(10), governor, "ghost", 1, "spam")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("repeat penalties escalate", func() {
		first, err := s.service.Penalize(requestAt(10), governor, delegate, 1, "spam")
		s.Require().NoError(err)
		second, err := s.service.Penalize(requestAt(20), governor, delegate, 1, "spam again")
		s.Require().NoError(err)
		s.Less(first, second)

		entry, err := s.service.Get(context.Background(), delegate)
		s.NoError(err)
		s.Equal(uint64(2), entry.PenaltyCount)
		s.Equal(first+second, entry.TotalPenalties)
		s.Equal(domain.Sequence(20), entry.LastPenaltySeq)
	})
}

func (s *ReputationServiceSuite) TestSuspensionAtThreshold() {
	for i := 0; i < policy.SuspensionThreshold; i++ {
		suspended, err := s.service.Suspended(context.Background(), delegate)
		s.Require().NoError(err)
		s.False(suspended)

		_, err = s.service.Penalize(requestAt(domain.Sequence(10*(i+1))), governor, delegate, 1, "offense")
		s.Require().NoError(err)
	}

	suspended, err := s.service.Suspended(context.Background(), delegate)
	s.NoError(err)
	s.True(suspended)

	// The suspension itself is on the ledger.
	entries, err := s.audits.ListByActor(context.Background(), governor)
	s.Require().NoError(err)
	var found bool
	for _, e := range entries {
		if e.Action == audit.ActionDelegateSuspended {
			found = true
		}
	}
	s.True(found)
}

func (s *ReputationServiceSuite) TestDisputeOutcomeScore() {
	ctx := context.Background()

	score, err := s.service.Score(ctx, delegate)
	s.NoError(err)
	s.Equal(uint64(policy.PerfectScore), score)

	s.Require().NoError(s.service.RecordDisputeOutcome(ctx, delegate, true))
	s.Require().NoError(s.service.RecordDisputeOutcome(ctx, delegate, false))

	score, err = s.service.Score(ctx, delegate)
	s.NoError(err)
	s.Equal(uint64(500), score)

	entry, err := s.service.Get(ctx, delegate)
	s.NoError(err)
	s.Equal(uint64(2), entry.TotalDisputes)
	s.Equal(uint64(1), entry.ValidDisputes)
}

func (s *ReputationServiceSuite) TestGetUnknownReadsClean() {
	entry, err := s.service.Get(context.Background(), "never-seen")
	s.NoError(err)
	s.Zero(entry.PenaltyCount)
	s.False(entry.Suspended)
	s.Equal(uint64(policy.PerfectScore), entry.Score())
}
