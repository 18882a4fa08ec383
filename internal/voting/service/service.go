package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	accountmodels "quorum/internal/account/models"
	"quorum/internal/platform/metrics"
	"quorum/internal/policy"
	proposalmodels "quorum/internal/proposal/models"
	"quorum/internal/voting/models"
	"quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	audit "quorum/pkg/platform/audit"
	"quorum/pkg/platform/sentinel"
	"quorum/pkg/requestcontext"
)

// VoteStore is the persistence surface for vote records.
type VoteStore interface {
	Insert(ctx context.Context, record models.VoteRecord) error
	Find(ctx context.Context, proposalID domain.ProposalID, voter domain.AccountID) (models.VoteRecord, error)
	ListByProposal(ctx context.Context, proposalID domain.ProposalID) ([]models.VoteRecord, error)
}

// ProposalStore carries the tally side of a cast; the engine shares it with
// the proposal service so record insert and tally update commit together.
type ProposalStore interface {
	FindByID(ctx context.Context, id domain.ProposalID) (proposalmodels.Proposal, error)
	Save(ctx context.Context, proposal proposalmodels.Proposal) error
}

// AccountReader resolves the voter's current power for the snapshot.
type AccountReader interface {
	FindByID(ctx context.Context, id domain.AccountID) (accountmodels.Account, error)
}

// SuspensionReader is the eligibility read backed by the reputation tracker.
type SuspensionReader interface {
	Suspended(ctx context.Context, target domain.AccountID) (bool, error)
}

// AuditPublisher appends entries to the governance ledger.
type AuditPublisher interface {
	Emit(ctx context.Context, entry audit.Entry) (audit.Entry, error)
}

// Service is the VotingEngine: it snapshots the voter's power at cast time
// and keeps the vote record and the proposal tally in step.
type Service struct {
	votes       VoteStore
	proposals   ProposalStore
	accounts    AccountReader
	suspensions SuspensionReader
	auditor     AuditPublisher
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(votes VoteStore, proposals ProposalStore, accounts AccountReader, suspensions SuspensionReader, auditor AuditPublisher, opts ...Option) (*Service, error) {
	if votes == nil {
		return nil, errors.New("vote store is required")
	}
	if proposals == nil {
		return nil, errors.New("proposal store is required")
	}
	if accounts == nil {
		return nil, errors.New("account reader is required")
	}
	if suspensions == nil {
		return nil, errors.New("suspension reader is required")
	}
	if auditor == nil {
		return nil, errors.New("audit publisher is required")
	}
	s := &Service{
		votes:       votes,
		proposals:   proposals,
		accounts:    accounts,
		suspensions: suspensions,
		auditor:     auditor,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Vote casts the voter's full current power on a proposal. The weight is a
// snapshot; later delegation or share changes never revisit it. Callers run
// this inside an engine transaction so the record insert and the tally update
// are all or nothing.
func (s *Service) Vote(ctx context.Context, voter domain.AccountID, proposalID domain.ProposalID, choice models.Choice) (models.VoteRecord, error) {
	now := requestcontext.Sequence(ctx)

	if _, err := models.ParseChoice(string(choice)); err != nil {
		return models.VoteRecord{}, err
	}

	proposal, err := s.proposals.FindByID(ctx, proposalID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.VoteRecord{}, dErrors.New(dErrors.CodeNotFound, "proposal not found")
	}
	if err != nil {
		return models.VoteRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "load proposal")
	}
	if err := proposal.CanTally(now); err != nil {
		return models.VoteRecord{}, err
	}

	account, err := s.accounts.FindByID(ctx, voter)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.VoteRecord{}, dErrors.New(dErrors.CodeNotFound, "voter account not found")
	}
	if err != nil {
		return models.VoteRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "load voter")
	}
	if !account.Verified {
		return models.VoteRecord{}, dErrors.New(dErrors.CodeInvalidState, "voter is not verified")
	}
	// A suspended delegate keeps any power already delegated to it parked on
	// its balance, so suspension blocks the cast outright.
	suspended, err := s.suspensions.Suspended(ctx, voter)
	if err != nil {
		return models.VoteRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "check suspension")
	}
	if suspended {
		return models.VoteRecord{}, dErrors.New(dErrors.CodeForbidden, "account is suspended")
	}
	if account.VotingPower < policy.MinVotePower {
		return models.VoteRecord{}, dErrors.Newf(dErrors.CodeForbidden,
			"voting requires at least %d voting power", policy.MinVotePower)
	}

	record := models.NewVoteRecord(proposalID, voter, choice, account.VotingPower, now)
	if err := s.votes.Insert(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.VoteRecord{}, dErrors.New(dErrors.CodeConflict, "account has already voted on this proposal")
		}
		return models.VoteRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "insert vote")
	}

	proposal.ApplyVote(choice.InFavor(), record.Weight)
	if err := s.proposals.Save(ctx, proposal); err != nil {
		return models.VoteRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "save tally")
	}

	if _, err := s.auditor.Emit(ctx, audit.Entry{
		Action:     audit.ActionVoteCast,
		Actor:      voter,
		ProposalID: proposalID,
		Sequence:   now,
		Detail:     fmt.Sprintf("choice=%s weight=%d", record.Choice, record.Weight),
		RequestID:  requestcontext.RequestID(ctx),
	}); err != nil {
		return models.VoteRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "audit vote")
	}

	if s.metrics != nil {
		s.metrics.VotesCast.WithLabelValues(string(record.Choice)).Inc()
	}
	return record, nil
}

// GetVote is the read surface for one account's vote.
func (s *Service) GetVote(ctx context.Context, proposalID domain.ProposalID, voter domain.AccountID) (models.VoteRecord, error) {
	record, err := s.votes.Find(ctx, proposalID, voter)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.VoteRecord{}, dErrors.New(dErrors.CodeNotFound, "vote not found")
	}
	if err != nil {
		return models.VoteRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "load vote")
	}
	return record, nil
}

// ListVotes returns a proposal's votes in cast order.
func (s *Service) ListVotes(ctx context.Context, proposalID domain.ProposalID) ([]models.VoteRecord, error) {
	records, err := s.votes.ListByProposal(ctx, proposalID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list votes")
	}
	return records, nil
}
