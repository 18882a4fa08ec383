package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	accountmodels "quorum/internal/account/models"
	"quorum/internal/authz"
	"quorum/internal/platform/metrics"
	"quorum/internal/policy"
	"quorum/internal/proposal/models"
	"quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	audit "quorum/pkg/platform/audit"
	"quorum/pkg/platform/sentinel"
	"quorum/pkg/requestcontext"
)

// ProposalStore is the persistence surface of the proposal lifecycle.
type ProposalStore interface {
	Create(ctx context.Context, proposal models.Proposal) (models.Proposal, error)
	FindByID(ctx context.Context, id domain.ProposalID) (models.Proposal, error)
	Save(ctx context.Context, proposal models.Proposal) error
	Count(ctx context.Context) (uint64, error)
}

// AccountReader resolves the proposer's standing.
type AccountReader interface {
	FindByID(ctx context.Context, id domain.AccountID) (accountmodels.Account, error)
}

// RoleChecker gates the administrative transitions.
type RoleChecker interface {
	Check(ctx context.Context, account domain.AccountID, role authz.Role) (bool, error)
}

// AuditPublisher appends entries to the governance ledger.
type AuditPublisher interface {
	Emit(ctx context.Context, entry audit.Entry) (audit.Entry, error)
}

// Service is the ProposalStore context: it owns the proposal lifecycle state
// machine. Tally mutation goes through the voting engine, which shares the
// same backing store.
type Service struct {
	proposals ProposalStore
	accounts  AccountReader
	roles     RoleChecker
	auditor   AuditPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(proposals ProposalStore, accounts AccountReader, roles RoleChecker, auditor AuditPublisher, opts ...Option) (*Service, error) {
	if proposals == nil {
		return nil, errors.New("proposal store is required")
	}
	if accounts == nil {
		return nil, errors.New("account reader is required")
	}
	if roles == nil {
		return nil, errors.New("role checker is required")
	}
	if auditor == nil {
		return nil, errors.New("audit publisher is required")
	}
	s := &Service{
		proposals: proposals,
		accounts:  accounts,
		roles:     roles,
		auditor:   auditor,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create submits a new pending proposal. The proposer must be verified and
// must currently command the minimum voting power.
func (s *Service) Create(ctx context.Context, proposer domain.AccountID, title, description string, startSeq, endSeq domain.Sequence) (models.Proposal, error) {
	now := requestcontext.Sequence(ctx)

	account, err := s.accounts.FindByID(ctx, proposer)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Proposal{}, dErrors.New(dErrors.CodeNotFound, "proposer account not found")
	}
	if err != nil {
		return models.Proposal{}, dErrors.Wrap(err, dErrors.CodeInternal, "load proposer")
	}
	if !account.Verified {
		return models.Proposal{}, dErrors.New(dErrors.CodeInvalidState, "proposer is not verified")
	}
	if account.VotingPower < policy.MinProposalPower {
		return models.Proposal{}, dErrors.Newf(dErrors.CodeForbidden,
			"proposing requires at least %d voting power", policy.MinProposalPower)
	}

	proposal, err := models.NewProposal(proposer, title, description, startSeq, endSeq, now)
	if err != nil {
		return models.Proposal{}, err
	}
	proposal, err = s.proposals.Create(ctx, proposal)
	if err != nil {
		return models.Proposal{}, dErrors.Wrap(err, dErrors.CodeInternal, "create proposal")
	}

	if _, err := s.auditor.Emit(ctx, audit.Entry{
		Action:     audit.ActionProposalCreated,
		Actor:      proposer,
		ProposalID: proposal.ID,
		Sequence:   now,
		Detail:     fmt.Sprintf("window=[%d,%d]", proposal.StartSeq, proposal.EndSeq),
		RequestID:  requestcontext.RequestID(ctx),
	}); err != nil {
		return models.Proposal{}, dErrors.Wrap(err, dErrors.CodeInternal, "audit proposal")
	}

	if s.metrics != nil {
		s.metrics.ProposalsCreated.Inc()
	}
	return proposal, nil
}

// Activate opens a pending proposal for voting once its window has started.
// The transition is time-driven, so any caller may trigger it.
func (s *Service) Activate(ctx context.Context, caller domain.AccountID, id domain.ProposalID) (models.Proposal, error) {
	now := requestcontext.Sequence(ctx)

	proposal, err := s.findProposal(ctx, id)
	if err != nil {
		return models.Proposal{}, err
	}
	if err := proposal.CanActivate(now); err != nil {
		s.rejectTransition(err)
		return models.Proposal{}, err
	}
	proposal.ApplyActivation()

	if err := s.proposals.Save(ctx, proposal); err != nil {
		return models.Proposal{}, dErrors.Wrap(err, dErrors.CodeInternal, "save proposal")
	}
	if err := s.emit(ctx, audit.ActionProposalActivated, caller, proposal, ""); err != nil {
		return models.Proposal{}, err
	}
	return proposal, nil
}

// Close ends voting early without producing a verdict. Governor only.
func (s *Service) Close(ctx context.Context, caller domain.AccountID, id domain.ProposalID) (models.Proposal, error) {
	if err := s.requireRole(ctx, caller, authz.RoleGovernor); err != nil {
		return models.Proposal{}, err
	}

	proposal, err := s.findProposal(ctx, id)
	if err != nil {
		return models.Proposal{}, err
	}
	if err := proposal.CanClose(); err != nil {
		s.rejectTransition(err)
		return models.Proposal{}, err
	}
	proposal.ApplyClose()

	if err := s.proposals.Save(ctx, proposal); err != nil {
		return models.Proposal{}, dErrors.Wrap(err, dErrors.CodeInternal, "save proposal")
	}
	if err := s.emit(ctx, audit.ActionProposalClosed, caller, proposal, ""); err != nil {
		return models.Proposal{}, err
	}
	return proposal, nil
}

// Finalize settles the verdict of a proposal whose window has passed. Like
// activation it is time-driven and open to any caller; calling it twice
// rejects with invalid_state.
func (s *Service) Finalize(ctx context.Context, caller domain.AccountID, id domain.ProposalID) (models.Proposal, error) {
	now := requestcontext.Sequence(ctx)

	proposal, err := s.findProposal(ctx, id)
	if err != nil {
		return models.Proposal{}, err
	}
	if err := proposal.CanFinalize(now); err != nil {
		s.rejectTransition(err)
		return models.Proposal{}, err
	}
	proposal.ApplyFinalization(policy.ApprovalThresholdBps)

	if err := s.proposals.Save(ctx, proposal); err != nil {
		return models.Proposal{}, dErrors.Wrap(err, dErrors.CodeInternal, "save proposal")
	}
	detail := fmt.Sprintf("verdict=%s for=%d against=%d", proposal.Status, proposal.VotesFor, proposal.VotesAgainst)
	if err := s.emit(ctx, audit.ActionProposalFinalized, caller, proposal, detail); err != nil {
		return models.Proposal{}, err
	}
	return proposal, nil
}

// Execute marks an approved proposal's effect as applied. Governor only, and
// idempotence is enforced by rejecting a second call.
func (s *Service) Execute(ctx context.Context, caller domain.AccountID, id domain.ProposalID) (models.Proposal, error) {
	if err := s.requireRole(ctx, caller, authz.RoleGovernor); err != nil {
		return models.Proposal{}, err
	}

	proposal, err := s.findProposal(ctx, id)
	if err != nil {
		return models.Proposal{}, err
	}
	if err := proposal.CanExecute(); err != nil {
		s.rejectTransition(err)
		return models.Proposal{}, err
	}
	proposal.ApplyExecution()

	if err := s.proposals.Save(ctx, proposal); err != nil {
		return models.Proposal{}, dErrors.Wrap(err, dErrors.CodeInternal, "save proposal")
	}
	if err := s.emit(ctx, audit.ActionProposalExecuted, caller, proposal, ""); err != nil {
		return models.Proposal{}, err
	}
	return proposal, nil
}

// Get is the read surface for a single proposal.
func (s *Service) Get(ctx context.Context, id domain.ProposalID) (models.Proposal, error) {
	return s.findProposal(ctx, id)
}

// Count reports how many proposals exist.
func (s *Service) Count(ctx context.Context) (uint64, error) {
	n, err := s.proposals.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "count proposals")
	}
	return n, nil
}

func (s *Service) findProposal(ctx context.Context, id domain.ProposalID) (models.Proposal, error) {
	proposal, err := s.proposals.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Proposal{}, dErrors.New(dErrors.CodeNotFound, "proposal not found")
	}
	if err != nil {
		return models.Proposal{}, dErrors.Wrap(err, dErrors.CodeInternal, "load proposal")
	}
	return proposal, nil
}

func (s *Service) requireRole(ctx context.Context, caller domain.AccountID, role authz.Role) error {
	if caller.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	ok, err := s.roles.Check(ctx, caller, role)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "check role")
	}
	if !ok {
		return dErrors.Newf(dErrors.CodeUnauthorized, "caller lacks the %s role", role)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, action audit.Action, actor domain.AccountID, proposal models.Proposal, detail string) error {
	if _, err := s.auditor.Emit(ctx, audit.Entry{
		Action:     action,
		Actor:      actor,
		ProposalID: proposal.ID,
		Sequence:   requestcontext.Sequence(ctx),
		Detail:     detail,
		RequestID:  requestcontext.RequestID(ctx),
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit proposal transition")
	}
	return nil
}

func (s *Service) rejectTransition(err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.TransitionRejects.WithLabelValues(string(dErrors.CodeOf(err))).Inc()
}
