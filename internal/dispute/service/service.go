package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	accountmodels "quorum/internal/account/models"
	"quorum/internal/authz"
	"quorum/internal/dispute/models"
	"quorum/internal/escrow"
	"quorum/internal/platform/metrics"
	"quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	audit "quorum/pkg/platform/audit"
	"quorum/pkg/platform/sentinel"
	"quorum/pkg/requestcontext"
)

// DisputeStore is the persistence surface of the arbitrator.
type DisputeStore interface {
	Create(ctx context.Context, dispute models.Dispute) (models.Dispute, error)
	FindByID(ctx context.Context, id domain.DisputeID) (models.Dispute, error)
	Save(ctx context.Context, dispute models.Dispute) error
	ListByTarget(ctx context.Context, target domain.AccountID) ([]models.Dispute, error)
	ListPending(ctx context.Context) ([]models.Dispute, error)
	Count(ctx context.Context) (uint64, error)
}

// AccountReader confirms the parties exist.
type AccountReader interface {
	FindByID(ctx context.Context, id domain.AccountID) (accountmodels.Account, error)
}

// RoleChecker resolves the arbitrator capability and contract ownership.
type RoleChecker interface {
	Check(ctx context.Context, account domain.AccountID, role authz.Role) (bool, error)
	IsOwner(caller domain.AccountID) bool
}

// ReputationRecorder folds resolved disputes into the target's standing.
type ReputationRecorder interface {
	RecordDisputeOutcome(ctx context.Context, target domain.AccountID, wasValid bool) error
}

// AuditPublisher appends entries to the governance ledger.
type AuditPublisher interface {
	Emit(ctx context.Context, entry audit.Entry) (audit.Entry, error)
}

// Service is the DisputeArbitrator: stake-escrowed misconduct reports with
// append-only evidence and a single terminal resolution.
type Service struct {
	disputes   DisputeStore
	accounts   AccountReader
	roles      RoleChecker
	ledger     escrow.Ledger
	reputation ReputationRecorder
	auditor    AuditPublisher
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu         sync.RWMutex
	arbitrator domain.AccountID
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithArbitrator designates the initial arbitrator account.
func WithArbitrator(arbitrator domain.AccountID) Option {
	return func(s *Service) { s.arbitrator = arbitrator }
}

func New(disputes DisputeStore, accounts AccountReader, roles RoleChecker, ledger escrow.Ledger, reputation ReputationRecorder, auditor AuditPublisher, opts ...Option) (*Service, error) {
	if disputes == nil {
		return nil, errors.New("dispute store is required")
	}
	if accounts == nil {
		return nil, errors.New("account reader is required")
	}
	if roles == nil {
		return nil, errors.New("role checker is required")
	}
	if ledger == nil {
		return nil, errors.New("escrow ledger is required")
	}
	if reputation == nil {
		return nil, errors.New("reputation recorder is required")
	}
	if auditor == nil {
		return nil, errors.New("audit publisher is required")
	}
	s := &Service{
		disputes:   disputes,
		accounts:   accounts,
		roles:      roles,
		ledger:     ledger,
		reputation: reputation,
		auditor:    auditor,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Report opens a dispute against target, escrowing the reporter's stake.
// The escrow transfer goes first; if it fails nothing is written.
func (s *Service) Report(ctx context.Context, reporter, target domain.AccountID, proposalID domain.ProposalID, description string, stake uint64) (models.Dispute, error) {
	now := requestcontext.Sequence(ctx)

	dispute, err := models.NewDispute(reporter, target, proposalID, description, stake, now)
	if err != nil {
		return models.Dispute{}, err
	}
	if _, err := s.findAccount(ctx, reporter); err != nil {
		return models.Dispute{}, err
	}
	if _, err := s.findAccount(ctx, target); err != nil {
		return models.Dispute{}, err
	}

	if err := s.ledger.Transfer(ctx, stake, reporter, escrow.Pool); err != nil {
		if errors.Is(err, sentinel.ErrInsufficientFunds) {
			return models.Dispute{}, dErrors.Newf(dErrors.CodeInsufficientFunds, "cannot escrow stake of %d", stake)
		}
		return models.Dispute{}, dErrors.Wrap(err, dErrors.CodeInternal, "escrow stake")
	}

	dispute, err = s.disputes.Create(ctx, dispute)
	if err != nil {
		// Undo the escrow so a rejected report costs nothing.
		if rerr := s.ledger.Transfer(ctx, stake, escrow.Pool, reporter); rerr != nil {
			s.logger.Error("escrow refund after failed report", "reporter", reporter, "error", rerr)
		}
		if errors.Is(err, sentinel.ErrConflict) {
			return models.Dispute{}, dErrors.New(dErrors.CodeConflict, "an open dispute for this report already exists")
		}
		return models.Dispute{}, dErrors.Wrap(err, dErrors.CodeInternal, "create dispute")
	}

	if err := s.emit(ctx, audit.ActionStakeEscrowed, reporter, target, dispute, fmt.Sprintf("stake=%d", stake)); err != nil {
		return models.Dispute{}, err
	}
	if err := s.emit(ctx, audit.ActionDisputeReported, reporter, target, dispute, ""); err != nil {
		return models.Dispute{}, err
	}

	if s.metrics != nil {
		s.metrics.DisputesReported.Inc()
	}
	return dispute, nil
}

// AddEvidence appends an exhibit to a pending dispute.
func (s *Service) AddEvidence(ctx context.Context, submitter domain.AccountID, id domain.DisputeID, hash string, kind models.EvidenceKind) (models.Evidence, error) {
	now := requestcontext.Sequence(ctx)

	dispute, err := s.findDispute(ctx, id)
	if err != nil {
		return models.Evidence{}, err
	}
	if err := dispute.CanAddEvidence(kind, hash); err != nil {
		return models.Evidence{}, err
	}
	if _, err := s.findAccount(ctx, submitter); err != nil {
		return models.Evidence{}, err
	}

	evidence := dispute.ApplyEvidence(submitter, hash, kind, now)
	if err := s.disputes.Save(ctx, dispute); err != nil {
		return models.Evidence{}, dErrors.Wrap(err, dErrors.CodeInternal, "save dispute")
	}

	if err := s.emit(ctx, audit.ActionEvidenceAdded, submitter, dispute.Target, dispute,
		fmt.Sprintf("index=%d kind=%s", evidence.Index, evidence.Kind)); err != nil {
		return models.Evidence{}, err
	}
	return evidence, nil
}

// Resolve settles a pending dispute exactly once. A valid verdict returns
// the stake plus the reward to the reporter; an invalid one forfeits the
// stake to the pending-treasury holder. Either way the outcome lands on the
// target's reputation.
func (s *Service) Resolve(ctx context.Context, caller domain.AccountID, id domain.DisputeID, isValid bool, reason string) (models.Dispute, error) {
	now := requestcontext.Sequence(ctx)

	if err := s.requireArbitrator(ctx, caller); err != nil {
		return models.Dispute{}, err
	}
	dispute, err := s.findDispute(ctx, id)
	if err != nil {
		return models.Dispute{}, err
	}
	if err := dispute.CanResolve(); err != nil {
		return models.Dispute{}, err
	}

	// The escrow ledger does not join the transition's transaction, so the
	// payout mirrors Report: move the money first, and on any later failure
	// move it back and restore the pending dispute so a retry settles once.
	amount, payee := dispute.Stake, escrow.PendingTreasury
	if isValid {
		amount, payee = dispute.Stake+dispute.Reward(), dispute.Reporter
	}
	if err := s.ledger.Transfer(ctx, amount, escrow.Pool, payee); err != nil {
		return models.Dispute{}, dErrors.Wrap(err, dErrors.CodeInternal, "settle stake")
	}

	pending := dispute
	undo := func(cause string) {
		if rerr := s.ledger.Transfer(ctx, amount, payee, escrow.Pool); rerr != nil {
			s.logger.Error("escrow rollback after failed resolution", "dispute", uint64(dispute.ID), "cause", cause, "error", rerr)
		}
		if rerr := s.disputes.Save(ctx, pending); rerr != nil {
			s.logger.Error("dispute rollback after failed resolution", "dispute", uint64(dispute.ID), "cause", cause, "error", rerr)
		}
	}

	dispute.ApplyResolution(caller, isValid, reason, now)
	if err := s.disputes.Save(ctx, dispute); err != nil {
		if rerr := s.ledger.Transfer(ctx, amount, payee, escrow.Pool); rerr != nil {
			s.logger.Error("escrow rollback after failed resolution", "dispute", uint64(dispute.ID), "cause", "save", "error", rerr)
		}
		return models.Dispute{}, dErrors.Wrap(err, dErrors.CodeInternal, "save dispute")
	}
	if err := s.reputation.RecordDisputeOutcome(ctx, dispute.Target, isValid); err != nil {
		undo("reputation outcome")
		return models.Dispute{}, err
	}

	stakeAction := audit.ActionStakeToTreasury
	stakeDetail := fmt.Sprintf("stake=%d", dispute.Stake)
	if isValid {
		stakeAction = audit.ActionStakeReleased
		stakeDetail = fmt.Sprintf("stake=%d reward=%d", dispute.Stake, dispute.Reward())
	}
	if err := s.emit(ctx, stakeAction, caller, dispute.Reporter, dispute, stakeDetail); err != nil {
		undo("stake audit")
		return models.Dispute{}, err
	}
	if err := s.emit(ctx, audit.ActionDisputeResolved, caller, dispute.Target, dispute,
		fmt.Sprintf("verdict=%s reason=%s", dispute.Status, reason)); err != nil {
		undo("resolution audit")
		return models.Dispute{}, err
	}

	if s.metrics != nil {
		s.metrics.DisputesResolved.WithLabelValues(string(dispute.Status)).Inc()
	}
	return dispute, nil
}

// SetArbitrator designates the account whose verdicts settle disputes.
// Contract owner only.
func (s *Service) SetArbitrator(ctx context.Context, caller, arbitrator domain.AccountID) error {
	if !s.roles.IsOwner(caller) {
		return dErrors.New(dErrors.CodeUnauthorized, "only the contract owner may set the arbitrator")
	}
	if _, err := s.findAccount(ctx, arbitrator); err != nil {
		return err
	}

	s.mu.Lock()
	s.arbitrator = arbitrator
	s.mu.Unlock()

	if _, err := s.auditor.Emit(ctx, audit.Entry{
		Action:    audit.ActionArbitratorSet,
		Actor:     caller,
		Target:    arbitrator,
		Sequence:  requestcontext.Sequence(ctx),
		RequestID: requestcontext.RequestID(ctx),
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit arbitrator change")
	}
	return nil
}

// Arbitrator reports the currently designated arbitrator.
func (s *Service) Arbitrator() domain.AccountID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.arbitrator
}

// Get is the read surface for a single dispute.
func (s *Service) Get(ctx context.Context, id domain.DisputeID) (models.Dispute, error) {
	return s.findDispute(ctx, id)
}

// ListByTarget returns disputes against the target, oldest first.
func (s *Service) ListByTarget(ctx context.Context, target domain.AccountID) ([]models.Dispute, error) {
	disputes, err := s.disputes.ListByTarget(ctx, target)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list disputes")
	}
	return disputes, nil
}

// Count reports the number of disputes ever reported.
func (s *Service) Count(ctx context.Context) (uint64, error) {
	count, err := s.disputes.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "count disputes")
	}
	return count, nil
}

// RehydrateEscrow reconciles the escrow pool with the persisted pending
// disputes and returns the credited amount. Stakes live in the dispute rows
// but their pooled balance lives on the ledger; a deployment whose ledger
// does not survive restarts calls this at startup so every pending dispute
// stays resolvable.
func (s *Service) RehydrateEscrow(ctx context.Context) (uint64, error) {
	pending, err := s.disputes.ListPending(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "list pending disputes")
	}
	var total uint64
	for _, dispute := range pending {
		total += dispute.Stake
	}
	balance, err := s.ledger.Balance(ctx, escrow.Pool)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "read pool balance")
	}
	if balance >= total {
		return 0, nil
	}
	shortfall := total - balance
	if err := s.ledger.Credit(ctx, escrow.Pool, shortfall); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "credit pool")
	}
	s.logger.Warn("escrow pool rebuilt from pending disputes",
		"pending", len(pending), "credited", shortfall)
	return shortfall, nil
}

func (s *Service) requireArbitrator(ctx context.Context, caller domain.AccountID) error {
	if caller.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	if caller == s.Arbitrator() {
		return nil
	}
	ok, err := s.roles.Check(ctx, caller, authz.RoleArbitrator)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "check role")
	}
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not an arbitrator")
	}
	return nil
}

func (s *Service) findDispute(ctx context.Context, id domain.DisputeID) (models.Dispute, error) {
	dispute, err := s.disputes.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Dispute{}, dErrors.New(dErrors.CodeNotFound, "dispute not found")
	}
	if err != nil {
		return models.Dispute{}, dErrors.Wrap(err, dErrors.CodeInternal, "load dispute")
	}
	return dispute, nil
}

func (s *Service) findAccount(ctx context.Context, id domain.AccountID) (accountmodels.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return accountmodels.Account{}, dErrors.New(dErrors.CodeNotFound, "account not found")
	}
	if err != nil {
		return accountmodels.Account{}, dErrors.Wrap(err, dErrors.CodeInternal, "load account")
	}
	return account, nil
}

func (s *Service) emit(ctx context.Context, action audit.Action, actor, target domain.AccountID, dispute models.Dispute, detail string) error {
	if detail == "" {
		detail = fmt.Sprintf("dispute=%d", dispute.ID)
	} else {
		detail = fmt.Sprintf("dispute=%d %s", dispute.ID, detail)
	}
	if _, err := s.auditor.Emit(ctx, audit.Entry{
		Action:     action,
		Actor:      actor,
		Target:     target,
		ProposalID: dispute.ProposalID,
		Sequence:   requestcontext.Sequence(ctx),
		Detail:     detail,
		RequestID:  requestcontext.RequestID(ctx),
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit dispute")
	}
	return nil
}
