package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	accountmodels "quorum/internal/account/models"
	"quorum/internal/authz"
	"quorum/internal/platform/metrics"
	"quorum/internal/reputation/models"
	"quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	audit "quorum/pkg/platform/audit"
	"quorum/pkg/platform/sentinel"
	"quorum/pkg/requestcontext"
)

// ReputationStore is the persistence surface of the tracker.
type ReputationStore interface {
	Find(ctx context.Context, target domain.AccountID) (models.ReputationEntry, error)
	Save(ctx context.Context, entry models.ReputationEntry) error
}

// AccountReader confirms the target exists before any entry is created.
type AccountReader interface {
	FindByID(ctx context.Context, id domain.AccountID) (accountmodels.Account, error)
}

// RoleChecker gates the penalty surface.
type RoleChecker interface {
	Check(ctx context.Context, account domain.AccountID, role authz.Role) (bool, error)
}

// AuditPublisher appends entries to the governance ledger.
type AuditPublisher interface {
	Emit(ctx context.Context, entry audit.Entry) (audit.Entry, error)
}

// Service is the ReputationTracker: escalating penalties, sticky suspension,
// and the dispute-derived score.
type Service struct {
	reputation ReputationStore
	accounts   AccountReader
	roles      RoleChecker
	auditor    AuditPublisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(reputation ReputationStore, accounts AccountReader, roles RoleChecker, auditor AuditPublisher, opts ...Option) (*Service, error) {
	if reputation == nil {
		return nil, errors.New("reputation store is required")
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
		reputation: reputation,
		accounts:   accounts,
		roles:      roles,
		auditor:    auditor,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Penalize charges the target an escalating penalty and returns the amount.
// The third penalty suspends the target for good.
func (s *Service) Penalize(ctx context.Context, caller, target domain.AccountID, severity uint64, reason string) (uint64, error) {
	if err := s.requireRole(ctx, caller, authz.RoleGovernor); err != nil {
		return 0, err
	}
	if err := models.CanPenalize(severity); err != nil {
		return 0, err
	}
	entry, err := s.findOrInit(ctx, target)
	if err != nil {
		return 0, err
	}

	now := requestcontext.Sequence(ctx)
	wasSuspended := entry.Suspended
	amount := entry.ApplyPenalty(severity, now)
	if err := s.reputation.Save(ctx, entry); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "save reputation")
	}

	if _, err := s.auditor.Emit(ctx, audit.Entry{
		Action:    audit.ActionPenaltyApplied,
		Actor:     caller,
		Target:    target,
		Sequence:  now,
		Detail:    fmt.Sprintf("severity=%d amount=%d reason=%s", severity, amount, reason),
		RequestID: requestcontext.RequestID(ctx),
	}); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "audit penalty")
	}
	if entry.Suspended && !wasSuspended {
		if _, err := s.auditor.Emit(ctx, audit.Entry{
			Action:    audit.ActionDelegateSuspended,
			Actor:     caller,
			Target:    target,
			Sequence:  now,
			RequestID: requestcontext.RequestID(ctx),
		}); err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "audit suspension")
		}
	}

	if s.metrics != nil {
		s.metrics.PenaltiesApplied.Inc()
	}
	return amount, nil
}

// RecordDisputeOutcome folds a resolved dispute into the target's score.
// Called by the dispute arbitrator inside its resolution transaction.
func (s *Service) RecordDisputeOutcome(ctx context.Context, target domain.AccountID, wasValid bool) error {
	entry, err := s.findOrInit(ctx, target)
	if err != nil {
		return err
	}
	entry.ApplyDisputeOutcome(wasValid)
	if err := s.reputation.Save(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save reputation")
	}
	return nil
}

// Get returns the target's entry; a target with no history reads as a clean
// slate rather than not found.
func (s *Service) Get(ctx context.Context, target domain.AccountID) (models.ReputationEntry, error) {
	entry, err := s.reputation.Find(ctx, target)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.NewReputationEntry(target), nil
	}
	if err != nil {
		return models.ReputationEntry{}, dErrors.Wrap(err, dErrors.CodeInternal, "load reputation")
	}
	return entry, nil
}

// Suspended is the eligibility read consumed by delegation and voting.
func (s *Service) Suspended(ctx context.Context, target domain.AccountID) (bool, error) {
	entry, err := s.Get(ctx, target)
	if err != nil {
		return false, err
	}
	return entry.Suspended, nil
}

// Score reports the target's dispute-derived standing.
func (s *Service) Score(ctx context.Context, target domain.AccountID) (uint64, error) {
	entry, err := s.Get(ctx, target)
	if err != nil {
		return 0, err
	}
	return entry.Score(), nil
}

func (s *Service) findOrInit(ctx context.Context, target domain.AccountID) (models.ReputationEntry, error) {
	entry, err := s.reputation.Find(ctx, target)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return models.ReputationEntry{}, dErrors.Wrap(err, dErrors.CodeInternal, "load reputation")
	}
	if _, err := s.accounts.FindByID(ctx, target); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.ReputationEntry{}, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return models.ReputationEntry{}, dErrors.Wrap(err, dErrors.CodeInternal, "load account")
	}
	return models.NewReputationEntry(target), nil
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
