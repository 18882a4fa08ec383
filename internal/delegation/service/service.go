package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	accountmodels "quorum/internal/account/models"
	"quorum/internal/delegation/models"
	"quorum/internal/platform/metrics"
	"quorum/internal/policy"
	"quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	audit "quorum/pkg/platform/audit"
	"quorum/pkg/platform/sentinel"
	"quorum/pkg/requestcontext"
)

// DelegationStore is the persistence surface of the ledger.
type DelegationStore interface {
	Save(ctx context.Context, delegation models.Delegation) error
	FindByDelegator(ctx context.Context, delegator domain.AccountID) (models.Delegation, error)
	ListByDelegate(ctx context.Context, delegate domain.AccountID) ([]models.Delegation, error)
}

// AccountReader resolves accounts; the ledger reads shares but never mutates
// them.
type AccountReader interface {
	FindByID(ctx context.Context, id domain.AccountID) (accountmodels.Account, error)
}

// PowerMover applies the delegation-driven voting-power side of a transition.
// Implemented by the account store so both entries of the move land in the
// same transaction.
type PowerMover interface {
	AdjustVotingPower(ctx context.Context, id domain.AccountID, delta int64) error
}

// SuspensionReader reports delegate eligibility.
type SuspensionReader interface {
	Suspended(ctx context.Context, delegate domain.AccountID) (bool, error)
}

// AuditPublisher appends entries to the governance ledger.
type AuditPublisher interface {
	Emit(ctx context.Context, entry audit.Entry) (audit.Entry, error)
}

// Service is the DelegationLedger: one revocable, time-locked delegation per
// account.
type Service struct {
	delegations DelegationStore
	accounts    AccountReader
	power       PowerMover
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

func New(delegations DelegationStore, accounts AccountReader, power PowerMover, suspensions SuspensionReader, auditor AuditPublisher, opts ...Option) (*Service, error) {
	if delegations == nil {
		return nil, errors.New("delegation store is required")
	}
	if accounts == nil {
		return nil, errors.New("account reader is required")
	}
	if power == nil {
		return nil, errors.New("power mover is required")
	}
	if suspensions == nil {
		return nil, errors.New("suspension reader is required")
	}
	if auditor == nil {
		return nil, errors.New("audit publisher is required")
	}
	s := &Service{
		delegations: delegations,
		accounts:    accounts,
		power:       power,
		suspensions: suspensions,
		auditor:     auditor,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Delegate points the delegator's voting power at delegate for at least
// lockDuration sequences. An existing delegation that is still locked rejects
// the call outright; an expired one is replaced, returning its power first.
func (s *Service) Delegate(ctx context.Context, delegator, delegate domain.AccountID, lockDuration uint64) error {
	now := requestcontext.Sequence(ctx)

	if lockDuration < policy.MinLockDuration {
		return dErrors.Newf(dErrors.CodeBadRequest, "lock duration must be at least %d sequences", policy.MinLockDuration)
	}
	if delegator == delegate {
		return dErrors.New(dErrors.CodeBadRequest, "cannot delegate to self")
	}

	delegatorAccount, err := s.findAccount(ctx, delegator)
	if err != nil {
		return err
	}
	if !delegatorAccount.Verified {
		return dErrors.New(dErrors.CodeInvalidState, "delegator is not verified")
	}
	if _, err := s.findAccount(ctx, delegate); err != nil {
		return err
	}

	suspended, err := s.suspensions.Suspended(ctx, delegate)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "read suspension")
	}
	if suspended {
		return dErrors.New(dErrors.CodeForbidden, "delegate is suspended")
	}

	previous, err := s.delegations.FindByDelegator(ctx, delegator)
	switch {
	case err == nil:
		if err := previous.CanReplace(now); err != nil {
			return err
		}
	case errors.Is(err, sentinel.ErrNotFound):
		// First delegation for this account.
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "load delegation")
	}

	next := models.NewDelegation(delegator, delegate, lockDuration, now)
	if err := s.delegations.Save(ctx, next); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save delegation")
	}

	// Move the delegator's own-share power onto the new delegate. When an
	// expired delegation is being replaced the power sits on the old
	// delegate, otherwise on the delegator.
	source := delegator
	if previous.Active {
		source = previous.Delegate
	}
	shares := int64(delegatorAccount.Shares)
	if source != delegate && shares > 0 {
		if err := s.power.AdjustVotingPower(ctx, source, -shares); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "move power off source")
		}
		if err := s.power.AdjustVotingPower(ctx, delegate, shares); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "move power onto delegate")
		}
	}

	if _, err := s.auditor.Emit(ctx, audit.Entry{
		Action:    audit.ActionDelegationCreated,
		Actor:     delegator,
		Target:    delegate,
		Sequence:  now,
		Detail:    fmt.Sprintf("lock_until=%d", next.LockUntil),
		RequestID: requestcontext.RequestID(ctx),
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit delegation")
	}

	if s.metrics != nil {
		s.metrics.DelegationsCreated.Inc()
	}
	return nil
}

// Revoke ends the delegator's delegation once its lock has expired and
// returns the delegated power.
func (s *Service) Revoke(ctx context.Context, delegator domain.AccountID) error {
	now := requestcontext.Sequence(ctx)

	delegation, err := s.delegations.FindByDelegator(ctx, delegator)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "no delegation for account")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "load delegation")
	}
	if err := delegation.CanRevoke(now); err != nil {
		return err
	}
	delegation.ApplyRevocation()

	if err := s.delegations.Save(ctx, delegation); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save delegation")
	}

	delegatorAccount, err := s.findAccount(ctx, delegator)
	if err != nil {
		return err
	}
	shares := int64(delegatorAccount.Shares)
	if shares > 0 {
		if err := s.power.AdjustVotingPower(ctx, delegation.Delegate, -shares); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "move power off delegate")
		}
		if err := s.power.AdjustVotingPower(ctx, delegator, shares); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "return power to delegator")
		}
	}

	if _, err := s.auditor.Emit(ctx, audit.Entry{
		Action:    audit.ActionDelegationRevoked,
		Actor:     delegator,
		Target:    delegation.Delegate,
		Sequence:  now,
		RequestID: requestcontext.RequestID(ctx),
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit revocation")
	}
	return nil
}

// Get is the read surface for delegation info.
func (s *Service) Get(ctx context.Context, delegator domain.AccountID) (models.Delegation, error) {
	delegation, err := s.delegations.FindByDelegator(ctx, delegator)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Delegation{}, dErrors.New(dErrors.CodeNotFound, "no delegation for account")
	}
	if err != nil {
		return models.Delegation{}, dErrors.Wrap(err, dErrors.CodeInternal, "load delegation")
	}
	return delegation, nil
}

// ActiveDelegate reports where the delegator's power currently sits.
func (s *Service) ActiveDelegate(ctx context.Context, delegator domain.AccountID) (domain.AccountID, bool, error) {
	delegation, err := s.delegations.FindByDelegator(ctx, delegator)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if !delegation.Active {
		return "", false, nil
	}
	return delegation.Delegate, true, nil
}

// LockedAt reports whether the delegator's balance is pinned at the given
// sequence.
func (s *Service) LockedAt(ctx context.Context, delegator domain.AccountID, seq domain.Sequence) (bool, error) {
	delegation, err := s.delegations.FindByDelegator(ctx, delegator)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return delegation.LockedAt(seq), nil
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
