package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"quorum/internal/account/models"
	"quorum/internal/authz"
	"quorum/internal/platform/metrics"
	"quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	audit "quorum/pkg/platform/audit"
	"quorum/pkg/platform/sentinel"
	"quorum/pkg/requestcontext"
)

// AccountStore is the persistence surface the registry needs. The identity
// reverse index lives behind BindIdentity/FindByIdentityHash.
type AccountStore interface {
	CreateIfAbsent(ctx context.Context, account models.Account) error
	FindByID(ctx context.Context, id domain.AccountID) (models.Account, error)
	FindByIdentityHash(ctx context.Context, hash domain.IdentityHash) (models.Account, error)
	BindIdentity(ctx context.Context, account models.Account, hash domain.IdentityHash) error
	Save(ctx context.Context, account models.Account) error
	AdjustVotingPower(ctx context.Context, id domain.AccountID, delta int64) error
}

// RoleChecker gates the administrative surface.
type RoleChecker interface {
	Check(ctx context.Context, account domain.AccountID, role authz.Role) (bool, error)
}

// DelegationReader tells the registry where a balance delta's voting power
// belongs and whether a balance is pinned by an active lock.
type DelegationReader interface {
	ActiveDelegate(ctx context.Context, delegator domain.AccountID) (domain.AccountID, bool, error)
	LockedAt(ctx context.Context, delegator domain.AccountID, seq domain.Sequence) (bool, error)
}

// AuditPublisher appends entries to the governance ledger.
type AuditPublisher interface {
	Emit(ctx context.Context, entry audit.Entry) (audit.Entry, error)
}

// Service is the AccountRegistry: the source of truth for shares and voting
// power, and the owner of identity verification.
type Service struct {
	accounts    AccountStore
	roles       RoleChecker
	delegations DelegationReader
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

func New(accounts AccountStore, roles RoleChecker, delegations DelegationReader, auditor AuditPublisher, opts ...Option) (*Service, error) {
	if accounts == nil {
		return nil, errors.New("account store is required")
	}
	if roles == nil {
		return nil, errors.New("role checker is required")
	}
	if delegations == nil {
		return nil, errors.New("delegation reader is required")
	}
	if auditor == nil {
		return nil, errors.New("audit publisher is required")
	}
	s := &Service{
		accounts:    accounts,
		roles:       roles,
		delegations: delegations,
		auditor:     auditor,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates an unverified account for the caller.
func (s *Service) Register(ctx context.Context, caller domain.AccountID) (models.Account, error) {
	if caller.IsNil() {
		return models.Account{}, dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	seq := requestcontext.Sequence(ctx)

	account := models.NewAccount(caller, seq)
	if err := s.accounts.CreateIfAbsent(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.Account{}, dErrors.New(dErrors.CodeConflict, "account is already registered")
		}
		return models.Account{}, dErrors.Wrap(err, dErrors.CodeInternal, "create account")
	}

	if _, err := s.auditor.Emit(ctx, audit.Entry{
		Action:    audit.ActionAccountRegistered,
		Actor:     caller,
		Target:    caller,
		Sequence:  seq,
		RequestID: requestcontext.RequestID(ctx),
	}); err != nil {
		return models.Account{}, dErrors.Wrap(err, dErrors.CodeInternal, "audit registration")
	}

	if s.metrics != nil {
		s.metrics.AccountsRegistered.Inc()
	}
	return account, nil
}

// VerifyIdentity binds an identity hash to the account. The hash must not be
// held by any other verified account; the store's reverse index makes the
// check O(1) and race-safe (exactly one of two concurrent verifications for
// the same hash wins).
func (s *Service) VerifyIdentity(ctx context.Context, admin, target domain.AccountID, hash domain.IdentityHash) error {
	if err := s.requireRole(ctx, admin, authz.RoleAdmin); err != nil {
		return err
	}

	account, err := s.findAccount(ctx, target)
	if err != nil {
		return err
	}
	if err := account.CanVerify(hash); err != nil {
		return err
	}
	account.ApplyVerification(hash)

	if err := s.accounts.BindIdentity(ctx, account, hash); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return dErrors.New(dErrors.CodeConflict, "identity hash is already bound to a verified account")
		case errors.Is(err, sentinel.ErrInvalidState):
			return dErrors.New(dErrors.CodeConflict, "account is already verified")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "bind identity")
		}
	}

	seq := requestcontext.Sequence(ctx)
	if _, err := s.auditor.Emit(ctx, audit.Entry{
		Action:    audit.ActionIdentityVerified,
		Actor:     admin,
		Target:    target,
		Sequence:  seq,
		Detail:    "hash=" + hash.String(),
		RequestID: requestcontext.RequestID(ctx),
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit verification")
	}

	if s.metrics != nil {
		s.metrics.IdentitiesVerified.Inc()
	}
	s.logger.Info("identity verified", "target", target.String(), "seq", uint64(seq))
	return nil
}

// MintShares issues new shares to a verified account and lands the voting
// power delta on the account's active delegate, if any, in the same
// transition.
func (s *Service) MintShares(ctx context.Context, admin, target domain.AccountID, amount uint64) (uint64, error) {
	if err := s.requireRole(ctx, admin, authz.RoleAdmin); err != nil {
		return 0, err
	}

	account, err := s.findAccount(ctx, target)
	if err != nil {
		return 0, err
	}
	if err := account.CanMint(amount); err != nil {
		return 0, err
	}
	account.ApplyMint(amount)

	if err := s.accounts.Save(ctx, account); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "save account")
	}
	if err := s.creditPower(ctx, target, amount); err != nil {
		return 0, err
	}

	seq := requestcontext.Sequence(ctx)
	if _, err := s.auditor.Emit(ctx, audit.Entry{
		Action:    audit.ActionSharesMinted,
		Actor:     admin,
		Target:    target,
		Sequence:  seq,
		Detail:    fmt.Sprintf("amount=%d balance=%d", amount, account.Shares),
		RequestID: requestcontext.RequestID(ctx),
	}); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "audit mint")
	}

	if s.metrics != nil {
		s.metrics.SharesMinted.Add(float64(amount))
	}
	return account.Shares, nil
}

// TransferShares moves shares between accounts. A sender whose balance is
// pledged to an active delegation lock cannot transfer: locks and transfers
// are mutually exclusive.
func (s *Service) TransferShares(ctx context.Context, caller, to domain.AccountID, amount uint64) error {
	seq := requestcontext.Sequence(ctx)

	locked, err := s.delegations.LockedAt(ctx, caller, seq)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "read delegation lock")
	}
	if locked {
		return dErrors.New(dErrors.CodeInvalidState, "shares are locked by an active delegation")
	}

	sender, err := s.findAccount(ctx, caller)
	if err != nil {
		return err
	}
	receiver, err := s.findAccount(ctx, to)
	if err != nil {
		return err
	}
	if err := sender.CanDebit(amount); err != nil {
		return err
	}

	sender.ApplyDebit(amount)
	receiver.ApplyCredit(amount)

	if err := s.accounts.Save(ctx, sender); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save sender")
	}
	if err := s.accounts.Save(ctx, receiver); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save receiver")
	}

	// Each side's power delta lands where that side's power currently sits:
	// the account itself, or its active delegate. A lock-expired delegation
	// stays active until revoked, so the sender's power may be parked on a
	// delegate even though the transfer itself is allowed.
	if err := s.debitPower(ctx, caller, amount); err != nil {
		return err
	}
	if err := s.creditPower(ctx, to, amount); err != nil {
		return err
	}

	if _, err := s.auditor.Emit(ctx, audit.Entry{
		Action:    audit.ActionSharesTransferred,
		Actor:     caller,
		Target:    to,
		Sequence:  seq,
		Detail:    fmt.Sprintf("amount=%d", amount),
		RequestID: requestcontext.RequestID(ctx),
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit transfer")
	}
	return nil
}

// GetAccount is the read surface for account info.
func (s *Service) GetAccount(ctx context.Context, id domain.AccountID) (models.Account, error) {
	return s.findAccount(ctx, id)
}

// ResolveByIdentityHash answers "who holds this identity" via the reverse
// index.
func (s *Service) ResolveByIdentityHash(ctx context.Context, hash domain.IdentityHash) (models.Account, error) {
	account, err := s.accounts.FindByIdentityHash(ctx, hash)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Account{}, dErrors.New(dErrors.CodeNotFound, "identity hash is not bound")
	}
	if err != nil {
		return models.Account{}, dErrors.Wrap(err, dErrors.CodeInternal, "resolve identity hash")
	}
	return account, nil
}

// VotingPower reports an account's current effective voting power.
func (s *Service) VotingPower(ctx context.Context, id domain.AccountID) (uint64, error) {
	account, err := s.findAccount(ctx, id)
	if err != nil {
		return 0, err
	}
	return account.VotingPower, nil
}

func (s *Service) creditPower(ctx context.Context, holder domain.AccountID, amount uint64) error {
	beneficiary, err := s.powerHolder(ctx, holder)
	if err != nil {
		return err
	}
	if err := s.accounts.AdjustVotingPower(ctx, beneficiary, int64(amount)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "credit voting power")
	}
	return nil
}

func (s *Service) debitPower(ctx context.Context, holder domain.AccountID, amount uint64) error {
	source, err := s.powerHolder(ctx, holder)
	if err != nil {
		return err
	}
	if err := s.accounts.AdjustVotingPower(ctx, source, -int64(amount)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "debit voting power")
	}
	return nil
}

// powerHolder resolves where an account's own-share power currently sits.
func (s *Service) powerHolder(ctx context.Context, holder domain.AccountID) (domain.AccountID, error) {
	if delegate, ok, err := s.delegations.ActiveDelegate(ctx, holder); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "read active delegate")
	} else if ok {
		return delegate, nil
	}
	return holder, nil
}

func (s *Service) findAccount(ctx context.Context, id domain.AccountID) (models.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Account{}, dErrors.New(dErrors.CodeNotFound, "account not found")
	}
	if err != nil {
		return models.Account{}, dErrors.Wrap(err, dErrors.CodeInternal, "load account")
	}
	return account, nil
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
