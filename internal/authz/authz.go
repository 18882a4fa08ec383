// Package authz is the explicit capability set behind the administrative
// surface. Grants are keyed by account id and checked by set membership;
// nothing defaults to allowed. The contract owner is fixed at construction
// and is the only principal that can grant or revoke.
package authz

import (
	"context"
	"errors"
	"log/slog"

	"quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	audit "quorum/pkg/platform/audit"
	"quorum/pkg/requestcontext"
)

// Role is a named capability.
type Role string

const (
	// RoleAdmin may verify identities and mint shares.
	RoleAdmin Role = "admin"
	// RoleGovernor may penalize delegates and close proposals early.
	RoleGovernor Role = "governor"
	// RoleArbitrator may resolve disputes.
	RoleArbitrator Role = "arbitrator"
)

func (r Role) valid() bool {
	switch r {
	case RoleAdmin, RoleGovernor, RoleArbitrator:
		return true
	}
	return false
}

// Store persists the grant set.
type Store interface {
	Grant(ctx context.Context, account domain.AccountID, role Role) error
	Revoke(ctx context.Context, account domain.AccountID, role Role) error
	Has(ctx context.Context, account domain.AccountID, role Role) (bool, error)
	Roles(ctx context.Context, account domain.AccountID) ([]Role, error)
}

// AuditPublisher appends entries to the governance ledger.
type AuditPublisher interface {
	Emit(ctx context.Context, entry audit.Entry) (audit.Entry, error)
}

// Service owns role grants. The owner implicitly holds every role so a fresh
// deployment can bootstrap itself.
type Service struct {
	owner   domain.AccountID
	store   Store
	auditor AuditPublisher
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(owner domain.AccountID, store Store, auditor AuditPublisher, opts ...Option) (*Service, error) {
	if owner.IsNil() {
		return nil, errors.New("owner account is required")
	}
	if store == nil {
		return nil, errors.New("role store is required")
	}
	if auditor == nil {
		return nil, errors.New("audit publisher is required")
	}
	s := &Service{owner: owner, store: store, auditor: auditor, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Owner returns the contract owner.
func (s *Service) Owner() domain.AccountID { return s.owner }

// IsOwner reports whether the caller is the contract owner.
func (s *Service) IsOwner(caller domain.AccountID) bool { return caller == s.owner }

// Grant gives target the role. Owner-only.
func (s *Service) Grant(ctx context.Context, caller, target domain.AccountID, role Role) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	if !role.valid() {
		return dErrors.Newf(dErrors.CodeBadRequest, "unknown role %q", role)
	}
	if target.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "target account is required")
	}
	if err := s.store.Grant(ctx, target, role); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "grant role")
	}
	return s.emit(ctx, audit.ActionRoleGranted, caller, target, string(role))
}

// Revoke removes the role from target. Owner-only.
func (s *Service) Revoke(ctx context.Context, caller, target domain.AccountID, role Role) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	if !role.valid() {
		return dErrors.Newf(dErrors.CodeBadRequest, "unknown role %q", role)
	}
	if err := s.store.Revoke(ctx, target, role); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "revoke role")
	}
	return s.emit(ctx, audit.ActionRoleRevoked, caller, target, string(role))
}

// Check reports whether the account holds the role. The owner holds all
// roles.
func (s *Service) Check(ctx context.Context, account domain.AccountID, role Role) (bool, error) {
	if account == s.owner {
		return true, nil
	}
	return s.store.Has(ctx, account, role)
}

// Roles lists the account's grants, for the read surface.
func (s *Service) Roles(ctx context.Context, account domain.AccountID) ([]Role, error) {
	roles, err := s.store.Roles(ctx, account)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list roles")
	}
	return roles, nil
}

func (s *Service) requireOwner(caller domain.AccountID) error {
	if caller != s.owner {
		return dErrors.New(dErrors.CodeUnauthorized, "only the owner can manage roles")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, action audit.Action, actor, target domain.AccountID, role string) error {
	if _, err := s.auditor.Emit(ctx, audit.Entry{
		Action:    action,
		Actor:     actor,
		Target:    target,
		Sequence:  requestcontext.Sequence(ctx),
		Detail:    "role=" + role,
		RequestID: requestcontext.RequestID(ctx),
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit role change")
	}
	return nil
}
