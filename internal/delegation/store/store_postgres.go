package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"quorum/internal/delegation/models"
	"quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
	txcontext "quorum/pkg/platform/tx"
)

// PostgresStore persists delegations, one row per delegator.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema returns the DDL for the delegations table.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS delegations (
	delegator  TEXT    PRIMARY KEY,
	delegate   TEXT    NOT NULL,
	lock_until BIGINT  NOT NULL,
	created_at BIGINT  NOT NULL,
	active     BOOLEAN NOT NULL
);
CREATE INDEX IF NOT EXISTS delegations_delegate_idx ON delegations (delegate) WHERE active;
`
}

type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) runner(ctx context.Context) runner {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Save(ctx context.Context, d models.Delegation) error {
	_, err := s.runner(ctx).ExecContext(ctx, `
		INSERT INTO delegations (delegator, delegate, lock_until, created_at, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (delegator) DO UPDATE
		SET delegate = $2, lock_until = $3, created_at = $4, active = $5`,
		d.Delegator.String(), d.Delegate.String(),
		uint64(d.LockUntil), uint64(d.CreatedAt), d.Active,
	)
	if err != nil {
		return fmt.Errorf("save delegation: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByDelegator(ctx context.Context, delegator domain.AccountID) (models.Delegation, error) {
	query := `
		SELECT delegator, delegate, lock_until, created_at, active
		FROM delegations WHERE delegator = $1`
	// Replace and revoke read-modify-write the row; a transition read locks it.
	if _, ok := txcontext.From(ctx); ok {
		query += " FOR UPDATE"
	}
	row := s.runner(ctx).QueryRowContext(ctx, query, delegator.String())
	d, err := scanDelegation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Delegation{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Delegation{}, fmt.Errorf("find delegation: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) ListByDelegate(ctx context.Context, delegate domain.AccountID) ([]models.Delegation, error) {
	rows, err := s.runner(ctx).QueryContext(ctx, `
		SELECT delegator, delegate, lock_until, created_at, active
		FROM delegations WHERE delegate = $1 AND active ORDER BY delegator`,
		delegate.String())
	if err != nil {
		return nil, fmt.Errorf("list delegations: %w", err)
	}
	defer rows.Close()

	var out []models.Delegation
	for rows.Next() {
		d, err := scanDelegation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delegation: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDelegation(row interface{ Scan(...any) error }) (models.Delegation, error) {
	var (
		d         models.Delegation
		delegator string
		delegate  string
		lockUntil uint64
		createdAt uint64
	)
	if err := row.Scan(&delegator, &delegate, &lockUntil, &createdAt, &d.Active); err != nil {
		return models.Delegation{}, err
	}
	d.Delegator = domain.AccountID(delegator)
	d.Delegate = domain.AccountID(delegate)
	d.LockUntil = domain.Sequence(lockUntil)
	d.CreatedAt = domain.Sequence(createdAt)
	return d, nil
}
