package authz

import (
	"context"
	"database/sql"
	"fmt"

	"quorum/pkg/domain"
	txcontext "quorum/pkg/platform/tx"
)

// PostgresStore persists grants in a single membership table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema returns the DDL for the role grants table.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS role_grants (
	account TEXT NOT NULL,
	role    TEXT NOT NULL,
	PRIMARY KEY (account, role)
);
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

func (s *PostgresStore) Grant(ctx context.Context, account domain.AccountID, role Role) error {
	_, err := s.runner(ctx).ExecContext(ctx, `
		INSERT INTO role_grants (account, role) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		account.String(), string(role))
	if err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}

func (s *PostgresStore) Revoke(ctx context.Context, account domain.AccountID, role Role) error {
	_, err := s.runner(ctx).ExecContext(ctx,
		`DELETE FROM role_grants WHERE account = $1 AND role = $2`,
		account.String(), string(role))
	if err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}
	return nil
}

func (s *PostgresStore) Has(ctx context.Context, account domain.AccountID, role Role) (bool, error) {
	var exists bool
	err := s.runner(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM role_grants WHERE account = $1 AND role = $2)`,
		account.String(), string(role)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check role: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Roles(ctx context.Context, account domain.AccountID) ([]Role, error) {
	rows, err := s.runner(ctx).QueryContext(ctx,
		`SELECT role FROM role_grants WHERE account = $1 ORDER BY role`,
		account.String())
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var out []Role
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		out = append(out, Role(role))
	}
	return out, rows.Err()
}
