package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"quorum/internal/account/models"
	"quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
	txcontext "quorum/pkg/platform/tx"
)

// PostgresStore persists accounts in PostgreSQL. The partial unique index on
// identity_hash is the reverse index behind the anti-Sybil check; the
// database rejects the second racing verification for the same hash.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema returns the DDL for the accounts table.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS accounts (
	id            TEXT    PRIMARY KEY,
	identity_hash TEXT    NOT NULL DEFAULT '',
	verified      BOOLEAN NOT NULL DEFAULT FALSE,
	shares        BIGINT  NOT NULL DEFAULT 0,
	voting_power  BIGINT  NOT NULL DEFAULT 0,
	active        BOOLEAN NOT NULL DEFAULT TRUE,
	created_at    BIGINT  NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS accounts_identity_hash_idx
	ON accounts (identity_hash) WHERE identity_hash <> '';
`
}

type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) runner(ctx context.Context) runner {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *PostgresStore) CreateIfAbsent(ctx context.Context, account models.Account) error {
	_, err := s.runner(ctx).ExecContext(ctx, `
		INSERT INTO accounts (id, identity_hash, verified, shares, voting_power, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		account.ID.String(), hashColumn(account), account.Verified,
		account.Shares, account.VotingPower, account.Active, uint64(account.CreatedAt),
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.AccountID) (models.Account, error) {
	query := `
		SELECT id, identity_hash, verified, shares, voting_power, active, created_at
		FROM accounts WHERE id = $1`
	// Share balances are written back as absolute values, so a transition
	// read locks the row against concurrent read-modify-writes.
	if _, ok := txcontext.From(ctx); ok {
		query += " FOR UPDATE"
	}
	return s.scanOne(s.runner(ctx).QueryRowContext(ctx, query, id.String()))
}

func (s *PostgresStore) FindByIdentityHash(ctx context.Context, hash domain.IdentityHash) (models.Account, error) {
	return s.scanOne(s.runner(ctx).QueryRowContext(ctx, `
		SELECT id, identity_hash, verified, shares, voting_power, active, created_at
		FROM accounts WHERE identity_hash = $1`, hash.String()))
}

func (s *PostgresStore) BindIdentity(ctx context.Context, account models.Account, hash domain.IdentityHash) error {
	res, err := s.runner(ctx).ExecContext(ctx, `
		UPDATE accounts SET identity_hash = $2, verified = TRUE
		WHERE id = $1 AND verified = FALSE`,
		account.ID.String(), hash.String(),
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("bind identity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bind identity: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, account models.Account) error {
	res, err := s.runner(ctx).ExecContext(ctx, `
		UPDATE accounts
		SET identity_hash = $2, verified = $3, shares = $4, voting_power = $5, active = $6
		WHERE id = $1`,
		account.ID.String(), hashColumn(account), account.Verified,
		account.Shares, account.VotingPower, account.Active,
	)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AdjustVotingPower(ctx context.Context, id domain.AccountID, delta int64) error {
	res, err := s.runner(ctx).ExecContext(ctx, `
		UPDATE accounts SET voting_power = voting_power + $2
		WHERE id = $1 AND voting_power + $2 >= 0`,
		id.String(), delta,
	)
	if err != nil {
		return fmt.Errorf("adjust voting power: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust voting power: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) scanOne(row *sql.Row) (models.Account, error) {
	var (
		account   models.Account
		id        string
		hash      string
		createdAt uint64
	)
	err := row.Scan(&id, &hash, &account.Verified, &account.Shares,
		&account.VotingPower, &account.Active, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("scan account: %w", err)
	}
	account.ID = domain.AccountID(id)
	account.CreatedAt = domain.Sequence(createdAt)
	if hash != "" {
		parsed, err := domain.ParseIdentityHash(hash)
		if err != nil {
			return models.Account{}, fmt.Errorf("stored identity hash corrupt: %w", err)
		}
		account.IdentityHash = parsed
	}
	return account, nil
}

func hashColumn(account models.Account) string {
	if account.IdentityHash.IsZero() {
		return ""
	}
	return account.IdentityHash.String()
}
