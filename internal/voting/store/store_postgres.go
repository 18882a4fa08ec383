package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"quorum/internal/voting/models"
	"quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
	txcontext "quorum/pkg/platform/tx"
)

// PostgresStore persists vote records. The composite primary key enforces
// one vote per (proposal, voter) pair.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema returns the DDL for the votes table.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS votes (
	proposal_id BIGINT NOT NULL,
	voter       TEXT   NOT NULL,
	choice      TEXT   NOT NULL,
	weight      BIGINT NOT NULL,
	sequence    BIGINT NOT NULL,
	PRIMARY KEY (proposal_id, voter)
);
`
}

type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
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

func (s *PostgresStore) Insert(ctx context.Context, record models.VoteRecord) error {
	_, err := s.runner(ctx).ExecContext(ctx, `
		INSERT INTO votes (proposal_id, voter, choice, weight, sequence)
		VALUES ($1, $2, $3, $4, $5)`,
		uint64(record.ProposalID), record.Voter.String(), string(record.Choice),
		record.Weight, uint64(record.Sequence),
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, proposalID domain.ProposalID, voter domain.AccountID) (models.VoteRecord, error) {
	row := s.runner(ctx).QueryRowContext(ctx, `
		SELECT proposal_id, voter, choice, weight, sequence
		FROM votes WHERE proposal_id = $1 AND voter = $2`,
		uint64(proposalID), voter.String())
	record, err := scanVote(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.VoteRecord{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.VoteRecord{}, fmt.Errorf("find vote: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListByProposal(ctx context.Context, proposalID domain.ProposalID) ([]models.VoteRecord, error) {
	rows, err := s.runner(ctx).QueryContext(ctx, `
		SELECT proposal_id, voter, choice, weight, sequence
		FROM votes WHERE proposal_id = $1
		ORDER BY sequence, voter`,
		uint64(proposalID))
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()

	var out []models.VoteRecord
	for rows.Next() {
		record, err := scanVote(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list votes: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	return out, nil
}

func scanVote(scan func(...any) error) (models.VoteRecord, error) {
	var (
		record     models.VoteRecord
		proposalID uint64
		voter      string
		choice     string
		seq        uint64
	)
	if err := scan(&proposalID, &voter, &choice, &record.Weight, &seq); err != nil {
		return models.VoteRecord{}, err
	}
	record.ProposalID = domain.ProposalID(proposalID)
	record.Voter = domain.AccountID(voter)
	record.Choice = models.Choice(choice)
	record.Sequence = domain.Sequence(seq)
	return record, nil
}
