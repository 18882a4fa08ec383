package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"quorum/internal/proposal/models"
	"quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
	txcontext "quorum/pkg/platform/tx"
)

// PostgresStore persists proposals; the BIGSERIAL id keeps the proposal
// counter monotonic across processes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema returns the DDL for the proposals table.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS proposals (
	id            BIGSERIAL PRIMARY KEY,
	title         TEXT   NOT NULL,
	description   TEXT   NOT NULL DEFAULT '',
	proposer      TEXT   NOT NULL,
	start_seq     BIGINT NOT NULL,
	end_seq       BIGINT NOT NULL,
	votes_for     BIGINT NOT NULL DEFAULT 0,
	votes_against BIGINT NOT NULL DEFAULT 0,
	status        TEXT   NOT NULL,
	created_at    BIGINT NOT NULL
);
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

func (s *PostgresStore) Create(ctx context.Context, p models.Proposal) (models.Proposal, error) {
	row := s.runner(ctx).QueryRowContext(ctx, `
		INSERT INTO proposals (title, description, proposer, start_seq, end_seq, votes_for, votes_against, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		p.Title, p.Description, p.Proposer.String(),
		uint64(p.StartSeq), uint64(p.EndSeq),
		p.VotesFor, p.VotesAgainst, string(p.Status), uint64(p.CreatedAt),
	)
	var id uint64
	if err := row.Scan(&id); err != nil {
		return models.Proposal{}, fmt.Errorf("create proposal: %w", err)
	}
	p.ID = domain.ProposalID(id)
	return p, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ProposalID) (models.Proposal, error) {
	query := `
		SELECT id, title, description, proposer, start_seq, end_seq, votes_for, votes_against, status, created_at
		FROM proposals WHERE id = $1`
	// A transition read locks the row: the tally write that follows is an
	// absolute value, so two concurrent casts must not read the same tally.
	if _, ok := txcontext.From(ctx); ok {
		query += " FOR UPDATE"
	}
	row := s.runner(ctx).QueryRowContext(ctx, query, uint64(id))
	p, err := scanProposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Proposal{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Proposal{}, fmt.Errorf("find proposal: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) Save(ctx context.Context, p models.Proposal) error {
	res, err := s.runner(ctx).ExecContext(ctx, `
		UPDATE proposals
		SET votes_for = $2, votes_against = $3, status = $4
		WHERE id = $1`,
		uint64(p.ID), p.VotesFor, p.VotesAgainst, string(p.Status),
	)
	if err != nil {
		return fmt.Errorf("save proposal: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save proposal: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (uint64, error) {
	var n uint64
	if err := s.runner(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM proposals`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count proposals: %w", err)
	}
	return n, nil
}

func scanProposal(row interface{ Scan(...any) error }) (models.Proposal, error) {
	var (
		p         models.Proposal
		id        uint64
		proposer  string
		startSeq  uint64
		endSeq    uint64
		status    string
		createdAt uint64
	)
	err := row.Scan(&id, &p.Title, &p.Description, &proposer, &startSeq, &endSeq,
		&p.VotesFor, &p.VotesAgainst, &status, &createdAt)
	if err != nil {
		return models.Proposal{}, err
	}
	p.ID = domain.ProposalID(id)
	p.Proposer = domain.AccountID(proposer)
	p.StartSeq = domain.Sequence(startSeq)
	p.EndSeq = domain.Sequence(endSeq)
	p.Status = models.Status(status)
	p.CreatedAt = domain.Sequence(createdAt)
	return p, nil
}
