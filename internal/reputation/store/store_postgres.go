package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"quorum/internal/reputation/models"
	"quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
	txcontext "quorum/pkg/platform/tx"
)

// PostgresStore persists reputation entries keyed by delegate.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema returns the DDL for the reputation table.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS reputation (
	target           TEXT    PRIMARY KEY,
	total_penalties  BIGINT  NOT NULL DEFAULT 0,
	penalty_count    BIGINT  NOT NULL DEFAULT 0,
	suspended        BOOLEAN NOT NULL DEFAULT FALSE,
	last_penalty_seq BIGINT  NOT NULL DEFAULT 0,
	total_disputes   BIGINT  NOT NULL DEFAULT 0,
	valid_disputes   BIGINT  NOT NULL DEFAULT 0
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

func (s *PostgresStore) Find(ctx context.Context, target domain.AccountID) (models.ReputationEntry, error) {
	query := `
		SELECT target, total_penalties, penalty_count, suspended, last_penalty_seq, total_disputes, valid_disputes
		FROM reputation WHERE target = $1`
	// Penalty escalation depends on the prior count; a transition read locks it.
	if _, ok := txcontext.From(ctx); ok {
		query += " FOR UPDATE"
	}
	row := s.runner(ctx).QueryRowContext(ctx, query, target.String())

	var (
		entry   models.ReputationEntry
		id      string
		lastSeq uint64
	)
	err := row.Scan(&id, &entry.TotalPenalties, &entry.PenaltyCount, &entry.Suspended,
		&lastSeq, &entry.TotalDisputes, &entry.ValidDisputes)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ReputationEntry{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.ReputationEntry{}, fmt.Errorf("find reputation: %w", err)
	}
	entry.Target = domain.AccountID(id)
	entry.LastPenaltySeq = domain.Sequence(lastSeq)
	return entry, nil
}

func (s *PostgresStore) Save(ctx context.Context, entry models.ReputationEntry) error {
	_, err := s.runner(ctx).ExecContext(ctx, `
		INSERT INTO reputation (target, total_penalties, penalty_count, suspended, last_penalty_seq, total_disputes, valid_disputes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (target) DO UPDATE SET
			total_penalties  = EXCLUDED.total_penalties,
			penalty_count    = EXCLUDED.penalty_count,
			suspended        = EXCLUDED.suspended,
			last_penalty_seq = EXCLUDED.last_penalty_seq,
			total_disputes   = EXCLUDED.total_disputes,
			valid_disputes   = EXCLUDED.valid_disputes`,
		entry.Target.String(), entry.TotalPenalties, entry.PenaltyCount, entry.Suspended,
		uint64(entry.LastPenaltySeq), entry.TotalDisputes, entry.ValidDisputes,
	)
	if err != nil {
		return fmt.Errorf("save reputation: %w", err)
	}
	return nil
}
