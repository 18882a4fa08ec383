package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"quorum/internal/dispute/models"
	"quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
	txcontext "quorum/pkg/platform/tx"
)

// PostgresStore persists disputes and their evidence. The partial unique
// index enforces one pending dispute per (reporter, target, proposal) triple;
// evidence rows are append-only with the index as position.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema returns the DDL for the dispute tables.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS disputes (
	id                  BIGSERIAL PRIMARY KEY,
	reporter            TEXT   NOT NULL,
	target              TEXT   NOT NULL,
	proposal_id         BIGINT NOT NULL DEFAULT 0,
	description         TEXT   NOT NULL,
	stake               BIGINT NOT NULL,
	status              TEXT   NOT NULL,
	resolved_by         TEXT,
	resolution_reason   TEXT,
	resolution_sequence BIGINT,
	created_at          BIGINT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS disputes_open_triple
	ON disputes (reporter, target, proposal_id)
	WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS dispute_evidence (
	dispute_id BIGINT NOT NULL REFERENCES disputes (id),
	position   INT    NOT NULL,
	submitter  TEXT   NOT NULL,
	hash       TEXT   NOT NULL,
	kind       TEXT   NOT NULL,
	sequence   BIGINT NOT NULL,
	PRIMARY KEY (dispute_id, position)
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

func (s *PostgresStore) Create(ctx context.Context, dispute models.Dispute) (models.Dispute, error) {
	row := s.runner(ctx).QueryRowContext(ctx, `
		INSERT INTO disputes (reporter, target, proposal_id, description, stake, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		dispute.Reporter.String(), dispute.Target.String(), uint64(dispute.ProposalID),
		dispute.Description, dispute.Stake, string(dispute.Status), uint64(dispute.CreatedAt),
	)
	var id uint64
	if err := row.Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return models.Dispute{}, sentinel.ErrConflict
		}
		return models.Dispute{}, fmt.Errorf("create dispute: %w", err)
	}
	dispute.ID = domain.DisputeID(id)
	return dispute, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.DisputeID) (models.Dispute, error) {
	query := `
		SELECT id, reporter, target, proposal_id, description, stake, status,
		       resolved_by, resolution_reason, resolution_sequence, created_at
		FROM disputes WHERE id = $1`
	// Racing resolutions must not both observe the dispute as pending.
	if _, ok := txcontext.From(ctx); ok {
		query += " FOR UPDATE"
	}
	row := s.runner(ctx).QueryRowContext(ctx, query, uint64(id))
	dispute, err := scanDispute(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Dispute{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Dispute{}, fmt.Errorf("find dispute: %w", err)
	}
	if dispute.Evidence, err = s.loadEvidence(ctx, dispute.ID); err != nil {
		return models.Dispute{}, err
	}
	return dispute, nil
}

// Save updates the lifecycle columns and appends any evidence rows beyond
// those already persisted. Existing evidence rows are never touched.
func (s *PostgresStore) Save(ctx context.Context, dispute models.Dispute) error {
	r := s.runner(ctx)

	var resolvedBy, reason sql.NullString
	var resolutionSeq sql.NullInt64
	if dispute.Resolution != nil {
		resolvedBy = sql.NullString{String: dispute.Resolution.By.String(), Valid: true}
		reason = sql.NullString{String: dispute.Resolution.Reason, Valid: true}
		resolutionSeq = sql.NullInt64{Int64: int64(dispute.Resolution.Sequence), Valid: true}
	}
	res, err := r.ExecContext(ctx, `
		UPDATE disputes
		SET status = $2, resolved_by = $3, resolution_reason = $4, resolution_sequence = $5
		WHERE id = $1`,
		uint64(dispute.ID), string(dispute.Status), resolvedBy, reason, resolutionSeq,
	)
	if err != nil {
		return fmt.Errorf("save dispute: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save dispute: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}

	var persisted int
	if err := r.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dispute_evidence WHERE dispute_id = $1`,
		uint64(dispute.ID)).Scan(&persisted); err != nil {
		return fmt.Errorf("count evidence: %w", err)
	}
	for _, evidence := range dispute.Evidence[min(persisted, len(dispute.Evidence)):] {
		if _, err := r.ExecContext(ctx, `
			INSERT INTO dispute_evidence (dispute_id, position, submitter, hash, kind, sequence)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			uint64(dispute.ID), evidence.Index, evidence.Submitter.String(),
			evidence.Hash, string(evidence.Kind), uint64(evidence.Sequence),
		); err != nil {
			return fmt.Errorf("append evidence: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListByTarget(ctx context.Context, target domain.AccountID) ([]models.Dispute, error) {
	rows, err := s.runner(ctx).QueryContext(ctx, `
		SELECT id, reporter, target, proposal_id, description, stake, status,
		       resolved_by, resolution_reason, resolution_sequence, created_at
		FROM disputes WHERE target = $1 ORDER BY id`, target.String())
	if err != nil {
		return nil, fmt.Errorf("list disputes: %w", err)
	}
	defer rows.Close()

	var out []models.Dispute
	for rows.Next() {
		dispute, err := scanDispute(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list disputes: %w", err)
		}
		out = append(out, dispute)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list disputes: %w", err)
	}
	for i := range out {
		if out[i].Evidence, err = s.loadEvidence(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ListPending returns the unresolved disputes, oldest first. Evidence is not
// loaded; pending reconciliation only needs the stakes.
func (s *PostgresStore) ListPending(ctx context.Context) ([]models.Dispute, error) {
	rows, err := s.runner(ctx).QueryContext(ctx, `
		SELECT id, reporter, target, proposal_id, description, stake, status,
		       resolved_by, resolution_reason, resolution_sequence, created_at
		FROM disputes WHERE status = 'pending' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list pending disputes: %w", err)
	}
	defer rows.Close()

	var out []models.Dispute
	for rows.Next() {
		dispute, err := scanDispute(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list pending disputes: %w", err)
		}
		out = append(out, dispute)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Count(ctx context.Context) (uint64, error) {
	var count uint64
	if err := s.runner(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM disputes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count disputes: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) loadEvidence(ctx context.Context, id domain.DisputeID) ([]models.Evidence, error) {
	rows, err := s.runner(ctx).QueryContext(ctx, `
		SELECT position, submitter, hash, kind, sequence
		FROM dispute_evidence WHERE dispute_id = $1 ORDER BY position`, uint64(id))
	if err != nil {
		return nil, fmt.Errorf("load evidence: %w", err)
	}
	defer rows.Close()

	var out []models.Evidence
	for rows.Next() {
		var (
			evidence  models.Evidence
			submitter string
			kind      string
			seq       uint64
		)
		if err := rows.Scan(&evidence.Index, &submitter, &evidence.Hash, &kind, &seq); err != nil {
			return nil, fmt.Errorf("load evidence: %w", err)
		}
		evidence.Submitter = domain.AccountID(submitter)
		evidence.Kind = models.EvidenceKind(kind)
		evidence.Sequence = domain.Sequence(seq)
		out = append(out, evidence)
	}
	return out, rows.Err()
}

func scanDispute(scan func(...any) error) (models.Dispute, error) {
	var (
		dispute       models.Dispute
		id            uint64
		reporter      string
		target        string
		proposalID    uint64
		status        string
		resolvedBy    sql.NullString
		reason        sql.NullString
		resolutionSeq sql.NullInt64
		createdAt     uint64
	)
	err := scan(&id, &reporter, &target, &proposalID, &dispute.Description, &dispute.Stake,
		&status, &resolvedBy, &reason, &resolutionSeq, &createdAt)
	if err != nil {
		return models.Dispute{}, err
	}
	dispute.ID = domain.DisputeID(id)
	dispute.Reporter = domain.AccountID(reporter)
	dispute.Target = domain.AccountID(target)
	dispute.ProposalID = domain.ProposalID(proposalID)
	dispute.Status = models.Status(status)
	dispute.CreatedAt = domain.Sequence(createdAt)
	if resolvedBy.Valid {
		dispute.Resolution = &models.Resolution{
			By:       domain.AccountID(resolvedBy.String),
			Reason:   reason.String,
			Sequence: domain.Sequence(resolutionSeq.Int64),
		}
	}
	return dispute, nil
}
