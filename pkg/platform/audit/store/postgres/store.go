package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"quorum/pkg/domain"
	audit "quorum/pkg/platform/audit"
	"quorum/pkg/platform/sentinel"
	txcontext "quorum/pkg/platform/tx"
)

// Store implements audit.Store on PostgreSQL. The entry id comes from a
// BIGSERIAL column, so the database is the owner of the log counter and ids
// stay monotonic across processes. Appends join the transition's transaction
// via tx-in-context.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Schema returns the DDL for the audit log table.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS audit_log (
	id          BIGSERIAL PRIMARY KEY,
	action      TEXT   NOT NULL,
	category    TEXT   NOT NULL,
	actor       TEXT   NOT NULL,
	target      TEXT   NOT NULL DEFAULT '',
	proposal_id BIGINT NOT NULL DEFAULT 0,
	sequence    BIGINT NOT NULL,
	detail      TEXT   NOT NULL DEFAULT '',
	request_id  TEXT   NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_log_actor_idx ON audit_log (actor, id);
`
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) runner(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	row := s.runner(ctx).QueryRowContext(ctx, `
		INSERT INTO audit_log (action, category, actor, target, proposal_id, sequence, detail, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		string(entry.Action),
		string(entry.Action.Category()),
		entry.Actor.String(),
		entry.Target.String(),
		uint64(entry.ProposalID),
		uint64(entry.Sequence),
		entry.Detail,
		entry.RequestID,
	)
	var id uint64
	if err := row.Scan(&id); err != nil {
		return audit.Entry{}, fmt.Errorf("append audit entry: %w", err)
	}
	entry.ID = domain.EntryID(id)
	return entry, nil
}

const selectColumns = `id, action, actor, target, proposal_id, sequence, detail, request_id`

func scanEntry(row interface{ Scan(...any) error }) (audit.Entry, error) {
	var (
		e          audit.Entry
		id         uint64
		action     string
		actor      string
		target     string
		proposalID uint64
		sequence   uint64
	)
	if err := row.Scan(&id, &action, &actor, &target, &proposalID, &sequence, &e.Detail, &e.RequestID); err != nil {
		return audit.Entry{}, err
	}
	e.ID = domain.EntryID(id)
	e.Action = audit.Action(action)
	e.Actor = domain.AccountID(actor)
	e.Target = domain.AccountID(target)
	e.ProposalID = domain.ProposalID(proposalID)
	e.Sequence = domain.Sequence(sequence)
	return e, nil
}

func (s *Store) GetByID(ctx context.Context, id domain.EntryID) (audit.Entry, error) {
	row := s.runner(ctx).QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM audit_log WHERE id = $1`, uint64(id))
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return audit.Entry{}, sentinel.ErrNotFound
	}
	if err != nil {
		return audit.Entry{}, fmt.Errorf("get audit entry: %w", err)
	}
	return entry, nil
}

func (s *Store) ListByActor(ctx context.Context, actor domain.AccountID) ([]audit.Entry, error) {
	rows, err := s.runner(ctx).QueryContext(ctx,
		`SELECT `+selectColumns+` FROM audit_log WHERE actor = $1 ORDER BY id`, actor.String())
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Entry, error) {
	rows, err := s.runner(ctx).QueryContext(ctx,
		`SELECT `+selectColumns+` FROM (
			SELECT `+selectColumns+` FROM audit_log ORDER BY id DESC LIMIT $1
		) sub ORDER BY id`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent audit entries: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

func (s *Store) Count(ctx context.Context) (uint64, error) {
	var n uint64
	if err := s.runner(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit entries: %w", err)
	}
	return n, nil
}

func collect(rows *sql.Rows) ([]audit.Entry, error) {
	var out []audit.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
