// Package engine is the facade over the governance contexts. Every state
// transition enters through it: the engine pins the caller-supplied sequence,
// rejects sequence regressions, opens a trace span, and runs the transition
// inside one transaction boundary so all of its writes commit together.
package engine

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	accountmodels "quorum/internal/account/models"
	accountservice "quorum/internal/account/service"
	"quorum/internal/authz"
	delegationmodels "quorum/internal/delegation/models"
	delegationservice "quorum/internal/delegation/service"
	disputemodels "quorum/internal/dispute/models"
	disputeservice "quorum/internal/dispute/service"
	proposalmodels "quorum/internal/proposal/models"
	proposalservice "quorum/internal/proposal/service"
	reputationmodels "quorum/internal/reputation/models"
	reputationservice "quorum/internal/reputation/service"
	votingmodels "quorum/internal/voting/models"
	votingservice "quorum/internal/voting/service"
	"quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	audit "quorum/pkg/platform/audit"
	"quorum/pkg/platform/sentinel"
	"quorum/pkg/requestcontext"
)

// Engine ties the context services together behind one transition boundary.
type Engine struct {
	accounts    *accountservice.Service
	delegations *delegationservice.Service
	proposals   *proposalservice.Service
	votes       *votingservice.Service
	reputation  *reputationservice.Service
	disputes    *disputeservice.Service
	roles       *authz.Service
	auditor     *audit.Publisher
	runner      TxRunner
	tracer      trace.Tracer

	mu      sync.Mutex
	lastSeq domain.Sequence
}

type Config struct {
	Accounts    *accountservice.Service
	Delegations *delegationservice.Service
	Proposals   *proposalservice.Service
	Votes       *votingservice.Service
	Reputation  *reputationservice.Service
	Disputes    *disputeservice.Service
	Roles       *authz.Service
	Auditor     *audit.Publisher
	Runner      TxRunner
}

func New(cfg Config) (*Engine, error) {
	if cfg.Accounts == nil || cfg.Delegations == nil || cfg.Proposals == nil ||
		cfg.Votes == nil || cfg.Reputation == nil || cfg.Disputes == nil || cfg.Roles == nil {
		return nil, errors.New("all context services are required")
	}
	if cfg.Auditor == nil {
		return nil, errors.New("audit publisher is required")
	}
	if cfg.Runner == nil {
		return nil, errors.New("transaction runner is required")
	}
	return &Engine{
		accounts:    cfg.Accounts,
		delegations: cfg.Delegations,
		proposals:   cfg.Proposals,
		votes:       cfg.Votes,
		reputation:  cfg.Reputation,
		disputes:    cfg.Disputes,
		roles:       cfg.Roles,
		auditor:     cfg.Auditor,
		runner:      cfg.Runner,
		tracer:      otel.Tracer("quorum/engine"),
	}, nil
}

// transition wraps one state-changing operation: sequence guard, span,
// transaction boundary.
func (e *Engine) transition(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	seq := requestcontext.Sequence(ctx)
	if err := e.admitSequence(seq); err != nil {
		return err
	}

	ctx, span := e.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.Int64("quorum.sequence", int64(seq)),
		attribute.String("quorum.caller", requestcontext.Caller(ctx).String()),
	))
	defer span.End()

	if err := e.runner.RunInTx(ctx, fn); err != nil {
		span.RecordError(err)
		return err
	}
	e.markApplied(seq)
	return nil
}

// admitSequence rejects transitions that would observe a sequence lower than
// the last applied one. Equal sequences are fine: one block carries many
// transitions.
func (e *Engine) admitSequence(seq domain.Sequence) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if seq < e.lastSeq {
		return dErrors.Newf(dErrors.CodeInvalidState,
			"sequence %d is behind the last applied sequence %d", seq, e.lastSeq)
	}
	return nil
}

func (e *Engine) markApplied(seq domain.Sequence) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if seq > e.lastSeq {
		e.lastSeq = seq
	}
}

// LastSequence reports the highest sequence a committed transition carried.
func (e *Engine) LastSequence() domain.Sequence {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSeq
}

// --- account registry ---

func (e *Engine) Register(ctx context.Context, caller domain.AccountID) (accountmodels.Account, error) {
	var account accountmodels.Account
	err := e.transition(ctx, "engine.Register", func(ctx context.Context) error {
		var err error
		account, err = e.accounts.Register(ctx, caller)
		return err
	})
	return account, err
}

func (e *Engine) VerifyIdentity(ctx context.Context, admin, target domain.AccountID, hash domain.IdentityHash) error {
	return e.transition(ctx, "engine.VerifyIdentity", func(ctx context.Context) error {
		return e.accounts.VerifyIdentity(ctx, admin, target, hash)
	})
}

func (e *Engine) MintShares(ctx context.Context, admin, target domain.AccountID, amount uint64) (uint64, error) {
	var balance uint64
	err := e.transition(ctx, "engine.MintShares", func(ctx context.Context) error {
		var err error
		balance, err = e.accounts.MintShares(ctx, admin, target, amount)
		return err
	})
	return balance, err
}

func (e *Engine) TransferShares(ctx context.Context, caller, to domain.AccountID, amount uint64) error {
	return e.transition(ctx, "engine.TransferShares", func(ctx context.Context) error {
		return e.accounts.TransferShares(ctx, caller, to, amount)
	})
}

func (e *Engine) GetAccount(ctx context.Context, id domain.AccountID) (accountmodels.Account, error) {
	return e.accounts.GetAccount(ctx, id)
}

func (e *Engine) ResolveByIdentityHash(ctx context.Context, hash domain.IdentityHash) (accountmodels.Account, error) {
	return e.accounts.ResolveByIdentityHash(ctx, hash)
}

func (e *Engine) VotingPower(ctx context.Context, id domain.AccountID) (uint64, error) {
	return e.accounts.VotingPower(ctx, id)
}

// --- delegation ledger ---

func (e *Engine) Delegate(ctx context.Context, delegator, delegate domain.AccountID, lockDuration uint64) error {
	return e.transition(ctx, "engine.Delegate", func(ctx context.Context) error {
		return e.delegations.Delegate(ctx, delegator, delegate, lockDuration)
	})
}

func (e *Engine) RevokeDelegation(ctx context.Context, delegator domain.AccountID) error {
	return e.transition(ctx, "engine.RevokeDelegation", func(ctx context.Context) error {
		return e.delegations.Revoke(ctx, delegator)
	})
}

func (e *Engine) GetDelegation(ctx context.Context, delegator domain.AccountID) (delegationmodels.Delegation, error) {
	return e.delegations.Get(ctx, delegator)
}

// --- proposal lifecycle ---

func (e *Engine) CreateProposal(ctx context.Context, proposer domain.AccountID, title, description string, startSeq, endSeq domain.Sequence) (proposalmodels.Proposal, error) {
	var proposal proposalmodels.Proposal
	err := e.transition(ctx, "engine.CreateProposal", func(ctx context.Context) error {
		var err error
		proposal, err = e.proposals.Create(ctx, proposer, title, description, startSeq, endSeq)
		return err
	})
	return proposal, err
}

func (e *Engine) ActivateProposal(ctx context.Context, caller domain.AccountID, id domain.ProposalID) (proposalmodels.Proposal, error) {
	var proposal proposalmodels.Proposal
	err := e.transition(ctx, "engine.ActivateProposal", func(ctx context.Context) error {
		var err error
		proposal, err = e.proposals.Activate(ctx, caller, id)
		return err
	})
	return proposal, err
}

func (e *Engine) CloseProposal(ctx context.Context, caller domain.AccountID, id domain.ProposalID) (proposalmodels.Proposal, error) {
	var proposal proposalmodels.Proposal
	err := e.transition(ctx, "engine.CloseProposal", func(ctx context.Context) error {
		var err error
		proposal, err = e.proposals.Close(ctx, caller, id)
		return err
	})
	return proposal, err
}

func (e *Engine) FinalizeProposal(ctx context.Context, caller domain.AccountID, id domain.ProposalID) (proposalmodels.Proposal, error) {
	var proposal proposalmodels.Proposal
	err := e.transition(ctx, "engine.FinalizeProposal", func(ctx context.Context) error {
		var err error
		proposal, err = e.proposals.Finalize(ctx, caller, id)
		return err
	})
	return proposal, err
}

func (e *Engine) ExecuteProposal(ctx context.Context, caller domain.AccountID, id domain.ProposalID) (proposalmodels.Proposal, error) {
	var proposal proposalmodels.Proposal
	err := e.transition(ctx, "engine.ExecuteProposal", func(ctx context.Context) error {
		var err error
		proposal, err = e.proposals.Execute(ctx, caller, id)
		return err
	})
	return proposal, err
}

func (e *Engine) GetProposal(ctx context.Context, id domain.ProposalID) (proposalmodels.Proposal, error) {
	return e.proposals.Get(ctx, id)
}

// --- voting ---

func (e *Engine) Vote(ctx context.Context, voter domain.AccountID, proposalID domain.ProposalID, choice votingmodels.Choice) (votingmodels.VoteRecord, error) {
	var record votingmodels.VoteRecord
	err := e.transition(ctx, "engine.Vote", func(ctx context.Context) error {
		var err error
		record, err = e.votes.Vote(ctx, voter, proposalID, choice)
		return err
	})
	return record, err
}

func (e *Engine) GetVote(ctx context.Context, proposalID domain.ProposalID, voter domain.AccountID) (votingmodels.VoteRecord, error) {
	return e.votes.GetVote(ctx, proposalID, voter)
}

func (e *Engine) ListVotes(ctx context.Context, proposalID domain.ProposalID) ([]votingmodels.VoteRecord, error) {
	return e.votes.ListVotes(ctx, proposalID)
}

// --- reputation ---

func (e *Engine) Penalize(ctx context.Context, caller, target domain.AccountID, severity uint64, reason string) (uint64, error) {
	var amount uint64
	err := e.transition(ctx, "engine.Penalize", func(ctx context.Context) error {
		var err error
		amount, err = e.reputation.Penalize(ctx, caller, target, severity, reason)
		return err
	})
	return amount, err
}

func (e *Engine) GetReputation(ctx context.Context, target domain.AccountID) (reputationmodels.ReputationEntry, error) {
	return e.reputation.Get(ctx, target)
}

// --- disputes ---

func (e *Engine) ReportDispute(ctx context.Context, reporter, target domain.AccountID, proposalID domain.ProposalID, description string, stake uint64) (disputemodels.Dispute, error) {
	var dispute disputemodels.Dispute
	err := e.transition(ctx, "engine.ReportDispute", func(ctx context.Context) error {
		var err error
		dispute, err = e.disputes.Report(ctx, reporter, target, proposalID, description, stake)
		return err
	})
	return dispute, err
}

func (e *Engine) AddEvidence(ctx context.Context, submitter domain.AccountID, id domain.DisputeID, hash string, kind disputemodels.EvidenceKind) (disputemodels.Evidence, error) {
	var evidence disputemodels.Evidence
	err := e.transition(ctx, "engine.AddEvidence", func(ctx context.Context) error {
		var err error
		evidence, err = e.disputes.AddEvidence(ctx, submitter, id, hash, kind)
		return err
	})
	return evidence, err
}

func (e *Engine) ResolveDispute(ctx context.Context, caller domain.AccountID, id domain.DisputeID, isValid bool, reason string) (disputemodels.Dispute, error) {
	var dispute disputemodels.Dispute
	err := e.transition(ctx, "engine.ResolveDispute", func(ctx context.Context) error {
		var err error
		dispute, err = e.disputes.Resolve(ctx, caller, id, isValid, reason)
		return err
	})
	return dispute, err
}

func (e *Engine) SetArbitrator(ctx context.Context, caller, arbitrator domain.AccountID) error {
	return e.transition(ctx, "engine.SetArbitrator", func(ctx context.Context) error {
		return e.disputes.SetArbitrator(ctx, caller, arbitrator)
	})
}

func (e *Engine) GetDispute(ctx context.Context, id domain.DisputeID) (disputemodels.Dispute, error) {
	return e.disputes.Get(ctx, id)
}

func (e *Engine) ListDisputesByTarget(ctx context.Context, target domain.AccountID) ([]disputemodels.Dispute, error) {
	return e.disputes.ListByTarget(ctx, target)
}

// --- roles ---

func (e *Engine) GrantRole(ctx context.Context, caller, target domain.AccountID, role authz.Role) error {
	return e.transition(ctx, "engine.GrantRole", func(ctx context.Context) error {
		return e.roles.Grant(ctx, caller, target, role)
	})
}

func (e *Engine) RevokeRole(ctx context.Context, caller, target domain.AccountID, role authz.Role) error {
	return e.transition(ctx, "engine.RevokeRole", func(ctx context.Context) error {
		return e.roles.Revoke(ctx, caller, target, role)
	})
}

func (e *Engine) Roles(ctx context.Context, account domain.AccountID) ([]authz.Role, error) {
	return e.roles.Roles(ctx, account)
}

// --- audit log ---

func (e *Engine) GetAuditEntry(ctx context.Context, id domain.EntryID) (audit.Entry, error) {
	entry, err := e.auditor.GetByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return audit.Entry{}, dErrors.Newf(dErrors.CodeNotFound, "audit entry %d not found", id)
	}
	if err != nil {
		return audit.Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "get audit entry")
	}
	return entry, nil
}

func (e *Engine) ListAuditByActor(ctx context.Context, actor domain.AccountID) ([]audit.Entry, error) {
	entries, err := e.auditor.List(ctx, actor)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list audit entries")
	}
	return entries, nil
}

func (e *Engine) ListRecentAudit(ctx context.Context, limit int) ([]audit.Entry, error) {
	entries, err := e.auditor.ListRecent(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list audit entries")
	}
	return entries, nil
}

// Counters are the aggregate totals observers poll to detect missed events.
type Counters struct {
	Proposals    uint64
	Disputes     uint64
	AuditEntries uint64
}

// GetCounters reports the aggregate totals in one read.
func (e *Engine) GetCounters(ctx context.Context) (Counters, error) {
	proposals, err := e.proposals.Count(ctx)
	if err != nil {
		return Counters{}, err
	}
	disputes, err := e.disputes.Count(ctx)
	if err != nil {
		return Counters{}, err
	}
	entries, err := e.auditor.Count(ctx)
	if err != nil {
		return Counters{}, dErrors.Wrap(err, dErrors.CodeInternal, "count audit entries")
	}
	return Counters{Proposals: proposals, Disputes: disputes, AuditEntries: entries}, nil
}
