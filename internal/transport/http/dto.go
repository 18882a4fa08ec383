package httptransport

import (
	accountmodels "quorum/internal/account/models"
	delegationmodels "quorum/internal/delegation/models"
	disputemodels "quorum/internal/dispute/models"
	proposalmodels "quorum/internal/proposal/models"
	reputationmodels "quorum/internal/reputation/models"
	votingmodels "quorum/internal/voting/models"
	audit "quorum/pkg/platform/audit"
)

// Wire DTOs. The domain aggregates never cross the HTTP boundary directly;
// everything is copied into these shapes so field renames inside the domain
// cannot silently change the API.

type verifyIdentityRequest struct {
	IdentityHash string `json:"identity_hash"`
}

type mintRequest struct {
	Amount uint64 `json:"amount"`
}

type transferRequest struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type delegateRequest struct {
	Delegate     string `json:"delegate"`
	LockDuration uint64 `json:"lock_duration"`
}

type createProposalRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StartSeq    uint64 `json:"start_seq"`
	EndSeq      uint64 `json:"end_seq"`
}

type castVoteRequest struct {
	Choice string `json:"choice"`
}

type penalizeRequest struct {
	Severity uint64 `json:"severity"`
	Reason   string `json:"reason"`
}

type reportDisputeRequest struct {
	Target      string `json:"target"`
	ProposalID  uint64 `json:"proposal_id"`
	Description string `json:"description"`
	Stake       uint64 `json:"stake"`
}

type addEvidenceRequest struct {
	Hash string `json:"hash"`
	Kind string `json:"kind"`
}

type resolveDisputeRequest struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason"`
}

type setArbitratorRequest struct {
	Arbitrator string `json:"arbitrator"`
}

type roleRequest struct {
	Role string `json:"role"`
}

type accountResponse struct {
	ID           string `json:"id"`
	IdentityHash string `json:"identity_hash,omitempty"`
	Verified     bool   `json:"verified"`
	Shares       uint64 `json:"shares"`
	VotingPower  uint64 `json:"voting_power"`
	Active       bool   `json:"active"`
	CreatedAt    uint64 `json:"created_at"`
}

func fromAccount(a accountmodels.Account) accountResponse {
	resp := accountResponse{
		ID:          a.ID.String(),
		Verified:    a.Verified,
		Shares:      a.Shares,
		VotingPower: a.VotingPower,
		Active:      a.Active,
		CreatedAt:   uint64(a.CreatedAt),
	}
	if !a.IdentityHash.IsZero() {
		resp.IdentityHash = a.IdentityHash.String()
	}
	return resp
}

type balanceResponse struct {
	Shares uint64 `json:"shares"`
}

type powerResponse struct {
	VotingPower uint64 `json:"voting_power"`
}

type delegationResponse struct {
	Delegator string `json:"delegator"`
	Delegate  string `json:"delegate"`
	LockUntil uint64 `json:"lock_until"`
	CreatedAt uint64 `json:"created_at"`
	Active    bool   `json:"active"`
}

func fromDelegation(d delegationmodels.Delegation) delegationResponse {
	return delegationResponse{
		Delegator: d.Delegator.String(),
		Delegate:  d.Delegate.String(),
		LockUntil: uint64(d.LockUntil),
		CreatedAt: uint64(d.CreatedAt),
		Active:    d.Active,
	}
}

type proposalResponse struct {
	ID           uint64 `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Proposer     string `json:"proposer"`
	StartSeq     uint64 `json:"start_seq"`
	EndSeq       uint64 `json:"end_seq"`
	VotesFor     uint64 `json:"votes_for"`
	VotesAgainst uint64 `json:"votes_against"`
	Status       string `json:"status"`
	CreatedAt    uint64 `json:"created_at"`
}

func fromProposal(p proposalmodels.Proposal) proposalResponse {
	return proposalResponse{
		ID:           uint64(p.ID),
		Title:        p.Title,
		Description:  p.Description,
		Proposer:     p.Proposer.String(),
		StartSeq:     uint64(p.StartSeq),
		EndSeq:       uint64(p.EndSeq),
		VotesFor:     p.VotesFor,
		VotesAgainst: p.VotesAgainst,
		Status:       string(p.Status),
		CreatedAt:    uint64(p.CreatedAt),
	}
}

type voteResponse struct {
	ProposalID uint64 `json:"proposal_id"`
	Voter      string `json:"voter"`
	Choice     string `json:"choice"`
	Weight     uint64 `json:"weight"`
	Sequence   uint64 `json:"sequence"`
}

func fromVote(v votingmodels.VoteRecord) voteResponse {
	return voteResponse{
		ProposalID: uint64(v.ProposalID),
		Voter:      v.Voter.String(),
		Choice:     string(v.Choice),
		Weight:     v.Weight,
		Sequence:   uint64(v.Sequence),
	}
}

func fromVotes(votes []votingmodels.VoteRecord) []voteResponse {
	out := make([]voteResponse, 0, len(votes))
	for _, v := range votes {
		out = append(out, fromVote(v))
	}
	return out
}

type penaltyResponse struct {
	Target string `json:"target"`
	Amount uint64 `json:"amount"`
}

type reputationResponse struct {
	Target         string `json:"target"`
	TotalPenalties uint64 `json:"total_penalties"`
	PenaltyCount   uint64 `json:"penalty_count"`
	Suspended      bool   `json:"suspended"`
	TotalDisputes  uint64 `json:"total_disputes"`
	ValidDisputes  uint64 `json:"valid_disputes"`
	Score          uint64 `json:"score"`
}

func fromReputation(e reputationmodels.ReputationEntry) reputationResponse {
	return reputationResponse{
		Target:         e.Target.String(),
		TotalPenalties: e.TotalPenalties,
		PenaltyCount:   e.PenaltyCount,
		Suspended:      e.Suspended,
		TotalDisputes:  e.TotalDisputes,
		ValidDisputes:  e.ValidDisputes,
		Score:          e.Score(),
	}
}

type evidenceResponse struct {
	Index     int    `json:"index"`
	Submitter string `json:"submitter"`
	Hash      string `json:"hash"`
	Kind      string `json:"kind"`
	Sequence  uint64 `json:"sequence"`
}

type resolutionResponse struct {
	By       string `json:"by"`
	Reason   string `json:"reason"`
	Sequence uint64 `json:"sequence"`
}

type disputeResponse struct {
	ID          uint64              `json:"id"`
	Reporter    string              `json:"reporter"`
	Target      string              `json:"target"`
	ProposalID  uint64              `json:"proposal_id,omitempty"`
	Description string              `json:"description"`
	Stake       uint64              `json:"stake"`
	Status      string              `json:"status"`
	Evidence    []evidenceResponse  `json:"evidence"`
	Resolution  *resolutionResponse `json:"resolution,omitempty"`
	CreatedAt   uint64              `json:"created_at"`
}

func fromDispute(d disputemodels.Dispute) disputeResponse {
	resp := disputeResponse{
		ID:          uint64(d.ID),
		Reporter:    d.Reporter.String(),
		Target:      d.Target.String(),
		ProposalID:  uint64(d.ProposalID),
		Description: d.Description,
		Stake:       d.Stake,
		Status:      string(d.Status),
		Evidence:    make([]evidenceResponse, 0, len(d.Evidence)),
		CreatedAt:   uint64(d.CreatedAt),
	}
	for _, ev := range d.Evidence {
		resp.Evidence = append(resp.Evidence, fromEvidence(ev))
	}
	if d.Resolution != nil {
		resp.Resolution = &resolutionResponse{
			By:       d.Resolution.By.String(),
			Reason:   d.Resolution.Reason,
			Sequence: uint64(d.Resolution.Sequence),
		}
	}
	return resp
}

func fromEvidence(ev disputemodels.Evidence) evidenceResponse {
	return evidenceResponse{
		Index:     ev.Index,
		Submitter: ev.Submitter.String(),
		Hash:      ev.Hash,
		Kind:      string(ev.Kind),
		Sequence:  uint64(ev.Sequence),
	}
}

func fromDisputes(disputes []disputemodels.Dispute) []disputeResponse {
	out := make([]disputeResponse, 0, len(disputes))
	for _, d := range disputes {
		out = append(out, fromDispute(d))
	}
	return out
}

type rolesResponse struct {
	Account string   `json:"account"`
	Roles   []string `json:"roles"`
}

type auditEntryResponse struct {
	ID         uint64 `json:"id"`
	Action     string `json:"action"`
	Category   string `json:"category"`
	Actor      string `json:"actor"`
	Target     string `json:"target,omitempty"`
	ProposalID uint64 `json:"proposal_id,omitempty"`
	Sequence   uint64 `json:"sequence"`
	Detail     string `json:"detail,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

func fromAuditEntry(e audit.Entry) auditEntryResponse {
	return auditEntryResponse{
		ID:         uint64(e.ID),
		Action:     string(e.Action),
		Category:   string(e.Action.Category()),
		Actor:      e.Actor.String(),
		Target:     e.Target.String(),
		ProposalID: uint64(e.ProposalID),
		Sequence:   uint64(e.Sequence),
		Detail:     e.Detail,
		RequestID:  e.RequestID,
	}
}

func fromAuditEntries(entries []audit.Entry) []auditEntryResponse {
	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, fromAuditEntry(e))
	}
	return out
}

type countersResponse struct {
	Proposals    uint64 `json:"proposals"`
	Disputes     uint64 `json:"disputes"`
	AuditEntries uint64 `json:"audit_entries"`
}
