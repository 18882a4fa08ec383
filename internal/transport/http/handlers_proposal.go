package httptransport

import (
	"net/http"

	votingmodels "quorum/internal/voting/models"
	"quorum/pkg/domain"
	"quorum/pkg/platform/httputil"
)

// handleCreateProposal handles POST /proposals.
func (h *Handler) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[createProposalRequest](w, r)
	if !ok {
		return
	}
	proposal, err := h.engine.CreateProposal(r.Context(), caller(r),
		req.Title, req.Description, domain.Sequence(req.StartSeq), domain.Sequence(req.EndSeq))
	if err != nil {
		h.fail(w, r, "create proposal", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fromProposal(proposal))
}

// transitionProposal factors the four lifecycle endpoints; they differ only
// in which engine call runs.
func (h *Handler) transitionProposal(op string, apply func(r *http.Request, id domain.ProposalID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := pathUint(w, r, "id")
		if !ok {
			return
		}
		resp, err := apply(r, domain.ProposalID(raw))
		if err != nil {
			h.fail(w, r, op, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

func (h *Handler) handleActivateProposal() http.HandlerFunc {
	return h.transitionProposal("activate proposal", func(r *http.Request, id domain.ProposalID) (any, error) {
		p, err := h.engine.ActivateProposal(r.Context(), caller(r), id)
		return fromProposal(p), err
	})
}

func (h *Handler) handleCloseProposal() http.HandlerFunc {
	return h.transitionProposal("close proposal", func(r *http.Request, id domain.ProposalID) (any, error) {
		p, err := h.engine.CloseProposal(r.Context(), caller(r), id)
		return fromProposal(p), err
	})
}

func (h *Handler) handleFinalizeProposal() http.HandlerFunc {
	return h.transitionProposal("finalize proposal", func(r *http.Request, id domain.ProposalID) (any, error) {
		p, err := h.engine.FinalizeProposal(r.Context(), caller(r), id)
		return fromProposal(p), err
	})
}

func (h *Handler) handleExecuteProposal() http.HandlerFunc {
	return h.transitionProposal("execute proposal", func(r *http.Request, id domain.ProposalID) (any, error) {
		p, err := h.engine.ExecuteProposal(r.Context(), caller(r), id)
		return fromProposal(p), err
	})
}

// handleGetProposal handles GET /proposals/{id}.
func (h *Handler) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	raw, ok := pathUint(w, r, "id")
	if !ok {
		return
	}
	proposal, err := h.engine.GetProposal(r.Context(), domain.ProposalID(raw))
	if err != nil {
		h.fail(w, r, "get proposal", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromProposal(proposal))
}

// handleCastVote handles POST /proposals/{id}/votes. The voter is the caller;
// voting by proxy is what delegation is for.
func (h *Handler) handleCastVote(w http.ResponseWriter, r *http.Request) {
	raw, ok := pathUint(w, r, "id")
	if !ok {
		return
	}
	req, ok := httputil.Decode[castVoteRequest](w, r)
	if !ok {
		return
	}
	choice, err := votingmodels.ParseChoice(req.Choice)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	record, err := h.engine.Vote(r.Context(), caller(r), domain.ProposalID(raw), choice)
	if err != nil {
		h.fail(w, r, "cast vote", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fromVote(record))
}

// handleGetVote handles GET /proposals/{id}/votes/{voter}.
func (h *Handler) handleGetVote(w http.ResponseWriter, r *http.Request) {
	raw, ok := pathUint(w, r, "id")
	if !ok {
		return
	}
	voter, ok := pathAccount(w, r, "voter")
	if !ok {
		return
	}
	record, err := h.engine.GetVote(r.Context(), domain.ProposalID(raw), voter)
	if err != nil {
		h.fail(w, r, "get vote", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromVote(record))
}

// handleListVotes handles GET /proposals/{id}/votes.
func (h *Handler) handleListVotes(w http.ResponseWriter, r *http.Request) {
	raw, ok := pathUint(w, r, "id")
	if !ok {
		return
	}
	votes, err := h.engine.ListVotes(r.Context(), domain.ProposalID(raw))
	if err != nil {
		h.fail(w, r, "list votes", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromVotes(votes))
}
