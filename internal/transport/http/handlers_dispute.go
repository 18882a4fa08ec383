package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"quorum/internal/authz"
	disputemodels "quorum/internal/dispute/models"
	"quorum/pkg/domain"
	"quorum/pkg/platform/httputil"
)

// handleReportDispute handles POST /disputes. The reporter is the caller and
// the stake leaves their balance before the dispute exists.
func (h *Handler) handleReportDispute(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[reportDisputeRequest](w, r)
	if !ok {
		return
	}
	target, err := domain.ParseAccountID(req.Target)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	dispute, err := h.engine.ReportDispute(r.Context(), caller(r), target,
		domain.ProposalID(req.ProposalID), req.Description, req.Stake)
	if err != nil {
		h.fail(w, r, "report dispute", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fromDispute(dispute))
}

// handleAddEvidence handles POST /disputes/{id}/evidence.
func (h *Handler) handleAddEvidence(w http.ResponseWriter, r *http.Request) {
	raw, ok := pathUint(w, r, "id")
	if !ok {
		return
	}
	req, ok := httputil.Decode[addEvidenceRequest](w, r)
	if !ok {
		return
	}
	evidence, err := h.engine.AddEvidence(r.Context(), caller(r),
		domain.DisputeID(raw), req.Hash, disputemodels.EvidenceKind(req.Kind))
	if err != nil {
		h.fail(w, r, "add evidence", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fromEvidence(evidence))
}

// handleResolveDispute handles POST /disputes/{id}/resolve.
func (h *Handler) handleResolveDispute(w http.ResponseWriter, r *http.Request) {
	raw, ok := pathUint(w, r, "id")
	if !ok {
		return
	}
	req, ok := httputil.Decode[resolveDisputeRequest](w, r)
	if !ok {
		return
	}
	dispute, err := h.engine.ResolveDispute(r.Context(), caller(r),
		domain.DisputeID(raw), req.Valid, req.Reason)
	if err != nil {
		h.fail(w, r, "resolve dispute", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromDispute(dispute))
}

// handleGetDispute handles GET /disputes/{id}.
func (h *Handler) handleGetDispute(w http.ResponseWriter, r *http.Request) {
	raw, ok := pathUint(w, r, "id")
	if !ok {
		return
	}
	dispute, err := h.engine.GetDispute(r.Context(), domain.DisputeID(raw))
	if err != nil {
		h.fail(w, r, "get dispute", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromDispute(dispute))
}

// handleListDisputes handles GET /accounts/{id}/disputes.
func (h *Handler) handleListDisputes(w http.ResponseWriter, r *http.Request) {
	target, ok := pathAccount(w, r, "id")
	if !ok {
		return
	}
	disputes, err := h.engine.ListDisputesByTarget(r.Context(), target)
	if err != nil {
		h.fail(w, r, "list disputes", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromDisputes(disputes))
}

// handleSetArbitrator handles PUT /arbitrator.
func (h *Handler) handleSetArbitrator(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[setArbitratorRequest](w, r)
	if !ok {
		return
	}
	arbitrator, err := domain.ParseAccountID(req.Arbitrator)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.engine.SetArbitrator(r.Context(), caller(r), arbitrator); err != nil {
		h.fail(w, r, "set arbitrator", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePenalize handles POST /accounts/{id}/penalties.
func (h *Handler) handlePenalize(w http.ResponseWriter, r *http.Request) {
	target, ok := pathAccount(w, r, "id")
	if !ok {
		return
	}
	req, ok := httputil.Decode[penalizeRequest](w, r)
	if !ok {
		return
	}
	amount, err := h.engine.Penalize(r.Context(), caller(r), target, req.Severity, req.Reason)
	if err != nil {
		h.fail(w, r, "penalize", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, penaltyResponse{Target: target.String(), Amount: amount})
}

// handleGetReputation handles GET /accounts/{id}/reputation.
func (h *Handler) handleGetReputation(w http.ResponseWriter, r *http.Request) {
	target, ok := pathAccount(w, r, "id")
	if !ok {
		return
	}
	entry, err := h.engine.GetReputation(r.Context(), target)
	if err != nil {
		h.fail(w, r, "get reputation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromReputation(entry))
}

// handleGrantRole handles POST /accounts/{id}/roles.
func (h *Handler) handleGrantRole(w http.ResponseWriter, r *http.Request) {
	target, ok := pathAccount(w, r, "id")
	if !ok {
		return
	}
	req, ok := httputil.Decode[roleRequest](w, r)
	if !ok {
		return
	}
	if err := h.engine.GrantRole(r.Context(), caller(r), target, authz.Role(req.Role)); err != nil {
		h.fail(w, r, "grant role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRevokeRole handles DELETE /accounts/{id}/roles/{role}.
func (h *Handler) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	target, ok := pathAccount(w, r, "id")
	if !ok {
		return
	}
	role := authz.Role(chi.URLParam(r, "role"))
	if err := h.engine.RevokeRole(r.Context(), caller(r), target, role); err != nil {
		h.fail(w, r, "revoke role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListRoles handles GET /accounts/{id}/roles.
func (h *Handler) handleListRoles(w http.ResponseWriter, r *http.Request) {
	target, ok := pathAccount(w, r, "id")
	if !ok {
		return
	}
	roles, err := h.engine.Roles(r.Context(), target)
	if err != nil {
		h.fail(w, r, "list roles", err)
		return
	}
	resp := rolesResponse{Account: target.String(), Roles: make([]string, 0, len(roles))}
	for _, role := range roles {
		resp.Roles = append(resp.Roles, string(role))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
