package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"quorum/pkg/domain"
	"quorum/pkg/platform/httputil"
)

// handleRegister handles POST /accounts. The new account is the caller's own;
// identities are never registered on someone's behalf.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	account, err := h.engine.Register(r.Context(), caller(r))
	if err != nil {
		h.fail(w, r, "register", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fromAccount(account))
}

// handleVerifyIdentity handles POST /accounts/{id}/verify.
func (h *Handler) handleVerifyIdentity(w http.ResponseWriter, r *http.Request) {
	target, ok := pathAccount(w, r, "id")
	if !ok {
		return
	}
	req, ok := httputil.Decode[verifyIdentityRequest](w, r)
	if !ok {
		return
	}
	hash, err := domain.ParseIdentityHash(req.IdentityHash)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.engine.VerifyIdentity(r.Context(), caller(r), target, hash); err != nil {
		h.fail(w, r, "verify identity", err)
		return
	}
	account, err := h.engine.GetAccount(r.Context(), target)
	if err != nil {
		h.fail(w, r, "verify identity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromAccount(account))
}

// handleMintShares handles POST /accounts/{id}/mint.
func (h *Handler) handleMintShares(w http.ResponseWriter, r *http.Request) {
	target, ok := pathAccount(w, r, "id")
	if !ok {
		return
	}
	req, ok := httputil.Decode[mintRequest](w, r)
	if !ok {
		return
	}
	balance, err := h.engine.MintShares(r.Context(), caller(r), target, req.Amount)
	if err != nil {
		h.fail(w, r, "mint shares", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balanceResponse{Shares: balance})
}

// handleTransferShares handles POST /accounts/transfer. Shares always leave
// the caller's own balance.
func (h *Handler) handleTransferShares(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[transferRequest](w, r)
	if !ok {
		return
	}
	to, err := domain.ParseAccountID(req.To)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.engine.TransferShares(r.Context(), caller(r), to, req.Amount); err != nil {
		h.fail(w, r, "transfer shares", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetAccount handles GET /accounts/{id}.
func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathAccount(w, r, "id")
	if !ok {
		return
	}
	account, err := h.engine.GetAccount(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get account", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromAccount(account))
}

// handleVotingPower handles GET /accounts/{id}/power.
func (h *Handler) handleVotingPower(w http.ResponseWriter, r *http.Request) {
	id, ok := pathAccount(w, r, "id")
	if !ok {
		return
	}
	power, err := h.engine.VotingPower(r.Context(), id)
	if err != nil {
		h.fail(w, r, "voting power", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, powerResponse{VotingPower: power})
}

// handleResolveByHash handles GET /accounts/by-hash/{hash}.
func (h *Handler) handleResolveByHash(w http.ResponseWriter, r *http.Request) {
	hash, err := domain.ParseIdentityHash(chi.URLParam(r, "hash"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	account, err := h.engine.ResolveByIdentityHash(r.Context(), hash)
	if err != nil {
		h.fail(w, r, "resolve by hash", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromAccount(account))
}

// handleDelegate handles POST /delegations. The delegator is always the
// caller.
func (h *Handler) handleDelegate(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[delegateRequest](w, r)
	if !ok {
		return
	}
	delegate, err := domain.ParseAccountID(req.Delegate)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.engine.Delegate(r.Context(), caller(r), delegate, req.LockDuration); err != nil {
		h.fail(w, r, "delegate", err)
		return
	}
	delegation, err := h.engine.GetDelegation(r.Context(), caller(r))
	if err != nil {
		h.fail(w, r, "delegate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fromDelegation(delegation))
}

// handleRevokeDelegation handles DELETE /delegations. Only the delegator can
// revoke their own delegation.
func (h *Handler) handleRevokeDelegation(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.RevokeDelegation(r.Context(), caller(r)); err != nil {
		h.fail(w, r, "revoke delegation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetDelegation handles GET /delegations/{delegator}.
func (h *Handler) handleGetDelegation(w http.ResponseWriter, r *http.Request) {
	delegator, ok := pathAccount(w, r, "delegator")
	if !ok {
		return
	}
	delegation, err := h.engine.GetDelegation(r.Context(), delegator)
	if err != nil {
		h.fail(w, r, "get delegation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromDelegation(delegation))
}
