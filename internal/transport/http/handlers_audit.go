package httptransport

import (
	"net/http"
	"strconv"

	"quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	"quorum/pkg/platform/httputil"
)

const defaultAuditLimit = 50

// handleGetAuditEntry handles GET /audit/{id}.
func (h *Handler) handleGetAuditEntry(w http.ResponseWriter, r *http.Request) {
	raw, ok := pathUint(w, r, "id")
	if !ok {
		return
	}
	entry, err := h.engine.GetAuditEntry(r.Context(), domain.EntryID(raw))
	if err != nil {
		h.fail(w, r, "get audit entry", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromAuditEntry(entry))
}

// handleListAudit handles GET /audit. With ?actor= it returns that actor's
// entries oldest first; otherwise the newest ?limit= entries.
func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if actor := r.URL.Query().Get("actor"); actor != "" {
		id, err := domain.ParseAccountID(actor)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		entries, err := h.engine.ListAuditByActor(r.Context(), id)
		if err != nil {
			h.fail(w, r, "list audit entries", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, fromAuditEntries(entries))
		return
	}

	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest, "invalid limit %q", raw))
			return
		}
		limit = v
	}
	entries, err := h.engine.ListRecentAudit(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "list audit entries", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromAuditEntries(entries))
}

// handleGetCounters handles GET /counters.
func (h *Handler) handleGetCounters(w http.ResponseWriter, r *http.Request) {
	counters, err := h.engine.GetCounters(r.Context())
	if err != nil {
		h.fail(w, r, "get counters", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, countersResponse{
		Proposals:    counters.Proposals,
		Disputes:     counters.Disputes,
		AuditEntries: counters.AuditEntries,
	})
}
