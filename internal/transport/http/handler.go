// Package httptransport is the HTTP layer over the governance engine. It is
// deliberately thin: decode, call the engine, encode. No business rules live
// here.
package httptransport

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"quorum/internal/engine"
	"quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	"quorum/pkg/platform/httputil"
	"quorum/pkg/requestcontext"
)

// Handler wires the HTTP routes to the engine facade.
type Handler struct {
	engine *engine.Engine
	logger *slog.Logger
}

func NewHandler(eng *engine.Engine, logger *slog.Logger) (*Handler, error) {
	if eng == nil {
		return nil, errors.New("engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: eng, logger: logger}, nil
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// caller returns the authenticated account. The auth middleware guarantees it
// is set on every route that reaches a handler method.
func caller(r *http.Request) domain.AccountID {
	return requestcontext.Caller(r.Context())
}

// pathUint parses a numeric path parameter. A zero or malformed value is a
// bad request; ids start at 1.
func pathUint(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest, "invalid %s %q", name, raw))
		return 0, false
	}
	return v, true
}

// pathAccount parses an account id path parameter.
func pathAccount(w http.ResponseWriter, r *http.Request, name string) (domain.AccountID, bool) {
	id, err := domain.ParseAccountID(chi.URLParam(r, name))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return id, true
}

func (h *Handler) logError(r *http.Request, op string, err error) {
	h.logger.ErrorContext(r.Context(), op+" failed",
		"request_id", requestcontext.RequestID(r.Context()),
		"caller", caller(r).String(),
		"error", err,
	)
}

// fail writes the error envelope and logs anything that is not a plain client
// mistake.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput, dErrors.CodeNotFound:
	default:
		h.logError(r, op, err)
	}
	httputil.WriteError(w, err)
}
