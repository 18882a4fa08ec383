package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quorum/internal/platform/middleware"
)

// NewRouter mounts all routes. Every route except the health check requires a
// bearer token; state transitions additionally require the sequence header,
// because the engine has no clock of its own.
func NewRouter(h *Handler, validator middleware.TokenValidator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))

	r.Get("/healthz", h.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, logger))

		// Reads: any sequence, any caller.
		r.Get("/accounts/{id}", h.handleGetAccount)
		r.Get("/accounts/{id}/power", h.handleVotingPower)
		r.Get("/accounts/{id}/reputation", h.handleGetReputation)
		r.Get("/accounts/{id}/roles", h.handleListRoles)
		r.Get("/accounts/{id}/disputes", h.handleListDisputes)
		r.Get("/accounts/by-hash/{hash}", h.handleResolveByHash)
		r.Get("/delegations/{delegator}", h.handleGetDelegation)
		r.Get("/proposals/{id}", h.handleGetProposal)
		r.Get("/proposals/{id}/votes", h.handleListVotes)
		r.Get("/proposals/{id}/votes/{voter}", h.handleGetVote)
		r.Get("/disputes/{id}", h.handleGetDispute)
		r.Get("/audit", h.handleListAudit)
		r.Get("/audit/{id}", h.handleGetAuditEntry)
		r.Get("/counters", h.handleGetCounters)

		// Writes: the execution environment must pin the logical sequence.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Sequence)

			r.Post("/accounts", h.handleRegister)
			r.Post("/accounts/{id}/verify", h.handleVerifyIdentity)
			r.Post("/accounts/{id}/mint", h.handleMintShares)
			r.Post("/accounts/transfer", h.handleTransferShares)
			r.Post("/accounts/{id}/penalties", h.handlePenalize)
			r.Post("/accounts/{id}/roles", h.handleGrantRole)
			r.Delete("/accounts/{id}/roles/{role}", h.handleRevokeRole)

			r.Post("/delegations", h.handleDelegate)
			r.Delete("/delegations", h.handleRevokeDelegation)

			r.Post("/proposals", h.handleCreateProposal)
			r.Post("/proposals/{id}/activate", h.handleActivateProposal())
			r.Post("/proposals/{id}/close", h.handleCloseProposal())
			r.Post("/proposals/{id}/finalize", h.handleFinalizeProposal())
			r.Post("/proposals/{id}/execute", h.handleExecuteProposal())
			r.Post("/proposals/{id}/votes", h.handleCastVote)

			r.Post("/disputes", h.handleReportDispute)
			r.Post("/disputes/{id}/evidence", h.handleAddEvidence)
			r.Post("/disputes/{id}/resolve", h.handleResolveDispute)
			r.Put("/arbitrator", h.handleSetArbitrator)
		})
	})

	return r
}
