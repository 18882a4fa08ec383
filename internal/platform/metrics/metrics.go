package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics shared across the governance contexts.
type Metrics struct {
	AccountsRegistered prometheus.Counter
	IdentitiesVerified prometheus.Counter
	SharesMinted       prometheus.Counter
	DelegationsCreated prometheus.Counter
	ProposalsCreated   prometheus.Counter
	VotesCast          *prometheus.CounterVec
	DisputesReported   prometheus.Counter
	DisputesResolved   *prometheus.CounterVec
	PenaltiesApplied   prometheus.Counter
	TransitionRejects  *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		AccountsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "quorum_accounts_registered_total",
			Help: "Total number of accounts registered",
		}),
		IdentitiesVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "quorum_identities_verified_total",
			Help: "Total number of identity verifications accepted",
		}),
		SharesMinted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "quorum_shares_minted_total",
			Help: "Total shares minted across all accounts",
		}),
		DelegationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "quorum_delegations_created_total",
			Help: "Total number of delegations created",
		}),
		ProposalsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "quorum_proposals_created_total",
			Help: "Total number of proposals created",
		}),
		VotesCast: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "quorum_votes_cast_total",
			Help: "Total votes recorded, by choice",
		}, []string{"choice"}),
		DisputesReported: promauto.NewCounter(prometheus.CounterOpts{
			Name: "quorum_disputes_reported_total",
			Help: "Total disputes reported with escrowed stake",
		}),
		DisputesResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "quorum_disputes_resolved_total",
			Help: "Total disputes resolved, by outcome",
		}, []string{"outcome"}),
		PenaltiesApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "quorum_penalties_applied_total",
			Help: "Total reputation penalties applied",
		}),
		TransitionRejects: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "quorum_transition_rejects_total",
			Help: "State transitions rejected before any write, by error code",
		}, []string{"code"}),
	}
}
