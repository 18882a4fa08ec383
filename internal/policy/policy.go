// Package policy holds the governance policy constants. They are fixed-point
// (shares, sequences, basis points) so every replica computes identical
// results; adjusting them is a deploy-time decision until parameter
// governance lands.
package policy

const (
	// MinLockDuration is the minimum delegation lock, in sequences.
	MinLockDuration = 100

	// MinProposalPower is the voting power required to create a proposal.
	MinProposalPower = 100

	// MinVotePower is the voting power required to cast a vote.
	MinVotePower = 1

	// ApprovalThresholdBps is the votesFor share (basis points out of 10000)
	// required to approve a finalized proposal. At exactly 5000 a tie still
	// rejects because the comparison is strict.
	ApprovalThresholdBps = 5000

	// BasePenalty is the unit amount for delegate penalties; the effective
	// amount is BasePenalty × severity × (1 + prior penalty count).
	BasePenalty = 100

	// MaxSeverity bounds the penalty severity scale (1..MaxSeverity).
	MaxSeverity = 5

	// SuspensionThreshold is the penalty count at which a delegate is
	// suspended. Suspension is sticky; there is no automatic reinstatement.
	SuspensionThreshold = 3

	// MinDisputeStake is the smallest stake accepted with a dispute report.
	MinDisputeStake = 50

	// DisputeRewardBps is the reporter's reward on a valid dispute, in basis
	// points of the escrowed stake.
	DisputeRewardBps = 1000

	// PerfectScore is the reputation score of a delegate with no valid
	// disputes against them. Scores live in [0, PerfectScore].
	PerfectScore = 1000
)
