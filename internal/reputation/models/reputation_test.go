package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quorum/internal/policy"
	dErrors "quorum/pkg/domain-errors"
)

func TestCanPenalize(t *testing.T) {
	assert.True(t, dErrors.HasCode(CanPenalize(0), dErrors.CodeBadRequest))
	assert.True(t, dErrors.HasCode(CanPenalize(policy.MaxSeverity+1), dErrors.CodeBadRequest))
	require.NoError(t, CanPenalize(1))
	require.NoError(t, CanPenalize(policy.MaxSeverity))
}

func TestApplyPenaltyEscalates(t *testing.T) {
	entry := NewReputationEntry("carol")

	first := entry.ApplyPenalty(2, 10)
	second := entry.ApplyPenalty(2, 20)
	third := entry.ApplyPenalty(2, 30)

	assert.Equal(t, uint64(policy.BasePenalty*2), first)
	assert.Equal(t, uint64(policy.BasePenalty*2*2), second)
	assert.Equal(t, uint64(policy.BasePenalty*2*3), third)
	assert.Less(t, first, second)
	assert.Less(t, second, third)
	assert.Equal(t, first+second+third, entry.TotalPenalties)
	assert.Equal(t, uint64(3), entry.PenaltyCount)
}

func TestSuspensionIsSticky(t *testing.T) {
	entry := NewReputationEntry("carol")

	entry.ApplyPenalty(1, 10)
	entry.ApplyPenalty(1, 20)
	assert.False(t, entry.Suspended)

	entry.ApplyPenalty(1, 30)
	assert.True(t, entry.Suspended)

	// Nothing clears it.
	entry.ApplyDisputeOutcome(false)
	assert.True(t, entry.Suspended)
}

func TestScore(t *testing.T) {
	entry := NewReputationEntry("carol")
	assert.Equal(t, uint64(policy.PerfectScore), entry.Score())

	entry.ApplyDisputeOutcome(false)
	assert.Equal(t, uint64(policy.PerfectScore), entry.Score())

	entry.ApplyDisputeOutcome(true)
	assert.Equal(t, uint64(500), entry.Score())

	entry.ApplyDisputeOutcome(true)
	entry.ApplyDisputeOutcome(true)
	assert.Equal(t, uint64(250), entry.Score())
}
