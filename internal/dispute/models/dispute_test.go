package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quorum/internal/policy"
	"quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
)

func newPendingDispute(t *testing.T) Dispute {
	t.Helper()
	d, err := NewDispute("alice", "carol", 7, "double voting via sock puppets", policy.MinDisputeStake, 40)
	require.NoError(t, err)
	return d
}

func TestNewDispute(t *testing.T) {
	t.Run("valid report", func(t *testing.T) {
		d := newPendingDispute(t)
		assert.Equal(t, StatusPending, d.Status)
		assert.True(t, d.Pending())
	})

	t.Run("self report", func(t *testing.T) {
		_, err := NewDispute("alice", "alice", 7, "oops", policy.MinDisputeStake, 40)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("stake below minimum", func(t *testing.T) {
		_, err := NewDispute("alice", "carol", 7, "d", policy.MinDisputeStake-1, 40)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("empty description", func(t *testing.T) {
		_, err := NewDispute("alice", "carol", 7, "", policy.MinDisputeStake, 40)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func TestEvidenceAppendOnly(t *testing.T) {
	d := newPendingDispute(t)

	require.NoError(t, d.CanAddEvidence(EvidenceKindDocument, "hash-0"))
	first := d.ApplyEvidence("alice", "hash-0", EvidenceKindDocument, 41)
	second := d.ApplyEvidence("bob", "hash-1", EvidenceKindTxTrace, 42)

	assert.Equal(t, 0, first.Index)
	assert.Equal(t, 1, second.Index)
	assert.Len(t, d.Evidence, 2)

	t.Run("unknown kind", func(t *testing.T) {
		err := d.CanAddEvidence("rumor", "hash-2")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("empty hash", func(t *testing.T) {
		err := d.CanAddEvidence(EvidenceKindDocument, "")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("closed dispute accepts nothing", func(t *testing.T) {
		d.ApplyResolution("arb", true, "confirmed", 50)
		err := d.CanAddEvidence(EvidenceKindDocument, "hash-2")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func TestResolution(t *testing.T) {
	t.Run("valid verdict", func(t *testing.T) {
		d := newPendingDispute(t)
		require.NoError(t, d.CanResolve())
		d.ApplyResolution("arb", true, "confirmed", 50)
		assert.Equal(t, StatusResolvedValid, d.Status)
		require.NotNil(t, d.Resolution)
		assert.Equal(t, domain.Sequence(50), d.Resolution.Sequence)
	})

	t.Run("invalid verdict", func(t *testing.T) {
		d := newPendingDispute(t)
		d.ApplyResolution("arb", false, "unfounded", 50)
		assert.Equal(t, StatusResolvedInvalid, d.Status)
	})

	t.Run("resolution is single shot", func(t *testing.T) {
		d := newPendingDispute(t)
		d.ApplyResolution("arb", true, "confirmed", 50)
		err := d.CanResolve()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func TestReward(t *testing.T) {
	d, err := NewDispute("alice", "carol", 7, "d", 200, 40)
	require.NoError(t, err)
	assert.Equal(t, uint64(200*policy.DisputeRewardBps/10000), d.Reward())
}
