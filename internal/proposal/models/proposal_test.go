package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
)

func newActiveProposal(t *testing.T) Proposal {
	t.Helper()
	p, err := NewProposal("alice", "fund the treasury", "", 10, 110, 5)
	require.NoError(t, err)
	require.NoError(t, p.CanActivate(10))
	p.ApplyActivation()
	return p
}

func TestNewProposal(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		startSeq domain.Sequence
		endSeq   domain.Sequence
		now      domain.Sequence
		wantErr  bool
	}{
		{name: "valid window", title: "t", startSeq: 10, endSeq: 20, now: 10},
		{name: "empty title", title: "", startSeq: 10, endSeq: 20, now: 10, wantErr: true},
		{name: "end before start", title: "t", startSeq: 20, endSeq: 10, now: 10, wantErr: true},
		{name: "end equals start", title: "t", startSeq: 10, endSeq: 10, now: 10, wantErr: true},
		{name: "start in the past", title: "t", startSeq: 9, endSeq: 20, now: 10, wantErr: true},
		{name: "start exactly now", title: "t", startSeq: 10, endSeq: 20, now: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProposal("alice", tt.title, "d", tt.startSeq, tt.endSeq, tt.now)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusPending, p.Status)
			assert.Equal(t, tt.now, p.CreatedAt)
		})
	}
}

func TestProposalActivation(t *testing.T) {
	p, err := NewProposal("alice", "t", "", 10, 20, 5)
	require.NoError(t, err)

	t.Run("before window opens", func(t *testing.T) {
		err := p.CanActivate(9)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("after window closed", func(t *testing.T) {
		err := p.CanActivate(21)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("inside window", func(t *testing.T) {
		require.NoError(t, p.CanActivate(10))
		p.ApplyActivation()
		assert.Equal(t, StatusActive, p.Status)
	})

	t.Run("already active", func(t *testing.T) {
		err := p.CanActivate(11)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func TestProposalTally(t *testing.T) {
	p := newActiveProposal(t)

	require.NoError(t, p.CanTally(50))
	p.ApplyVote(true, 600)
	p.ApplyVote(false, 400)
	assert.Equal(t, uint64(600), p.VotesFor)
	assert.Equal(t, uint64(400), p.VotesAgainst)

	t.Run("outside window", func(t *testing.T) {
		err := p.CanTally(111)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("not active", func(t *testing.T) {
		closed := newActiveProposal(t)
		closed.ApplyClose()
		err := closed.CanTally(50)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func TestProposalFinalization(t *testing.T) {
	t.Run("before window ends", func(t *testing.T) {
		p := newActiveProposal(t)
		err := p.CanFinalize(110)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("majority approves", func(t *testing.T) {
		p := newActiveProposal(t)
		p.ApplyVote(true, 600)
		p.ApplyVote(false, 400)
		require.NoError(t, p.CanFinalize(111))
		p.ApplyFinalization(5000)
		assert.Equal(t, StatusApproved, p.Status)
		assert.True(t, p.Approved())
	})

	t.Run("exact tie rejects", func(t *testing.T) {
		p := newActiveProposal(t)
		p.ApplyVote(true, 500)
		p.ApplyVote(false, 500)
		p.ApplyFinalization(5000)
		assert.Equal(t, StatusRejected, p.Status)
	})

	t.Run("zero votes rejects", func(t *testing.T) {
		p := newActiveProposal(t)
		p.ApplyFinalization(5000)
		assert.Equal(t, StatusRejected, p.Status)
	})

	t.Run("finalize is single shot", func(t *testing.T) {
		p := newActiveProposal(t)
		p.ApplyVote(true, 1)
		p.ApplyFinalization(5000)
		err := p.CanFinalize(112)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func TestProposalExecution(t *testing.T) {
	t.Run("approved proposal executes once", func(t *testing.T) {
		p := newActiveProposal(t)
		p.ApplyVote(true, 10)
		p.ApplyFinalization(5000)
		require.NoError(t, p.CanExecute())
		p.ApplyExecution()
		assert.True(t, p.Executed())
		assert.True(t, p.Approved())

		err := p.CanExecute()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("rejected proposal never executes", func(t *testing.T) {
		p := newActiveProposal(t)
		p.ApplyFinalization(5000)
		err := p.CanExecute()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}
