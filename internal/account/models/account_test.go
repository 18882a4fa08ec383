package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
)

func testHash(b byte) domain.IdentityHash {
	var h domain.IdentityHash
	h[0] = b
	return h
}

func TestNewAccount(t *testing.T) {
	account := NewAccount("alice", 7)
	assert.Equal(t, domain.AccountID("alice"), account.ID)
	assert.True(t, account.Active)
	assert.False(t, account.Verified)
	assert.Zero(t, account.Shares)
	assert.Zero(t, account.VotingPower)
	assert.Equal(t, domain.Sequence(7), account.CreatedAt)
}

func TestVerification(t *testing.T) {
	t.Run("binds hash and marks verified", func(t *testing.T) {
		account := NewAccount("alice", 1)
		require.NoError(t, account.CanVerify(testHash(0xA)))
		account.ApplyVerification(testHash(0xA))
		assert.True(t, account.Verified)
		assert.Equal(t, testHash(0xA), account.IdentityHash)
	})

	t.Run("rejects second verification", func(t *testing.T) {
		account := NewAccount("alice", 1)
		account.ApplyVerification(testHash(0xA))
		err := account.CanVerify(testHash(0xB))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("rejects zero hash", func(t *testing.T) {
		account := NewAccount("alice", 1)
		err := account.CanVerify(domain.IdentityHash{})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects deactivated account", func(t *testing.T) {
		account := NewAccount("alice", 1)
		account.Deactivate()
		err := account.CanVerify(testHash(0xA))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func TestMinting(t *testing.T) {
	t.Run("requires verification", func(t *testing.T) {
		account := NewAccount("alice", 1)
		err := account.CanMint(100)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("rejects zero amount", func(t *testing.T) {
		account := NewAccount("alice", 1)
		account.ApplyVerification(testHash(0xA))
		err := account.CanMint(0)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("mints are additive", func(t *testing.T) {
		account := NewAccount("alice", 1)
		account.ApplyVerification(testHash(0xA))
		require.NoError(t, account.CanMint(100))
		account.ApplyMint(100)
		account.ApplyMint(50)
		assert.Equal(t, uint64(150), account.Shares)
	})
}

func TestDebit(t *testing.T) {
	account := NewAccount("alice", 1)
	account.ApplyVerification(testHash(0xA))
	account.ApplyMint(100)

	t.Run("rejects zero amount", func(t *testing.T) {
		err := account.CanDebit(0)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects overdraft", func(t *testing.T) {
		err := account.CanDebit(101)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
	})

	t.Run("moves balance", func(t *testing.T) {
		require.NoError(t, account.CanDebit(40))
		account.ApplyDebit(40)
		assert.Equal(t, uint64(60), account.Shares)
		account.ApplyCredit(15)
		assert.Equal(t, uint64(75), account.Shares)
	})
}

func TestDeactivateKeepsIdentity(t *testing.T) {
	account := NewAccount("alice", 1)
	account.ApplyVerification(testHash(0xA))
	account.ApplyMint(100)
	account.Deactivate()

	assert.False(t, account.Active)
	assert.True(t, account.Verified)
	assert.Equal(t, uint64(100), account.Shares)
}
