package escrow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quorum/pkg/platform/sentinel"
)

func TestInMemoryLedgerTransfer(t *testing.T) {
	ctx := context.Background()
	ledger := NewInMemoryLedger()
	ledger.Credit(ctx, "alice", 100)

	t.Run("moves the full amount", func(t *testing.T) {
		require.NoError(t, ledger.Transfer(ctx, 60, "alice", Pool))

		from, err := ledger.Balance(ctx, "alice")
		require.NoError(t, err)
		pool, err := ledger.Balance(ctx, Pool)
		require.NoError(t, err)
		assert.Equal(t, uint64(40), from)
		assert.Equal(t, uint64(60), pool)
	})

	t.Run("insufficient balance moves nothing", func(t *testing.T) {
		err := ledger.Transfer(ctx, 41, "alice", Pool)
		require.ErrorIs(t, err, sentinel.ErrInsufficientFunds)

		from, err := ledger.Balance(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, uint64(40), from)
	})

	t.Run("unknown holder reads zero", func(t *testing.T) {
		balance, err := ledger.Balance(ctx, "nobody")
		require.NoError(t, err)
		assert.Zero(t, balance)
	})
}
