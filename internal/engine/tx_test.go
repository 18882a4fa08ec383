package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	txcontext "quorum/pkg/platform/tx"
)

func TestMemoryTxMarksTransition(t *testing.T) {
	runner := NewMemoryTx()

	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		assert.True(t, txcontext.InTx(ctx), "stores must be able to tell a transition read apart")
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryTxCancelledContext(t *testing.T) {
	runner := NewMemoryTx()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runner.RunInTx(ctx, func(ctx context.Context) error {
		t.Fatal("transition must not run")
		return nil
	})
	require.Error(t, err)
}
