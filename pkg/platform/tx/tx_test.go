package tx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInTx(t *testing.T) {
	ctx := context.Background()

	assert.False(t, InTx(ctx))
	assert.True(t, InTx(Mark(ctx)))

	_, ok := From(Mark(ctx))
	assert.False(t, ok, "a marked context carries no SQL transaction")
}

func TestWithTxNil(t *testing.T) {
	ctx := WithTx(context.Background(), nil)

	_, ok := From(ctx)
	assert.False(t, ok)
	assert.False(t, InTx(ctx))
}
