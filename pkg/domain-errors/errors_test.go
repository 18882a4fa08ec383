package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches own code", func(t *testing.T) {
		err := New(CodeConflict, "already voted")
		assert.True(t, HasCode(err, CodeConflict))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		inner := New(CodeNotFound, "proposal not found")
		wrapped := fmt.Errorf("vote: %w", inner)
		assert.True(t, HasCode(wrapped, CodeNotFound))
	})

	t.Run("false for plain errors", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
	})
}

func TestWrap(t *testing.T) {
	t.Run("nil in nil out", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "load account"))
	})

	t.Run("preserves cause chain", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(cause, CodeInternal, "append audit entry")
		require.Error(t, err)
		assert.True(t, errors.Is(err, cause))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})
}

func TestCodeOf_DefaultsToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("infra exploded")))
}
