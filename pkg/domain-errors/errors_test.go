package domainerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("direct coded error", func(t *testing.T) {
		err := New(CodeNotFound, "case not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("wrapped coded error", func(t *testing.T) {
		cause := errors.New("pq: connection refused")
		err := Wrap(cause, CodeUnavailable, "case store unreachable")
		assert.True(t, HasCode(err, CodeUnavailable))
		assert.True(t, errors.Is(err, cause))
	})

	t.Run("uncoded error has no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	})
}

func TestWrapNil(t *testing.T) {
	require.NoError(t, Wrap(nil, CodeInternal, "should vanish"))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeValidation, CodeOf(New(CodeValidation, "bad slot key")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("uncoded")))
}

func TestMessageOfHidesUncoded(t *testing.T) {
	assert.Equal(t, "", MessageOf(errors.New("sensitive detail")))
	assert.Equal(t, "bad input", MessageOf(New(CodeBadRequest, "bad input")))
}
