package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	plain := NewError(KindInvalidInput, "transcript is empty", nil)
	assert.Equal(t, "invalid_input: transcript is empty", plain.Error())

	cause := errors.New("underlying")
	wrapped := NewError(KindJobTimeout, "deadline passed", cause)
	assert.Equal(t, "job_timeout: deadline passed: underlying", wrapped.Error())
	assert.Equal(t, cause, wrapped.Unwrap())
}

func TestKindOf(t *testing.T) {
	err := NewError(KindCancelled, "stopped", nil)

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindCancelled, kind)

	wrapped := fmt.Errorf("outer: %w", err)
	kind, ok = KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindCancelled, kind)

	_, ok = KindOf(errors.New("ordinary"))
	assert.False(t, ok)
}
