package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeQuestionEmpty, CodeOf(NewQuestionEmptyError()))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))

	wrapped := fmt.Errorf("handler: %w", NewAIUnsafeQueryError())
	assert.Equal(t, ErrCodeAIUnsafeQuery, CodeOf(wrapped))
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("pq: permission denied for table users")
	err := NewQueryPermissionDeniedError(cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsCode(err, ErrCodeQueryPermissionDenied))
}

func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError(NewInvalidStoreIDError("x")))
	assert.True(t, IsValidationError(NewQuestionTooLongError(3000, 2000)))
	assert.False(t, IsValidationError(NewAIUnavailableError(nil)))
	assert.False(t, IsValidationError(errors.New("plain")))
}

// The unsafe-query error is the one place where less information is the
// contract: message fixed, no details.
func TestUnsafeQueryErrorShape(t *testing.T) {
	err := NewAIUnsafeQueryError()

	require.Equal(t, "Unable to process this question", err.Message)
	assert.Empty(t, err.Details)
	assert.False(t, err.Retryable)
}

func TestQuestionTooLongMessage(t *testing.T) {
	err := NewQuestionTooLongError(2500, 2000)

	assert.Contains(t, err.Message, "2000")
	assert.Contains(t, err.Details, "2500")
}
