// Package errors provides the structured error taxonomy shared by the
// insight pipeline, the query executor and the HTTP layer.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Caller-input validation errors: fail fast, never retried.
const (
	ErrCodeInvalidStoreID  ErrorCode = "INVALID_STORE_ID"
	ErrCodeQuestionEmpty   ErrorCode = "QUESTION_EMPTY"
	ErrCodeQuestionTooLong ErrorCode = "QUESTION_TOO_LONG"
)

// AI pipeline errors: everything downstream of the chat-completion call.
const (
	ErrCodeAIEmptyResponse     ErrorCode = "AI_EMPTY_RESPONSE"
	ErrCodeAIMalformedResponse ErrorCode = "AI_MALFORMED_RESPONSE"
	ErrCodeAIMissingField      ErrorCode = "AI_MISSING_FIELD"
	ErrCodeAIUnavailable       ErrorCode = "AI_UNAVAILABLE"
	ErrCodeAIUnsafeQuery       ErrorCode = "AI_UNSAFE_QUERY"
	ErrCodeAIPipelineFailed    ErrorCode = "AI_PIPELINE_FAILED"
)

// Query execution errors, classified from driver error text.
const (
	ErrCodeQueryTimeout          ErrorCode = "QUERY_TIMEOUT"
	ErrCodeQueryPermissionDenied ErrorCode = "QUERY_PERMISSION_DENIED"
	ErrCodeQuerySyntaxError      ErrorCode = "QUERY_SYNTAX_ERROR"
	ErrCodeQueryFailed           ErrorCode = "QUERY_FAILED"
)

// StandardError represents a structured application error. Message is safe
// to show to a caller; Details and the wrapped cause are for logs only.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// CodeOf returns the error code carried by err, or "" when err is not a
// StandardError.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsValidationError reports whether err is a bad-caller-input error.
func IsValidationError(err error) bool {
	switch CodeOf(err) {
	case ErrCodeInvalidStoreID, ErrCodeQuestionEmpty, ErrCodeQuestionTooLong:
		return true
	}
	return false
}

// NewInvalidStoreIDError creates a non-retryable input validation error.
func NewInvalidStoreIDError(storeID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidStoreID,
		Message:   "Store id must be a valid UUID",
		Details:   fmt.Sprintf("storeId: %q", storeID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQuestionEmptyError creates a non-retryable input validation error.
func NewQuestionEmptyError() *StandardError {
	return &StandardError{
		Code:      ErrCodeQuestionEmpty,
		Message:   "Question must not be empty",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQuestionTooLongError creates a non-retryable input validation error.
func NewQuestionTooLongError(length, max int) *StandardError {
	return &StandardError{
		Code:      ErrCodeQuestionTooLong,
		Message:   fmt.Sprintf("Question must be at most %d characters", max),
		Details:   fmt.Sprintf("length: %d", length),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAIEmptyResponseError creates an error for a completion with no choices.
func NewAIEmptyResponseError() *StandardError {
	return &StandardError{
		Code:      ErrCodeAIEmptyResponse,
		Message:   "The AI service returned an empty response",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAIMalformedResponseError creates an error for unparseable model output.
func NewAIMalformedResponseError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAIMalformedResponse,
		Message:   "The AI service returned a malformed response",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewAIMissingFieldError creates an error for a parsed answer lacking a
// required field.
func NewAIMissingFieldError(field string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAIMissingField,
		Message:   fmt.Sprintf("The AI response is missing the %q field", field),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAIUnavailableError creates the user-facing error raised after the retry
// budget is exhausted. The last transport failure rides along as the cause.
func NewAIUnavailableError(cause error) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      ErrCodeAIUnavailable,
		Message:   "The AI service is temporarily unavailable. Please try again in a moment.",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewAIUnsafeQueryError creates the single generic error surfaced when the
// generated SQL fails safety validation. The validator's detailed findings
// are deliberately kept out of it so an adversarial question cannot probe
// the ruleset; callers log them separately.
func NewAIUnsafeQueryError() *StandardError {
	return &StandardError{
		Code:      ErrCodeAIUnsafeQuery,
		Message:   "Unable to process this question",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAIPipelineFailedError wraps an unexpected failure anywhere in the
// pipeline that is not already one of the typed errors.
func NewAIPipelineFailedError(cause error) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      ErrCodeAIPipelineFailed,
		Message:   "Failed to process the question",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewQueryTimeoutError creates an execution error for a statement timeout.
func NewQueryTimeoutError(cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "The query took too long to run. Try narrowing the date range.",
		Details:   cause.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewQueryPermissionDeniedError creates an execution error for a privilege
// failure on the read-only role.
func NewQueryPermissionDeniedError(cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryPermissionDenied,
		Message:   "The query touched data this service is not permitted to read",
		Details:   cause.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewQuerySyntaxError creates an execution error for invalid generated SQL.
func NewQuerySyntaxError(cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQuerySyntaxError,
		Message:   "The generated query contained a syntax error",
		Details:   cause.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewQueryFailedError creates the fallback execution error.
func NewQueryFailedError(cause error) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      ErrCodeQueryFailed,
		Message:   "The query failed unexpectedly",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}
