package errors

import (
	"fmt"
)

// ErrorCode represents a specific error type for call orchestration.
type ErrorCode string

const (
	// ErrCodeSessionNotFound indicates the call session does not exist.
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	// ErrCodeSessionClosed indicates the call session has already ended.
	ErrCodeSessionClosed ErrorCode = "SESSION_CLOSED"
	// ErrCodeToolValidation indicates the model supplied malformed tool arguments.
	ErrCodeToolValidation ErrorCode = "TOOL_VALIDATION"
	// ErrCodeToolBackend indicates a tool backend failure (conflict, not found, unavailable).
	ErrCodeToolBackend ErrorCode = "TOOL_BACKEND"
	// ErrCodeLLMUnavailable indicates the language model call failed entirely.
	ErrCodeLLMUnavailable ErrorCode = "LLM_UNAVAILABLE"
	// ErrCodeLoopBoundExceeded indicates too many tool rounds in one utterance.
	ErrCodeLoopBoundExceeded ErrorCode = "LOOP_BOUND_EXCEEDED"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeServiceUnavailable indicates a dependent service is not available.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeContextCanceled indicates the operation was canceled.
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
)

// CallError represents a structured error for call orchestration operations.
type CallError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *CallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *CallError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *CallError) WithContext(key string, value interface{}) *CallError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// GetCode returns the error code.
func (e *CallError) GetCode() ErrorCode {
	return e.Code
}

// Convenience constructors for common error types.

// SessionNotFound creates a session not found error.
func SessionNotFound(callID string) *CallError {
	return &CallError{
		Code:    ErrCodeSessionNotFound,
		Message: fmt.Sprintf("no active session for call %s", callID),
	}
}

// SessionClosed creates a session closed error.
func SessionClosed(callID string) *CallError {
	return &CallError{
		Code:    ErrCodeSessionClosed,
		Message: fmt.Sprintf("session for call %s has ended", callID),
	}
}

// ToolValidation creates a tool validation error.
func ToolValidation(msg string) *CallError {
	return &CallError{Code: ErrCodeToolValidation, Message: msg}
}

// ToolBackend creates a tool backend error.
func ToolBackend(msg string, cause error) *CallError {
	return &CallError{Code: ErrCodeToolBackend, Message: msg, Cause: cause}
}

// LLMUnavailable creates an LLM unavailable error.
func LLMUnavailable(cause error) *CallError {
	return &CallError{Code: ErrCodeLLMUnavailable, Message: "language model call failed", Cause: cause}
}

// LoopBoundExceeded creates a loop bound exceeded error.
func LoopBoundExceeded(rounds int) *CallError {
	return &CallError{
		Code:    ErrCodeLoopBoundExceeded,
		Message: fmt.Sprintf("tool loop exceeded %d rounds", rounds),
	}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *CallError {
	return &CallError{Code: ErrCodeInvalidArgument, Message: msg}
}

// ServiceUnavailable creates a service unavailable error.
func ServiceUnavailable(msg string) *CallError {
	return &CallError{Code: ErrCodeServiceUnavailable, Message: msg}
}

// ContextCanceled creates a context canceled error.
func ContextCanceled(cause error) *CallError {
	return &CallError{Code: ErrCodeContextCanceled, Message: "operation canceled", Cause: cause}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *CallError {
	return &CallError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	if callErr, ok := err.(*CallError); ok {
		return callErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not a CallError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	if callErr, ok := err.(*CallError); ok {
		return callErr.Code
	}
	return defaultCode
}
