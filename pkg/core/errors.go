package core

import (
	"fmt"
)

// Error represents a categorized client error.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`

	wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.wrapped
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// ErrTransport covers socket closes, dial failures and HTTP transport
	// failures. The channel retries these per its backoff policy.
	ErrTransport ErrorType = "transport_error"
	// ErrPermission covers microphone, geolocation and popup denials. These
	// are caught at the call site and degraded, never retried.
	ErrPermission ErrorType = "permission_error"
	// ErrProtocol covers malformed or undecodable inbound frames.
	ErrProtocol ErrorType = "protocol_error"
	// ErrExhausted marks a channel that has used up its reconnect budget.
	ErrExhausted ErrorType = "reconnect_exhausted"
	// ErrInvalidRequest covers caller mistakes (bad config, missing ids).
	ErrInvalidRequest ErrorType = "invalid_request_error"
	// ErrStorage covers client-state persistence failures. These are
	// swallowed at the component boundary; the type exists for logging.
	ErrStorage ErrorType = "storage_error"
	// ErrAPI covers REST collaborator failures with a decoded response.
	ErrAPI ErrorType = "api_error"
)

// NewTransportError creates a transport error wrapping the underlying cause.
func NewTransportError(message string, cause error) *Error {
	return &Error{Type: ErrTransport, Message: message, wrapped: cause}
}

// NewPermissionError creates a permission error.
func NewPermissionError(message string, cause error) *Error {
	return &Error{Type: ErrPermission, Message: message, wrapped: cause}
}

// NewProtocolError creates a protocol error.
func NewProtocolError(message string, cause error) *Error {
	return &Error{Type: ErrProtocol, Message: message, wrapped: cause}
}

// NewExhaustedError creates a reconnect-exhausted error.
func NewExhaustedError(message string) *Error {
	return &Error{Type: ErrExhausted, Message: message}
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message}
}

// NewStorageError creates a storage error wrapping the underlying cause.
func NewStorageError(message string, cause error) *Error {
	return &Error{Type: ErrStorage, Message: message, wrapped: cause}
}

// NewAPIError creates an API error with an optional backend error code.
func NewAPIError(message, code string) *Error {
	return &Error{Type: ErrAPI, Message: message, Code: code}
}

// IsRetryable returns true if the error is worth retrying.
func (e *Error) IsRetryable() bool {
	return e.Type == ErrTransport
}
