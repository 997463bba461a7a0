package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies enrichment errors into a shared taxonomy. Provider
// specific upstream payloads are mapped into these codes rather than leaked
// verbatim; the upstream message text is kept where it helps operators.
type ErrorCode string

const (
	CodeValidation        ErrorCode = "validation_error"
	CodeAuthentication    ErrorCode = "authentication_error"
	CodeAuthorization     ErrorCode = "authorization_error"
	CodeNotFound          ErrorCode = "not_found"
	CodeRateLimited       ErrorCode = "rate_limit_exceeded"
	CodeProviderRateLimit ErrorCode = "provider_rate_limit"
	CodeProviderQuota     ErrorCode = "provider_quota_exceeded"
	CodeProvider          ErrorCode = "provider_error"
	CodeOperationFailed   ErrorCode = "operation_failed"
	CodeTimeout           ErrorCode = "timeout"
	CodeUnknown           ErrorCode = "unknown_error"
)

// Error is a coded enrichment error carrying a machine-readable code and a
// human-readable message.
type Error struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	Provider string    `json:"provider,omitempty"`
	Err      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a coded error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a coded error with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps a cause into a coded error.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithProvider attaches the originating provider id and returns the error.
func (e *Error) WithProvider(providerID string) *Error {
	e.Provider = providerID
	return e
}

// CodeOf extracts the error code from err, walking the wrap chain.
// Returns CodeUnknown for nil-safe plain errors.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeUnknown
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// AsError converts any error into a coded *Error, preserving an existing
// coded error and mapping everything else to CodeUnknown.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return &Error{Code: CodeUnknown, Message: err.Error(), Err: err}
}
