// Package apierror provides the error taxonomy shared by services and the
// HTTP layer, plus the standardized response envelopes. All errors returned
// to clients go through this package to ensure consistency and to prevent
// leaking internal details (stack traces, DB errors, etc.).
package apierror

import (
	"errors"
	"net/http"
)

// Kind classifies a business error. Services raise kinds; handlers map them
// to HTTP status codes. Anything without a kind is an internal error.
type Kind int

const (
	KindBadRequest Kind = iota // malformed / missing required input
	KindNotFound               // tenant-scoped entity does not exist
	KindConflict               // business-rule violation (state, uniqueness)
)

// Error is a kinded business error with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.cause }

// BadRequest creates a KindBadRequest error.
func BadRequest(msg string) *Error { return &Error{Kind: KindBadRequest, Message: msg} }

// NotFound creates a KindNotFound error.
func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

// Conflict creates a KindConflict error.
func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// Wrap attaches an underlying cause while keeping the safe message.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, cause: cause}
}

// StatusOf maps an error to its HTTP status. Unknown errors are 500.
func StatusOf(err error) int {
	var ae *Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// ValidationError wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation error", Fields: fields}
}
