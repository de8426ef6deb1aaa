package model

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the WooCommerce and Klarna clients.
// Use errors.Is() to check against these.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrConflict       = errors.New("conflict")
	ErrUpstreamError  = errors.New("upstream error")
	ErrRateLimited    = errors.New("rate limited")
	ErrNotConfigured  = errors.New("not configured")
)

// APIError is the error returned by every operation that can reach a client.
// Message is short enough to end up in an order note.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`

	// CorrelationID is Klarna's correlation_id for upstream failures.
	// Klarna support asks for it.
	CorrelationID string `json:"correlation_id,omitempty"`

	Err error `json:"-"`
}

func (e *APIError) Error() string {
	s := e.Code + ": " + e.Message
	if e.CorrelationID != "" {
		s += " [" + e.CorrelationID + "]"
	}
	if e.Err != nil {
		s += " (" + e.Err.Error() + ")"
	}
	return s
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a 404 error for a missing order, refund or Klarna order.
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: 404,
		Err:        ErrNotFound,
	}
}

// NewValidationError creates a 400 error for invalid input.
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		StatusCode: 400,
		Err:        ErrInvalidRequest,
	}
}

// NewUnauthorizedError creates a 401 error for auth failures.
func NewUnauthorizedError(reason string) *APIError {
	return &APIError{
		Code:       "UNAUTHORIZED",
		Message:    reason,
		StatusCode: 401,
		Err:        ErrUnauthorized,
	}
}

// NewUpstreamError creates a 502 error for backend failures.
// The service name ends up in the message shown in order notes.
func NewUpstreamError(service string, err error) *APIError {
	return &APIError{
		Code:       "UPSTREAM_ERROR",
		Message:    fmt.Sprintf("%s request failed", service),
		StatusCode: 502,
		Err:        fmt.Errorf("%w: %v", ErrUpstreamError, err),
	}
}

// NewConflictError creates a 409 error when the Klarna order is in a state
// that does not allow the requested operation (already captured, cancelled, ...).
func NewConflictError(reason string) *APIError {
	return &APIError{
		Code:       "ORDER_STATE_CONFLICT",
		Message:    reason,
		StatusCode: 409,
		Err:        ErrConflict,
	}
}

// NewInternalError creates a 500 error for anything that is not an APIError.
// The cause is kept for logs and never shown to clients.
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: 500,
		Err:        err,
	}
}

// NewRateLimitError creates a 429 error when WooCommerce or Klarna throttles us.
func NewRateLimitError(service string) *APIError {
	return &APIError{
		Code:       "RATE_LIMITED",
		Message:    fmt.Sprintf("%s rate limit exceeded, please retry later", service),
		StatusCode: 429,
		Err:        ErrRateLimited,
	}
}
