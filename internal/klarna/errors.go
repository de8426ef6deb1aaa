package klarna

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"kom-bridge/internal/model"
)

// Error is a non-2xx response from the OM API.
type Error struct {
	StatusCode    int
	Code          string
	Messages      []string
	CorrelationID string
}

// errorBody is Klarna's error response shape.
type errorBody struct {
	ErrorCode     string   `json:"error_code"`
	ErrorMessages []string `json:"error_messages"`
	CorrelationID string   `json:"correlation_id"`
}

func (e *Error) Error() string {
	s := fmt.Sprintf("klarna: status %d", e.StatusCode)
	if e.Code != "" {
		s += " " + e.Code
	}
	if len(e.Messages) > 0 {
		s += ": " + strings.Join(e.Messages, "; ")
	}
	if e.CorrelationID != "" {
		s += " (correlation_id " + e.CorrelationID + ")"
	}
	return s
}

// Message is the human readable reason, suitable for an order note.
func (e *Error) Message() string {
	if len(e.Messages) > 0 {
		return e.Messages[0]
	}
	if e.Code != "" {
		return e.Code
	}
	return http.StatusText(e.StatusCode)
}

// parseError converts a failed OM response into an *model.APIError wrapping
// both the matching sentinel and the *Error.
func parseError(statusCode int, body []byte) error {
	var eb errorBody
	json.Unmarshal(body, &eb) // Best effort parse

	kerr := &Error{
		StatusCode:    statusCode,
		Code:          eb.ErrorCode,
		Messages:      eb.ErrorMessages,
		CorrelationID: eb.CorrelationID,
	}

	var apiErr *model.APIError
	switch statusCode {
	case http.StatusNotFound:
		apiErr = model.NewNotFoundError("Klarna order")
	case http.StatusUnauthorized:
		apiErr = model.NewUnauthorizedError("Klarna authentication failed")
	case http.StatusForbidden, http.StatusConflict:
		apiErr = model.NewConflictError(kerr.Message())
	case http.StatusBadRequest:
		apiErr = model.NewValidationError("Klarna request", kerr.Message())
	case http.StatusTooManyRequests:
		apiErr = model.NewRateLimitError("Klarna")
	default:
		apiErr = model.NewUpstreamError("Klarna", kerr)
		apiErr.Err = model.ErrUpstreamError
	}
	apiErr.Err = fmt.Errorf("%w: %w", apiErr.Err, kerr)
	apiErr.CorrelationID = kerr.CorrelationID
	return apiErr
}

// targetError turns a failure to resolve endpoint or credentials into an
// APIError. The klarna sentinel stays reachable with errors.Is.
func targetError(err error) error {
	var apiErr *model.APIError
	switch {
	case errors.Is(err, ErrMissingOrderID):
		apiErr = model.NewConflictError("Order has no Klarna order ID")
	case errors.Is(err, ErrUnsupportedGateway):
		apiErr = model.NewValidationError("payment method", "not a Klarna gateway")
	case errors.Is(err, ErrMissingCredentials):
		apiErr = &model.APIError{
			Code:       "KLARNA_NOT_CONFIGURED",
			Message:    "Missing Klarna credentials (" + strings.TrimPrefix(err.Error(), ErrMissingCredentials.Error()+": ") + ")",
			StatusCode: http.StatusInternalServerError,
			Err:        model.ErrNotConfigured,
		}
	default:
		return err
	}
	apiErr.Err = fmt.Errorf("%w: %w", apiErr.Err, err)
	return apiErr
}

// ErrorMessage extracts the text shown in order notes from any error
// returned by the client.
func ErrorMessage(err error) string {
	var kerr *Error
	if errors.As(err, &kerr) {
		return kerr.Message()
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
