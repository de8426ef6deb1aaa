// Package handler provides the HTTP and MCP surface of the bridge.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"kom-bridge/internal/model"
	"kom-bridge/internal/ordermgmt"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	svc    *ordermgmt.Service
	logger *slog.Logger
}

// New creates a new Handler for the given order management service.
func New(svc *ordermgmt.Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Order events and merchant actions
	mux.HandleFunc("POST /orders/{id}/events", h.handleEvent)
	mux.HandleFunc("POST /orders/{id}/actions", h.handleAction)
	mux.HandleFunc("POST /orders/{id}/refunds", h.handleRefund)

	// Read-only views
	mux.HandleFunc("GET /orders/{id}/klarna", h.handleGetKlarnaOrder)
	mux.HandleFunc("GET /orders/{id}/order-lines", h.handleGetOrderLines)

	// Klarna pending-order callback
	mux.HandleFunc("POST /notifications", h.handleNotification)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// handleHealth returns a simple health check response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
// Uses errors.As() to unwrap error chains (e.g., fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError

	if !errors.As(err, &apiErr) {
		apiErr = model.NewInternalError(err)
		h.logger.Error("internal error", slog.String("error", err.Error()))
	}

	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:          apiErr.Code,
			Message:       apiErr.Message,
			CorrelationID: apiErr.CorrelationID,
		},
	})
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}

// orderID parses the {id} path value.
func orderID(r *http.Request) (int, error) {
	return model.ParseID(r.PathValue("id"))
}
