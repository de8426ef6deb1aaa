package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"kom-bridge/internal/klarna"
	"kom-bridge/internal/model"
	"kom-bridge/internal/ordermgmt"
)

// EventRequest is the body of POST /orders/{id}/events.
type EventRequest struct {
	Type ordermgmt.EventType `json:"type"`
}

// ActionRequest is the body of POST /orders/{id}/actions.
type ActionRequest struct {
	Action        string `json:"action"`
	KlarnaOrderID string `json:"klarna_order_id,omitempty"`
}

// RefundRequest is the body of POST /orders/{id}/refunds.
type RefundRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Reason   string          `json:"reason,omitempty"`
	RefundID int             `json:"refund_id,omitempty"`
}

// handleEvent dispatches a WooCommerce order event.
// POST /orders/{id}/events
func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req EventRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.svc.Dispatch(r.Context(), ordermgmt.Event{OrderID: id, Type: req.Type})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

// handleAction runs a merchant action from the order screen.
// POST /orders/{id}/actions
func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req ActionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.svc.ApplyAction(r.Context(), id, req.Action, req.KlarnaOrderID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

// handleRefund refunds an amount of a captured order through Klarna.
// POST /orders/{id}/refunds
func (h *Handler) handleRefund(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	key, err := ParseIdempotencyKey(r.Header.Get(IdempotencyKeyHeader))
	if err != nil {
		h.writeError(w, model.NewValidationError("header", err.Error()))
		return
	}

	var req RefundRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	ctx := r.Context()
	if key != "" {
		ctx = klarna.WithIdempotencyKey(ctx, key)
	}

	res, err := h.svc.Refund(ctx, id, ordermgmt.RefundInput{
		Amount:   req.Amount,
		Reason:   req.Reason,
		RefundID: req.RefundID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, res)
}

// handleGetKlarnaOrder returns the Klarna order and the allowed actions.
// GET /orders/{id}/klarna
func (h *Handler) handleGetKlarnaOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	view, err := h.svc.KlarnaOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, view)
}

// handleGetOrderLines previews the order lines a capture would send.
// GET /orders/{id}/order-lines
func (h *Handler) handleGetOrderLines(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	lines, err := h.svc.OrderLines(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, lines)
}

// handleNotification receives Klarna's decision on a pending order.
// POST /notifications?order_id={woocommerce order id}
func (h *Handler) handleNotification(w http.ResponseWriter, r *http.Request) {
	id, err := model.ParseID(r.URL.Query().Get("order_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	var n ordermgmt.Notification
	if err := decodeJSON(r, &n); err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.svc.HandleNotification(r.Context(), id, n)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}
