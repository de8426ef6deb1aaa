package ordermgmt

import (
	"context"
	"fmt"

	"kom-bridge/internal/adapter"
	"kom-bridge/internal/klarna"
	"kom-bridge/internal/model"
)

// EventType names a WooCommerce order event.
type EventType string

const (
	EventCompleted  EventType = "completed"
	EventCancelled  EventType = "cancelled"
	EventItemsSaved EventType = "items_saved"
	EventCreated    EventType = "created"
)

// Event is an order event delivered by the shop.
type Event struct {
	OrderID int       `json:"order_id"`
	Type    EventType `json:"type"`
}

// Dispatch routes an order event to its operation.
func (s *Service) Dispatch(ctx context.Context, ev Event) (*Result, error) {
	switch ev.Type {
	case EventCompleted:
		return s.Capture(ctx, ev.OrderID, TriggerAutomatic)
	case EventCancelled:
		return s.Cancel(ctx, ev.OrderID, TriggerAutomatic)
	case EventItemsSaved:
		return s.UpdateItems(ctx, ev.OrderID)
	case EventCreated:
		return s.Sync(ctx, ev.OrderID, TriggerAutomatic)
	default:
		return nil, model.NewValidationError("type", fmt.Sprintf("unknown event %q", ev.Type))
	}
}

// Meta-box actions accepted by ApplyAction.
const (
	MetaBoxCapture = "kom_capture"
	MetaBoxCancel  = "kom_cancel"
	MetaBoxSync    = "kom_sync"
)

// ApplyAction runs a merchant action from the order screen. A non-empty
// klarnaOrderID is stored on the order first, which lets merchants attach
// orders that were created without one.
func (s *Service) ApplyAction(ctx context.Context, orderID int, action, klarnaOrderID string) (*Result, error) {
	switch action {
	case "", MetaBoxCapture, MetaBoxCancel, MetaBoxSync:
	default:
		return nil, model.NewValidationError("action", fmt.Sprintf("unknown action %q", action))
	}

	if klarnaOrderID != "" {
		order, err := s.klarnaOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		u := &adapter.OrderUpdate{
			TransactionID: klarnaOrderID,
			Meta:          map[string]string{model.MetaKlarnaOrderID: klarnaOrderID},
		}
		if err := s.store.UpdateOrder(ctx, orderID, u); err != nil {
			return nil, err
		}
		if action == "" {
			order.TransactionID = klarnaOrderID
			return s.done(order, ActionSetID, nil), nil
		}
	}

	switch action {
	case MetaBoxCapture:
		return s.Capture(ctx, orderID, TriggerManual)
	case MetaBoxCancel:
		return s.Cancel(ctx, orderID, TriggerManual)
	case MetaBoxSync:
		return s.Sync(ctx, orderID, TriggerManual)
	default:
		return nil, model.NewValidationError("action", "an action or a Klarna order ID is required")
	}
}

// Klarna pending-order notification events.
const (
	FraudRiskAccepted = "FRAUD_RISK_ACCEPTED"
	FraudRiskRejected = "FRAUD_RISK_REJECTED"
	FraudRiskStopped  = "FRAUD_RISK_STOPPED"
)

// Notification is the body Klarna posts when a pending order is decided.
type Notification struct {
	OrderID   string `json:"order_id"`
	EventType string `json:"event_type"`
}

// HandleNotification settles a pending WooCommerce order after Klarna's fraud
// review.
func (s *Service) HandleNotification(ctx context.Context, orderID int, n Notification) (*Result, error) {
	if n.OrderID == "" {
		return nil, model.NewValidationError("order_id", "is required")
	}
	order, err := s.klarnaOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if known := order.KlarnaOrderID(); known != "" && known != n.OrderID {
		return nil, model.NewValidationError("order_id", "does not match the order's Klarna order")
	}
	if order.Status != model.StatusPending && order.Status != model.StatusOnHold {
		return s.skip(order, ActionNotify, "order status is "+order.Status)
	}

	switch n.EventType {
	case FraudRiskAccepted:
		u := &adapter.OrderUpdate{
			Status:        model.StatusProcessing,
			TransactionID: n.OrderID,
			Meta:          map[string]string{model.MetaKlarnaOrderID: n.OrderID},
		}
		if err := s.store.UpdateOrder(ctx, order.ID, u); err != nil {
			return nil, err
		}
		title := klarna.Gateway(order.PaymentMethod).Title()
		s.note(ctx, order, fmt.Sprintf("Payment via %s, order ID: %s", title, n.OrderID))
	case FraudRiskRejected, FraudRiskStopped:
		u := &adapter.OrderUpdate{
			Status: model.StatusCancelled,
			Meta:   map[string]string{model.MetaPendingToCancelled: "yes"},
		}
		if err := s.store.UpdateOrder(ctx, order.ID, u); err != nil {
			return nil, err
		}
		s.logger.Warn("klarna flagged order as high risk, do not ship",
			"order_id", order.ID,
			"klarna_order_id", n.OrderID,
			"event_type", n.EventType,
		)
		s.note(ctx, order, fmt.Sprintf("Klarna order rejected. Klarna identified order %d (Klarna order ID %s) as high risk. Do not ship this order; contact the Klarna Fraud Team to resolve.", order.ID, n.OrderID))
	default:
		return nil, model.NewValidationError("event_type", fmt.Sprintf("unknown event %q", n.EventType))
	}

	res := s.done(order, ActionNotify, nil)
	res.KlarnaOrderID = n.OrderID
	res.Reason = n.EventType
	return res, nil
}

// AvailableActions lists the meta-box actions allowed for an order given its
// Klarna order. Without a Klarna order only the order ID can be set, so the
// list is empty.
func AvailableActions(order *model.Order, ko *model.KlarnaOrder) []string {
	if ko == nil {
		return []string{}
	}
	actions := make([]string, 0, 3)
	if order.CaptureID() == "" && ko.FraudStatus == model.FraudStatusAccepted && !ko.IsCaptured() && !ko.IsCancelled() {
		actions = append(actions, MetaBoxCapture)
	}
	if order.MetaValue(model.MetaPendingToCancelled) == "" && !ko.IsCaptured() && !ko.IsCancelled() {
		actions = append(actions, MetaBoxCancel)
	}
	return append(actions, MetaBoxSync)
}
