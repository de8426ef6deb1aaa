// Package ordermgmt keeps WooCommerce orders and their Klarna orders in step.
//
// Order events (completed, cancelled, items saved, created), meta-box actions
// and Klarna's pending-order notifications all enter through Service. Each
// operation loads the order from the store, consults the Klarna order, performs
// at most one Klarna mutation and writes the outcome back as an order note.
package ordermgmt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"kom-bridge/internal/adapter"
	"kom-bridge/internal/klarna"
	"kom-bridge/internal/metrics"
	"kom-bridge/internal/model"
	"kom-bridge/internal/orderlines"
)

// Actions reported in results, logs and metrics.
const (
	ActionCapture = "capture"
	ActionCancel  = "cancel"
	ActionUpdate  = "update"
	ActionRefund  = "refund"
	ActionSync    = "sync"
	ActionNotify  = "notification"
	ActionSetID   = "set_order_id"
)

// Trigger distinguishes event-driven calls, which honour the auto_* settings,
// from explicit merchant requests, which do not.
type Trigger int

const (
	TriggerAutomatic Trigger = iota
	TriggerManual
)

// KlarnaAPI is the subset of the Klarna client the service calls.
type KlarnaAPI interface {
	Retrieve(ctx context.Context, order *model.Order) (*model.KlarnaOrder, error)
	Capture(ctx context.Context, order *model.Order, req *model.CaptureRequest) (string, error)
	Cancel(ctx context.Context, order *model.Order) error
	UpdateOrderLines(ctx context.Context, order *model.Order, lines model.OrderLines) error
	Refund(ctx context.Context, order *model.Order, req model.RefundRequest) error
}

// Result describes what an operation did to one order.
type Result struct {
	OrderID       int    `json:"order_id"`
	Action        string `json:"action"`
	Outcome       string `json:"outcome"`
	Reason        string `json:"reason,omitempty"`
	KlarnaOrderID string `json:"klarna_order_id,omitempty"`
	KlarnaStatus  string `json:"klarna_status,omitempty"`
	CaptureID     string `json:"capture_id,omitempty"`
}

// Config holds the service dependencies.
type Config struct {
	Store      adapter.OrderStore
	Klarna     KlarnaAPI
	Translator *orderlines.Translator
	Settings   Settings
	Logger     *slog.Logger
	Metrics    *metrics.Registry
}

// Service runs order management operations.
type Service struct {
	store      adapter.OrderStore
	klarna     KlarnaAPI
	translator *orderlines.Translator
	settings   Settings
	logger     *slog.Logger
	metrics    *metrics.Registry
}

// New creates a Service. A nil translator uses the zero TransformConfig.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tr := cfg.Translator
	if tr == nil {
		tr = orderlines.New(model.TransformConfig{})
	}
	return &Service{
		store:      cfg.Store,
		klarna:     cfg.Klarna,
		translator: tr,
		settings:   cfg.Settings,
		logger:     logger,
		metrics:    cfg.Metrics,
	}
}

// Settings returns the automation settings in effect.
func (s *Service) Settings() Settings {
	return s.settings
}

// Translator returns the order line translator used for captures and updates.
func (s *Service) Translator() *orderlines.Translator {
	return s.translator
}

// Order loads an order from the store.
func (s *Service) Order(ctx context.Context, orderID int) (*model.Order, error) {
	return s.store.GetOrder(ctx, orderID)
}

// OrderLines loads an order and returns the lines a capture would send.
func (s *Service) OrderLines(ctx context.Context, orderID int) (model.OrderLines, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return model.OrderLines{}, err
	}
	lines := s.translator.Translate(order)
	s.metrics.ObserveLines(len(lines.OrderLines))
	return lines, nil
}

// KlarnaView is a Klarna order together with the actions currently allowed on it.
type KlarnaView struct {
	OrderID          int                `json:"order_id"`
	KlarnaOrder      *model.KlarnaOrder `json:"klarna_order,omitempty"`
	AvailableActions []string           `json:"available_actions"`
}

// KlarnaOrder retrieves the Klarna order behind a WooCommerce order.
func (s *Service) KlarnaOrder(ctx context.Context, orderID int) (*KlarnaView, error) {
	order, err := s.klarnaOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	ko, err := s.klarna.Retrieve(ctx, order)
	if err != nil {
		return nil, err
	}
	return &KlarnaView{
		OrderID:          order.ID,
		KlarnaOrder:      ko,
		AvailableActions: AvailableActions(order, ko),
	}, nil
}

// klarnaOrder loads an order and rejects orders not paid through Klarna.
func (s *Service) klarnaOrder(ctx context.Context, orderID int) (*model.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !klarna.IsKlarnaGateway(order.PaymentMethod) {
		return nil, model.NewValidationError("order", fmt.Sprintf("order %d was not paid with Klarna", orderID))
	}
	return order, nil
}

func (s *Service) skip(order *model.Order, action, reason string) (*Result, error) {
	s.logger.Info("order management skipped",
		slog.Int("order_id", order.ID),
		slog.String("action", action),
		slog.String("reason", reason),
	)
	s.metrics.ObserveEvent(action, metrics.OutcomeSkipped)
	return &Result{
		OrderID:       order.ID,
		Action:        action,
		Outcome:       metrics.OutcomeSkipped,
		Reason:        reason,
		KlarnaOrderID: order.KlarnaOrderID(),
	}, nil
}

func (s *Service) done(order *model.Order, action string, ko *model.KlarnaOrder) *Result {
	s.logger.Info("order management done",
		slog.Int("order_id", order.ID),
		slog.String("action", action),
		slog.String("klarna_order_id", order.KlarnaOrderID()),
	)
	s.metrics.ObserveEvent(action, metrics.OutcomeDone)
	res := &Result{
		OrderID:       order.ID,
		Action:        action,
		Outcome:       metrics.OutcomeDone,
		KlarnaOrderID: order.KlarnaOrderID(),
	}
	if ko != nil {
		res.KlarnaStatus = ko.Status
	}
	return res
}

// fail records a failed Klarna call as an order note and returns err wrapped
// with the action. what completes "Could not ..." in the note.
func (s *Service) fail(ctx context.Context, order *model.Order, action, what string, err error) error {
	s.logger.Warn("order management failed",
		slog.Int("order_id", order.ID),
		slog.String("action", action),
		slog.String("error", err.Error()),
	)
	s.metrics.ObserveEvent(action, metrics.OutcomeFailed)
	note := fmt.Sprintf("Could not %s. %s.", what, strings.TrimSuffix(klarna.ErrorMessage(err), "."))
	s.note(ctx, order, note)
	return fmt.Errorf("%s order %d: %w", action, order.ID, err)
}

// note adds an order note. Store failures are logged and otherwise ignored so
// that a completed Klarna mutation is still reported as done.
func (s *Service) note(ctx context.Context, order *model.Order, note string) {
	if err := s.store.AddOrderNote(ctx, order.ID, note); err != nil {
		s.logger.Error("failed to add order note",
			slog.Int("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) update(ctx context.Context, order *model.Order, u *adapter.OrderUpdate) {
	if err := s.store.UpdateOrder(ctx, order.ID, u); err != nil {
		s.logger.Error("failed to update order",
			slog.Int("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
}
